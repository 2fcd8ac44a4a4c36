package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AngelCh415/mediaplan/internal/ingest"
	"github.com/AngelCh415/mediaplan/internal/metrics"
	"github.com/AngelCh415/mediaplan/internal/models"
	"github.com/AngelCh415/mediaplan/internal/store"
	"github.com/AngelCh415/mediaplan/internal/utils"
)

const maxBundleBytes = 10 << 20

// NewRouter wires the HTTP surface. gatherer feeds /metrics; rl may be nil.
// trustProxy takes the client address from X-Forwarded-For/X-Real-IP; only
// enable it behind a proxy that overwrites those headers.
func NewRouter(log *slog.Logger, etl *ingest.ETL, mSvc *metrics.Service, gatherer prometheus.Gatherer, rl *utils.RateLimiter, trustProxy bool) http.Handler {
	mux := chi.NewRouter()
	if trustProxy {
		mux.Use(middleware.RealIP)
	}
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ready")) })
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.Group(func(api chi.Router) {
		if rl != nil {
			api.Use(rl.Middleware)
		}

		api.Post("/ingest/run", func(w http.ResponseWriter, r *http.Request) {
			stats, err := etl.Run(r.Context())
			if err != nil {
				http.Error(w, err.Error(), 502)
				return
			}
			writeJSONStatus(w, 202, stats)
		})

		api.Post("/export/run", func(w http.ResponseWriter, r *http.Request) {
			planID := r.URL.Query().Get("plan")
			if planID == "" {
				http.Error(w, "plan required", 400)
				return
			}
			n, err := etl.ExportPlan(r.Context(), planID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				http.Error(w, err.Error(), 404)
				return
			case errors.Is(err, ingest.ErrSinkNotConfigured):
				http.Error(w, err.Error(), 503)
				return
			case err != nil:
				http.Error(w, err.Error(), 502)
				return
			}
			writeJSON(w, map[string]any{"plan_id": planID, "exported": n})
		})

		api.Get("/plans", func(w http.ResponseWriter, r *http.Request) {
			q, err := metrics.ParseQuery(r.URL.Query())
			if err != nil {
				http.Error(w, err.Error(), 400)
				return
			}
			writeJSON(w, mSvc.Summaries(q))
		})

		api.Get("/plans/{id}/metrics", func(w http.ResponseWriter, r *http.Request) {
			q, err := metrics.ParseQuery(r.URL.Query())
			if err != nil {
				http.Error(w, err.Error(), 400)
				return
			}
			m, err := mSvc.PlanMetrics(chi.URLParam(r, "id"), q)
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, err.Error(), 404)
				return
			}
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			if q.Display {
				writeJSON(w, m.Display())
				return
			}
			writeJSON(w, m)
		})

		api.Post("/compute", func(w http.ResponseWriter, r *http.Request) {
			q, err := metrics.ParseQuery(r.URL.Query())
			if err != nil {
				http.Error(w, err.Error(), 400)
				return
			}
			var b models.Bundle
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBundleBytes)).Decode(&b); err != nil {
				http.Error(w, "bad bundle: "+err.Error(), 400)
				return
			}
			m, err := mSvc.Compute(b, r.URL.Query().Get("plan"), q)
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, err.Error(), 404)
				return
			}
			if err != nil {
				http.Error(w, err.Error(), 400)
				return
			}
			if q.Display {
				writeJSON(w, m.Display())
				return
			}
			writeJSON(w, m)
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) { writeJSONStatus(w, 200, v) }

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}
