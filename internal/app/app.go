// Package app wires config, store, metrics, ingest and the HTTP/MCP surfaces
// into one runnable process.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/AngelCh415/mediaplan/internal/config"
	"github.com/AngelCh415/mediaplan/internal/httpx"
	"github.com/AngelCh415/mediaplan/internal/ingest"
	"github.com/AngelCh415/mediaplan/internal/metrics"
	"github.com/AngelCh415/mediaplan/internal/planner"
	"github.com/AngelCh415/mediaplan/internal/store"
	"github.com/AngelCh415/mediaplan/internal/utils"
)

var Version = "dev"

type App struct {
	Cfg      config.Config
	Log      *slog.Logger
	Store    *store.MemoryStore
	Registry *prometheus.Registry
	Metrics  *metrics.Service
	ETL      *ingest.ETL
	Handler  http.Handler

	limiter *utils.RateLimiter
}

func New(cfg config.Config, logger *slog.Logger) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	st := store.NewMemoryStore()
	mSvc := metrics.NewService(st, metrics.Options{
		Benchmarks:      cfg.Benchmarks,
		CostTolerance:   cfg.CostTolerance,
		ExcludeStatuses: cfg.ExcludeStatuses,
		Registerer:      reg,
	})
	etl := ingest.NewETL(ingest.NewHTTPClient(cfg.HTTPTimeout), st, mSvc, logger, cfg)

	var rl *utils.RateLimiter
	if cfg.RateLimit > 0 {
		rl = utils.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	return &App{
		Cfg:      cfg,
		Log:      logger,
		Store:    st,
		Registry: reg,
		Metrics:  mSvc,
		ETL:      etl,
		Handler:  httpx.NewRouter(logger, etl, mSvc, reg, rl, cfg.TrustProxy),
		limiter:  rl,
	}
}

// Run serves HTTP until ctx ends, then drains for up to 10s. With MCP enabled
// the tools are also served on stdio.
func (a *App) Run(ctx context.Context) error {
	if a.limiter != nil {
		defer a.limiter.Stop()
	}
	if a.Cfg.SourceURL != "" {
		if _, err := a.ETL.Run(ctx); err != nil {
			a.Log.Warn("initial ingest failed", slog.String("err", err.Error()))
		}
	}

	if a.Cfg.MCPEnabled {
		go func() {
			a.Log.Info("starting MCP server", slog.String("transport", "stdio"))
			if err := planner.ServeStdio(ctx, planner.NewServer(a.Metrics, Version)); err != nil && !errors.Is(err, context.Canceled) {
				a.Log.Error("MCP server error", slog.String("err", err.Error()))
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + a.Cfg.Port,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		a.Log.Info("starting server", slog.String("port", a.Cfg.Port))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// NewLogger is the process logger: JSON to the given writer at cfg.LogLevel.
func NewLogger(cfg config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel}))
}
