package ingest

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AngelCh415/mediaplan/internal/config"
	"github.com/AngelCh415/mediaplan/internal/engine"
	"github.com/AngelCh415/mediaplan/internal/metrics"
	"github.com/AngelCh415/mediaplan/internal/models"
	"github.com/AngelCh415/mediaplan/internal/store"
	"github.com/AngelCh415/mediaplan/internal/utils"
)

var ErrSinkNotConfigured = errors.New("sink not configured")

type ETL struct {
	c   HTTPClient
	st  *store.MemoryStore
	svc *metrics.Service
	log *slog.Logger
	cfg config.Config
	now func() time.Time
}

func NewETL(c HTTPClient, st *store.MemoryStore, svc *metrics.Service, log *slog.Logger, cfg config.Config) *ETL {
	return &ETL{c: c, st: st, svc: svc, log: log, cfg: cfg, now: time.Now}
}

// RunStats counts what one ingest pass did with the records it fetched.
type RunStats struct {
	Upserted  int `json:"upserted"`
	Unchanged int `json:"unchanged"`
	Rejected  int `json:"rejected"`
}

// Run pulls a bundle from the record source and materializes it. The last
// applied content hash is kept per kind and id, so a re-run only applies what
// changed, including a record reverted to an earlier version.
func (e *ETL) Run(ctx context.Context) (RunStats, error) {
	var b models.Bundle
	if err := GetJSONWithRetry(ctx, e.c, e.cfg.SourceURL, &b); err != nil {
		return RunStats{}, fmt.Errorf("fetch bundle: %w", err)
	}

	var stats RunStats
	apply := func(kind, id string, rec any, upsert func()) {
		if id == "" {
			stats.Rejected++
			e.log.Warn("record without id", slog.String("kind", kind))
			return
		}
		if !e.st.MarkApplied(kind+"|"+id, contentHash(rec)) {
			stats.Unchanged++
			return
		} // idempotencia
		upsert()
		stats.Upserted++
	}

	for _, r := range b.BuyingModels {
		r = normBuyingModel(r)
		apply("buying_model", r.ID, r, func() { e.st.UpsertBuyingModel(r) })
	}
	for _, r := range b.Channels {
		r = normChannel(r)
		apply("channel", r.ID, r, func() { e.st.UpsertChannel(r) })
	}
	for _, r := range b.Formats {
		r = normFormat(r)
		apply("format", r.ID, r, func() { e.st.UpsertFormat(r) })
	}
	for _, r := range b.Clients {
		r.ID = strings.TrimSpace(r.ID)
		apply("client", r.ID, r, func() { e.st.UpsertClient(r) })
	}
	for _, r := range b.Plans {
		r = normPlan(r)
		apply("plan", r.ID, r, func() { e.st.UpsertPlan(r) })
	}
	for _, r := range b.Insertions {
		r = normInsertion(r)
		if r.PlanID == "" {
			stats.Rejected++
			e.log.Warn("insertion without plan", slog.String("insertion_id", r.ID))
			continue
		}
		apply("insertion", r.ID, r, func() { e.st.UpsertInsertion(r) })
	}

	counts := e.st.Counts()
	e.log.Info("ingest complete",
		slog.Int("upserted", stats.Upserted),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("rejected", stats.Rejected),
		slog.Int("plans", counts["plans"]),
		slog.Int("insertions", counts["insertions"]))
	return stats, nil
}

type exportPayload struct {
	PlanID     string             `json:"plan_id"`
	ExportedAt time.Time          `json:"exported_at"`
	Metrics    engine.PlanMetrics `json:"metrics"`
	Display    engine.Display     `json:"display"`
}

// ExportPlan posts one plan's metrics to the sink, signed with HMAC-SHA256 in
// X-Signature. It returns the number of line items exported.
func (e *ETL) ExportPlan(ctx context.Context, planID string) (int, error) {
	if e.cfg.SinkURL == "" || e.cfg.SinkSecret == "" {
		return 0, ErrSinkNotConfigured
	}
	m, err := e.svc.PlanMetrics(planID, metrics.Query{})
	if err != nil {
		return 0, err
	}
	b, err := json.Marshal(exportPayload{
		PlanID:     planID,
		ExportedAt: e.now().UTC(),
		Metrics:    m,
		Display:    m.Display(),
	})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.SinkURL, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", Sign(e.cfg.SinkSecret, b))
	if rid := utils.RID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	resp, err := e.c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("export sink: %w", &StatusError{Code: resp.StatusCode, Body: string(body)})
	}
	e.log.Info("plan exported", slog.String("plan_id", planID), slog.Int("lines", len(m.LineItems)))
	return len(m.LineItems), nil
}

// Sign is the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func contentHash(rec any) string {
	b, _ := json.Marshal(rec)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

func normBuyingModel(r models.BuyingModel) models.BuyingModel {
	r.ID = strings.TrimSpace(r.ID)
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
	r.Name = coalesce(r.Name, r.Code)
	return r
}

func normChannel(r models.Channel) models.Channel {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = coalesce(r.Name, r.ID)
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	return r
}

func normFormat(r models.Format) models.Format {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = coalesce(r.Name, r.ID)
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	return r
}

func normPlan(r models.MediaPlan) models.MediaPlan {
	r.ID = strings.TrimSpace(r.ID)
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.Status = models.PlanStatus(strings.ToUpper(strings.TrimSpace(string(r.Status))))
	return r
}

func normInsertion(r models.Insertion) models.Insertion {
	r.ID = strings.TrimSpace(r.ID)
	r.PlanID = strings.TrimSpace(r.PlanID)
	r.ChannelID = strings.TrimSpace(r.ChannelID)
	r.FormatID = strings.TrimSpace(r.FormatID)
	r.BuyingModelID = strings.TrimSpace(r.BuyingModelID)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	return r
}

func coalesce(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}
