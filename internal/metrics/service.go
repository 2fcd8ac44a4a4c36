package metrics

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AngelCh415/mediaplan/internal/engine"
	"github.com/AngelCh415/mediaplan/internal/models"
	"github.com/AngelCh415/mediaplan/internal/store"
)

// Service is the one place presentation surfaces get plan figures from. It
// loads records from the store and hands them to the engine.
type Service struct {
	st            *store.MemoryStore
	defaults      models.Benchmarks
	costTolerance float64
	exclude       []string

	computations *prometheus.CounterVec
	diagnostics  *prometheus.CounterVec
	degraded     prometheus.Counter
	duration     prometheus.Histogram
}

type Options struct {
	Benchmarks      models.Benchmarks
	CostTolerance   float64
	ExcludeStatuses []string
	// Registerer may be nil, in which case metrics are not exported.
	Registerer prometheus.Registerer
}

func NewService(st *store.MemoryStore, opts Options) *Service {
	f := promauto.With(opts.Registerer)
	return &Service{
		st:            st,
		defaults:      opts.Benchmarks,
		costTolerance: opts.CostTolerance,
		exclude:       opts.ExcludeStatuses,
		computations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediaplan",
			Name:      "computations_total",
			Help:      "Plan metric computations by plan status.",
		}, []string{"plan_status"}),
		diagnostics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediaplan",
			Name:      "diagnostics_total",
			Help:      "Data-quality diagnostics raised while computing plans.",
		}, []string{"kind"}),
		degraded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mediaplan",
			Name:      "degraded_plans_total",
			Help:      "Computations where at least one line item was degraded.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mediaplan",
			Name:      "compute_duration_seconds",
			Help:      "Time spent computing one plan.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),
	}
}

// Query carries the per-request knobs a surface may set.
type Query struct {
	Statuses        map[string]struct{}
	ExcludeStatuses map[string]struct{}
	// Overrides replace single benchmark rates on top of the resolved base.
	Overrides     models.BenchmarkOverrides
	Display       bool
	Limit, Offset int
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func csvSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, p := range strings.Split(s, ",") {
		p = norm(p)
		if p != "" {
			out[p] = struct{}{}
		}
	}
	return out
}

// StatusSet parses a comma separated status list, lower-cased.
func StatusSet(s string) map[string]struct{} { return csvSet(s) }

// ParseQuery reads status, exclude_status, display, limit, offset and the
// benchmark overrides ctr_display, ctr_search, vtr_video, conversion_rate.
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		Statuses:        csvSet(v.Get("status")),
		ExcludeStatuses: csvSet(v.Get("exclude_status")),
		Display:         v.Get("display") == "1" || norm(v.Get("display")) == "true",
		Limit:           atoiDef(v.Get("limit"), 100),
		Offset:          atoiDef(v.Get("offset"), 0),
	}
	fields := []struct {
		key string
		dst **float64
	}{
		{"ctr_display", &q.Overrides.CtrDisplay},
		{"ctr_search", &q.Overrides.CtrSearch},
		{"vtr_video", &q.Overrides.VtrVideo},
		{"conversion_rate", &q.Overrides.ConversionRate},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(v.Get(f.key))
		if raw == "" {
			continue
		}
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Query{}, fmt.Errorf("bad %s: %w", f.key, err)
		}
		*f.dst = &val
	}
	return q, nil
}

// PlanMetrics computes one stored plan.
func (s *Service) PlanMetrics(planID string, q Query) (engine.PlanMetrics, error) {
	plan, err := s.st.Plan(planID)
	if err != nil {
		return engine.PlanMetrics{}, fmt.Errorf("plan %q: %w", planID, err)
	}
	refs := s.st.References()
	in := engine.Input{
		Plan:          plan,
		Client:        s.st.Client(plan.ClientID),
		Insertions:    s.st.InsertionsForPlan(planID),
		BuyingModels:  refs.BuyingModels,
		Channels:      refs.Channels,
		Formats:       refs.Formats,
		Benchmarks:    s.benchmarks(plan, q.Overrides),
		Include:       s.include(q),
		CostTolerance: s.costTolerance,
	}
	return s.compute(in), nil
}

// benchmarks resolves the base from the plan, then the configured defaults,
// then the built-in table, and lays the overrides over it field by field.
func (s *Service) benchmarks(plan models.MediaPlan, o models.BenchmarkOverrides) *models.Benchmarks {
	base := engine.EffectiveBenchmarks(nil, plan)
	if plan.DefaultBenchmarks == nil && s.defaults != (models.Benchmarks{}) {
		base = s.defaults
	}
	b := o.Apply(base)
	return &b
}

// Compute runs an ad-hoc bundle that was never stored.
func (s *Service) Compute(b models.Bundle, planID string, q Query) (engine.PlanMetrics, error) {
	st := store.NewMemoryStore()
	st.Load(b)
	if planID == "" {
		if len(b.Plans) != 1 {
			return engine.PlanMetrics{}, fmt.Errorf("bundle has %d plans, plan id required", len(b.Plans))
		}
		planID = b.Plans[0].ID
	}
	adhoc := *s
	adhoc.st = st
	return adhoc.PlanMetrics(planID, q)
}

func (s *Service) compute(in engine.Input) engine.PlanMetrics {
	start := time.Now()
	m := engine.ComputePlanMetrics(in)
	s.duration.Observe(time.Since(start).Seconds())
	s.computations.WithLabelValues(norm(string(in.Plan.Status))).Inc()
	for _, d := range m.Diagnostics {
		s.diagnostics.WithLabelValues(string(d.Kind)).Inc()
	}
	if m.Degraded() {
		s.degraded.Inc()
	}
	return m
}

func (s *Service) include(q Query) func(models.Insertion) bool {
	exclude := engine.ExcludeStatuses(s.exclude...)
	return func(ins models.Insertion) bool {
		st := norm(ins.Status)
		if len(q.Statuses) > 0 {
			if _, ok := q.Statuses[st]; !ok {
				return false
			}
		} else if !exclude(ins) {
			return false
		}
		_, drop := q.ExcludeStatuses[st]
		return !drop
	}
}

// PlanSummary is the list view of a plan: headline figures only.
type PlanSummary struct {
	PlanID            string  `json:"plan_id"`
	Name              string  `json:"name"`
	Status            string  `json:"status"`
	Currency          string  `json:"currency"`
	Insertions        int     `json:"insertions"`
	TotalCostHT       float64 `json:"total_cost_ht"`
	TotalInvestmentHT float64 `json:"total_investment_ht"`
	TotalImpressions  float64 `json:"total_impressions"`
	WeightedCTR       float64 `json:"weighted_ctr"`
	Diagnostics       int     `json:"diagnostics"`
	Degraded          bool    `json:"degraded"`
}

// Summaries lists plans filtered by plan status ("status"), sorted by id and
// paginated. Insertion filters do not apply here.
func (s *Service) Summaries(q Query) []PlanSummary {
	plans := s.st.Plans()
	rows := make([]PlanSummary, 0, len(plans))
	for _, p := range plans {
		if len(q.Statuses) > 0 {
			if _, ok := q.Statuses[norm(string(p.Status))]; !ok {
				continue
			}
		}
		m, err := s.PlanMetrics(p.ID, Query{})
		if err != nil {
			continue
		}
		d := m.Display()
		rows = append(rows, PlanSummary{
			PlanID:            p.ID,
			Name:              p.Name,
			Status:            string(p.Status),
			Currency:          d.Currency,
			Insertions:        len(m.LineItems),
			TotalCostHT:       d.TotalCostHT,
			TotalInvestmentHT: d.TotalInvestmentHT,
			TotalImpressions:  d.TotalImpressions,
			WeightedCTR:       d.WeightedCTR,
			Diagnostics:       d.Diagnostics,
			Degraded:          d.Degraded,
		})
	}
	// orden determinista
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].PlanID < rows[j].PlanID })
	limit, offset := clampLimitOffset(q.Limit, q.Offset, len(rows))
	return paginate(rows, limit, offset)
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func atoiDef(s string, d int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func clampLimitOffset(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	} // tope sano
	if offset > n {
		offset = n
	}
	return limit, offset
}
