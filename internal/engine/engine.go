// Package engine is the single entry point that turns a media plan, its
// insertions and the records they reference into a PlanMetrics snapshot. It
// is pure: no I/O, no clock, no shared state.
package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/AngelCh415/mediaplan/internal/buying"
	"github.com/AngelCh415/mediaplan/internal/fees"
	"github.com/AngelCh415/mediaplan/internal/models"
	"github.com/AngelCh415/mediaplan/internal/money"
	"github.com/AngelCh415/mediaplan/internal/rollup"
)

const (
	// DefaultCostTolerance is the relative gap between a stored and a
	// recomputed line cost above which a cost_mismatch is reported.
	DefaultCostTolerance = 0.01
	minCostGap           = 0.01

	unknown = "unknown"
)

type Input struct {
	Plan         models.MediaPlan
	Client       *models.Client
	Insertions   []models.Insertion
	BuyingModels map[string]models.BuyingModel
	Channels     map[string]models.Channel
	Formats      map[string]models.Format

	// Benchmarks overrides the plan's default benchmarks when set.
	Benchmarks *models.Benchmarks
	// Include selects the insertions that count. Nil includes all.
	Include       func(models.Insertion) bool
	CostTolerance float64
}

// ComputePlanMetrics never fails on bad data: missing references, bad
// numbers and unknown codes degrade the affected line and are reported in
// Diagnostics. Identical input yields identical output.
func ComputePlanMetrics(in Input) PlanMetrics {
	bench := EffectiveBenchmarks(in.Benchmarks, in.Plan)
	tol := in.CostTolerance
	if tol <= 0 {
		tol = DefaultCostTolerance
	}

	out := PlanMetrics{
		PlanID:      in.Plan.ID,
		Currency:    coalesce(in.Plan.Currency, unknown),
		Benchmarks:  bench,
		LineItems:   []LineItem{},
		Diagnostics: []Diagnostic{},
	}

	lines := make([]rollup.Line, 0, len(in.Insertions))
	for _, ins := range in.Insertions {
		if ins.PlanID != "" && in.Plan.ID != "" && ins.PlanID != in.Plan.ID {
			out.Diagnostics = append(out.Diagnostics, Diagnostic{
				InsertionID: ins.ID,
				Kind:        ForeignInsertion,
				Message:     fmt.Sprintf("insertion belongs to plan %q", ins.PlanID),
			})
			out.Excluded++
			continue
		}
		if in.Include != nil && !in.Include(ins) {
			out.Excluded++
			continue
		}
		li, diags := computeLine(in, ins, bench, tol)
		out.LineItems = append(out.LineItems, li)
		out.Diagnostics = append(out.Diagnostics, diags...)
		lines = append(lines, rollup.Line{
			Channel:  li.Channel,
			Currency: li.Currency,
			Cost:     li.Cost,
			Metrics:  li.Metrics,
			Fees:     li.Fees,
		})
	}

	t := rollup.Aggregate(lines)
	out.TotalCostHT = t.TotalCostHT
	out.TotalAgencyCommission = t.ComputedFees.Commission
	out.TotalManagementFees = t.ComputedFees.ManagementFee
	out.TotalAdditionalFees = t.ComputedFees.AdditionalFees
	out.DisplayedFees = t.DisplayedFees
	out.TotalFees = t.TotalFees
	out.TotalInvestmentHT = t.TotalInvestmentHT
	out.BudgetByChannel = t.BudgetByChannel
	out.BudgetByCurrency = t.BudgetByCurrency
	out.TotalImpressions = t.TotalImpressions
	out.TotalClicks = t.TotalClicks
	out.TotalViews = t.TotalViews
	out.TotalLeads = t.TotalLeads
	out.AverageCPM = t.AverageCPM
	out.AverageCPC = t.AverageCPC
	out.AverageCPV = t.AverageCPV
	out.WeightedCTR = t.WeightedCTR
	out.WeightedVTR = t.WeightedVTR
	out.ConversionRate = t.ConversionRate
	out.EstimatedCPA = t.EstimatedCPA
	return out
}

// EffectiveBenchmarks picks, whole, the explicit benchmarks, then the plan's,
// then buying.DefaultBenchmarks.
func EffectiveBenchmarks(explicit *models.Benchmarks, plan models.MediaPlan) models.Benchmarks {
	switch {
	case explicit != nil:
		return *explicit
	case plan.DefaultBenchmarks != nil:
		return *plan.DefaultBenchmarks
	}
	return buying.DefaultBenchmarks
}

// ExcludeStatuses builds an Include filter dropping insertions whose status
// matches one of statuses, case-insensitively.
func ExcludeStatuses(statuses ...string) func(models.Insertion) bool {
	drop := make(map[string]struct{}, len(statuses))
	for _, s := range statuses {
		drop[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return func(ins models.Insertion) bool {
		_, ok := drop[strings.ToLower(strings.TrimSpace(ins.Status))]
		return !ok
	}
}

func computeLine(in Input, ins models.Insertion, bench models.Benchmarks, tol float64) (LineItem, []Diagnostic) {
	var diags []Diagnostic
	report := func(kind DiagnosticKind, format string, args ...any) {
		diags = append(diags, Diagnostic{InsertionID: ins.ID, Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	li := LineItem{
		InsertionID: ins.ID,
		Name:        ins.Name,
		Channel:     unknown,
		Currency:    coalesce(ins.Currency, coalesce(in.Plan.Currency, unknown)),
	}
	zeroRates := false

	ch, ok := in.Channels[ins.ChannelID]
	if ok {
		li.Channel = coalesce(ch.Name, coalesce(ch.ID, unknown))
	} else {
		report(MissingChannel, "channel %q not found", ins.ChannelID)
		zeroRates = true
	}

	video := false
	if ins.FormatID != "" {
		if f, ok := in.Formats[ins.FormatID]; ok {
			li.Format = coalesce(f.Name, f.ID)
			video = buying.IsVideo(f.Type)
		} else {
			li.Format = unknown
			report(MissingFormat, "format %q not found", ins.FormatID)
			zeroRates = true
		}
	}

	code := buying.Flat
	if bm, ok := in.BuyingModels[ins.BuyingModelID]; ok {
		c, known := buying.ParseCode(bm.Code)
		if !known {
			report(UnknownBuyingModel, "buying model code %q is not supported, treated as FLAT", bm.Code)
			li.Degraded = true
		}
		code = c
	} else {
		report(MissingBuyingModel, "buying model %q not found, treated as FLAT", ins.BuyingModelID)
		zeroRates = true
	}
	li.BuyingModel = code
	li.QuantityUnit = code.Unit().String()

	li.Quantity = coerce(ins.Quantity, "quantity", report)
	li.UnitCost = coerce(ins.UnitCost, "unit_cost", report)
	li.RecomputedCost = buying.DeriveCost(code, li.Quantity, li.UnitCost)
	li.Cost = li.RecomputedCost
	if ins.TotalCostHT != nil {
		if stored, valid := finiteNonNeg(*ins.TotalCostHT); valid {
			stored = money.Round(stored)
			li.StoredCost = &stored
			li.Cost = stored
			if gap := math.Abs(stored - li.RecomputedCost); gap > math.Max(minCostGap, tol*math.Max(stored, li.RecomputedCost)) {
				report(CostMismatch, "stored total %.2f differs from recomputed %.2f", stored, li.RecomputedCost)
			}
		} else {
			report(InvalidNumber, "total_cost_ht %v is not a valid amount, recomputed cost used", *ins.TotalCostHT)
		}
	}

	if zeroRates {
		li.Degraded = true
	} else {
		li.Rates = buying.SelectRates(bench, buying.IsSearchLike(ch.Category))
	}

	hasOverride := ins.ImpressionsOverride != nil || ins.ClicksOverride != nil
	switch {
	case code.Unit() == buying.UnitLumpSum && hasOverride:
		li.Metrics = buying.FromOverride(ins.ImpressionsOverride, ins.ClicksOverride, li.Rates, video)
	default:
		if hasOverride {
			report(OverrideIgnored, "impression/click overrides only apply to lump-sum buying models")
		}
		li.Metrics = buying.DeriveMetrics(code, li.Quantity, li.Rates, video)
	}

	li.Fees = fees.Resolve(in.Client, in.Plan, ins, li.Cost)
	return li, diags
}

func coerce(v float64, field string, report func(DiagnosticKind, string, ...any)) float64 {
	if f, ok := finiteNonNeg(v); ok {
		return f
	}
	report(InvalidNumber, "%s %v coerced to 0", field, v)
	return 0
}

func finiteNonNeg(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

func coalesce(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}
