// Package rollup folds per-line costs, fees and projections into plan totals.
package rollup

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/AngelCh415/mediaplan/internal/buying"
	"github.com/AngelCh415/mediaplan/internal/fees"
	"github.com/AngelCh415/mediaplan/internal/money"
)

// Line is one included insertion after cost, metric and fee resolution.
type Line struct {
	Channel  string
	Currency string
	Cost     float64
	Metrics  buying.Metrics
	Fees     fees.Resolved
}

type Totals struct {
	Lines int

	TotalCostHT       float64
	ComputedFees      fees.Amounts
	DisplayedFees     fees.Amounts
	TotalFees         float64
	TotalInvestmentHT float64

	BudgetByChannel  map[string]float64
	BudgetByCurrency map[string]float64

	TotalImpressions float64
	TotalClicks      float64
	TotalViews       float64
	TotalLeads       float64

	AverageCPM     float64
	AverageCPC     float64
	AverageCPV     float64
	WeightedCTR    float64
	WeightedVTR    float64
	ConversionRate float64
	EstimatedCPA   float64
}

// Aggregate is order-independent: every total is a compensated sum over the
// lines, so permuting the input yields the same Totals.
func Aggregate(lines []Line) Totals {
	var (
		cost, imp, clicks, views, leads []float64
		commission, mgmt, extra         []float64
		dCommission, dMgmt, dExtra      []float64
	)
	byChannel := map[string][]float64{}
	byCurrency := map[string][]float64{}

	for _, l := range lines {
		cost = append(cost, l.Cost)
		imp = append(imp, l.Metrics.Impressions)
		clicks = append(clicks, l.Metrics.Clicks)
		views = append(views, l.Metrics.Views)
		leads = append(leads, l.Metrics.Leads)

		commission = append(commission, l.Fees.Computed.Commission)
		mgmt = append(mgmt, l.Fees.Computed.ManagementFee)
		extra = append(extra, l.Fees.Computed.AdditionalFees)
		dCommission = append(dCommission, l.Fees.Displayed.Commission)
		dMgmt = append(dMgmt, l.Fees.Displayed.ManagementFee)
		dExtra = append(dExtra, l.Fees.Displayed.AdditionalFees)

		byChannel[l.Channel] = append(byChannel[l.Channel], l.Cost)
		byCurrency[l.Currency] = append(byCurrency[l.Currency], l.Cost)
	}

	t := Totals{
		Lines:            len(lines),
		TotalCostHT:      money.Round(sum(cost)),
		TotalImpressions: sum(imp),
		TotalClicks:      sum(clicks),
		TotalViews:       sum(views),
		TotalLeads:       sum(leads),
		BudgetByChannel:  partition(byChannel),
		BudgetByCurrency: partition(byCurrency),
	}
	t.ComputedFees = amounts(commission, mgmt, extra)
	t.DisplayedFees = amounts(dCommission, dMgmt, dExtra)
	t.TotalFees = t.DisplayedFees.Total
	t.TotalInvestmentHT = t.TotalCostHT + t.TotalFees

	t.AverageCPM = safeDiv(t.TotalCostHT, t.TotalImpressions) * 1000
	t.AverageCPC = safeDiv(t.TotalCostHT, t.TotalClicks)
	t.AverageCPV = safeDiv(t.TotalCostHT, t.TotalViews)
	t.WeightedCTR = safeDiv(t.TotalClicks, t.TotalImpressions)
	t.WeightedVTR = safeDiv(t.TotalViews, t.TotalImpressions)
	t.ConversionRate = safeDiv(t.TotalLeads, t.TotalClicks)
	t.EstimatedCPA = safeDiv(t.TotalCostHT, t.TotalLeads)
	return t
}

// Channels returns the budget keys in a stable order for presentation.
func Channels(budget map[string]float64) []string {
	keys := make([]string, 0, len(budget))
	for k := range budget {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func amounts(commission, mgmt, extra []float64) fees.Amounts {
	a := fees.Amounts{
		Commission:     sum(commission),
		ManagementFee:  sum(mgmt),
		AdditionalFees: sum(extra),
	}
	a.Total = a.Commission + a.ManagementFee + a.AdditionalFees
	return a
}

func partition(groups map[string][]float64) map[string]float64 {
	out := make(map[string]float64, len(groups))
	for k, v := range groups {
		out[k] = money.Round(sum(v))
	}
	return out
}

func sum(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return floats.SumCompensated(xs)
}

func safeDiv(a, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return a / b
}
