package engine

import "github.com/AngelCh415/mediaplan/internal/money"

// Display is the presentation view of a PlanMetrics: money to the cent,
// counts to whole units, rates to four decimals. It is derived, never
// recomputed.
type Display struct {
	PlanID   string `json:"plan_id"`
	Currency string `json:"currency"`

	TotalCostHT           float64 `json:"total_cost_ht"`
	TotalAgencyCommission float64 `json:"total_agency_commission"`
	TotalManagementFees   float64 `json:"total_management_fees"`
	TotalAdditionalFees   float64 `json:"total_additional_fees"`
	TotalFees             float64 `json:"total_fees"`
	TotalInvestmentHT     float64 `json:"total_investment_ht"`

	BudgetByChannel  map[string]float64 `json:"budget_by_channel"`
	BudgetByCurrency map[string]float64 `json:"budget_by_currency"`

	TotalImpressions float64 `json:"total_impressions"`
	TotalClicks      float64 `json:"total_clicks"`
	TotalViews       float64 `json:"total_views"`
	TotalLeads       float64 `json:"total_leads"`

	AverageCPM   float64 `json:"average_cpm"`
	AverageCPC   float64 `json:"average_cpc"`
	EstimatedCPA float64 `json:"estimated_cpa"`
	WeightedCTR  float64 `json:"weighted_ctr"`
	WeightedVTR  float64 `json:"weighted_vtr"`

	Lines       []DisplayLine `json:"lines"`
	Degraded    bool          `json:"degraded"`
	Diagnostics int           `json:"diagnostics"`
}

type DisplayLine struct {
	InsertionID string  `json:"insertion_id"`
	Name        string  `json:"name"`
	Channel     string  `json:"channel"`
	BuyingModel string  `json:"buying_model"`
	Cost        float64 `json:"cost"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Views       float64 `json:"views"`
	Leads       float64 `json:"leads"`
	Degraded    bool    `json:"degraded"`
}

func (m PlanMetrics) Display() Display {
	d := Display{
		PlanID:                m.PlanID,
		Currency:              m.Currency,
		TotalCostHT:           money.Round(m.TotalCostHT),
		TotalAgencyCommission: money.Round(m.TotalAgencyCommission),
		TotalManagementFees:   money.Round(m.TotalManagementFees),
		TotalAdditionalFees:   money.Round(m.TotalAdditionalFees),
		TotalFees:             money.Round(m.TotalFees),
		TotalInvestmentHT:     money.Round(m.TotalInvestmentHT),
		BudgetByChannel:       roundedCopy(m.BudgetByChannel),
		BudgetByCurrency:      roundedCopy(m.BudgetByCurrency),
		TotalImpressions:      money.Whole(m.TotalImpressions),
		TotalClicks:           money.Whole(m.TotalClicks),
		TotalViews:            money.Whole(m.TotalViews),
		TotalLeads:            money.Whole(m.TotalLeads),
		AverageCPM:            money.Round(m.AverageCPM),
		AverageCPC:            money.Round(m.AverageCPC),
		EstimatedCPA:          money.Round(m.EstimatedCPA),
		WeightedCTR:           money.Round4(m.WeightedCTR),
		WeightedVTR:           money.Round4(m.WeightedVTR),
		Lines:                 make([]DisplayLine, 0, len(m.LineItems)),
		Degraded:              m.Degraded(),
		Diagnostics:           len(m.Diagnostics),
	}
	for _, l := range m.LineItems {
		d.Lines = append(d.Lines, DisplayLine{
			InsertionID: l.InsertionID,
			Name:        l.Name,
			Channel:     l.Channel,
			BuyingModel: string(l.BuyingModel),
			Cost:        money.Round(l.Cost),
			Impressions: money.Whole(l.Metrics.Impressions),
			Clicks:      money.Whole(l.Metrics.Clicks),
			Views:       money.Whole(l.Metrics.Views),
			Leads:       money.Whole(l.Metrics.Leads),
			Degraded:    l.Degraded,
		})
	}
	return d
}

func roundedCopy(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = money.Round(v)
	}
	return out
}
