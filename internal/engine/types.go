package engine

import (
	"github.com/AngelCh415/mediaplan/internal/buying"
	"github.com/AngelCh415/mediaplan/internal/fees"
	"github.com/AngelCh415/mediaplan/internal/models"
)

type DiagnosticKind string

const (
	MissingChannel     DiagnosticKind = "missing_channel"
	MissingFormat      DiagnosticKind = "missing_format"
	MissingBuyingModel DiagnosticKind = "missing_buying_model"
	UnknownBuyingModel DiagnosticKind = "unknown_buying_model"
	InvalidNumber      DiagnosticKind = "invalid_number"
	CostMismatch       DiagnosticKind = "cost_mismatch"
	ForeignInsertion   DiagnosticKind = "foreign_insertion"
	OverrideIgnored    DiagnosticKind = "override_ignored"
)

// Diagnostic is a data-quality note about one insertion. Diagnostics never
// stop the computation.
type Diagnostic struct {
	InsertionID string         `json:"insertion_id"`
	Kind        DiagnosticKind `json:"kind"`
	Message     string         `json:"message"`
}

// LineItem is the per-insertion part of the result. Degraded lines had a
// missing reference or an unknown buying model, so their projections are a
// lower bound.
type LineItem struct {
	InsertionID    string         `json:"insertion_id"`
	Name           string         `json:"name"`
	Channel        string         `json:"channel"`
	Format         string         `json:"format,omitempty"`
	Currency       string         `json:"currency"`
	BuyingModel    buying.Code    `json:"buying_model"`
	QuantityUnit   string         `json:"quantity_unit"`
	Quantity       float64        `json:"quantity"`
	UnitCost       float64        `json:"unit_cost"`
	RecomputedCost float64        `json:"recomputed_cost"`
	StoredCost     *float64       `json:"stored_cost,omitempty"`
	Cost           float64        `json:"cost"`
	Rates          buying.Rates   `json:"rates"`
	Metrics        buying.Metrics `json:"metrics"`
	Fees           fees.Resolved  `json:"fees"`
	Degraded       bool           `json:"degraded"`
}

// PlanMetrics is the one snapshot every presentation surface consumes.
// Figures are unrounded except money totals, which follow the cent policy;
// use Display for whole-unit counts.
type PlanMetrics struct {
	PlanID     string            `json:"plan_id"`
	Currency   string            `json:"currency"`
	Benchmarks models.Benchmarks `json:"benchmarks"`

	TotalCostHT           float64      `json:"total_cost_ht"`
	TotalAgencyCommission float64      `json:"total_agency_commission"`
	TotalManagementFees   float64      `json:"total_management_fees"`
	TotalAdditionalFees   float64      `json:"total_additional_fees"`
	DisplayedFees         fees.Amounts `json:"displayed_fees"`
	TotalFees             float64      `json:"total_fees"`
	TotalInvestmentHT     float64      `json:"total_investment_ht"`

	BudgetByChannel  map[string]float64 `json:"budget_by_channel"`
	BudgetByCurrency map[string]float64 `json:"budget_by_currency"`

	TotalImpressions float64 `json:"total_impressions"`
	TotalClicks      float64 `json:"total_clicks"`
	TotalViews       float64 `json:"total_views"`
	TotalLeads       float64 `json:"total_leads"`

	AverageCPM     float64 `json:"average_cpm"`
	AverageCPC     float64 `json:"average_cpc"`
	AverageCPV     float64 `json:"average_cpv"`
	WeightedCTR    float64 `json:"weighted_ctr"`
	WeightedVTR    float64 `json:"weighted_vtr"`
	ConversionRate float64 `json:"conversion_rate"`
	EstimatedCPA   float64 `json:"estimated_cpa"`

	LineItems   []LineItem   `json:"line_items"`
	Excluded    int          `json:"excluded"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Degraded reports whether any included line was computed from incomplete
// references.
func (m PlanMetrics) Degraded() bool {
	for _, l := range m.LineItems {
		if l.Degraded {
			return true
		}
	}
	return false
}
