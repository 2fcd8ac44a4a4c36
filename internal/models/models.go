package models

type FeeType string

const (
	FeePercent FeeType = "percent"
	FeeFlat    FeeType = "flat"
)

type PlanStatus string

const (
	PlanDraft     PlanStatus = "DRAFT"
	PlanValidated PlanStatus = "VALIDATED"
	PlanOngoing   PlanStatus = "ONGOING"
	PlanCompleted PlanStatus = "COMPLETED"
	PlanArchived  PlanStatus = "ARCHIVED"
)

type AdditionalFee struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Type  FeeType `json:"type"`
	Value float64 `json:"value"`
}

// AgencyFeesConfig is a complete fee configuration. A config found at a more
// specific level replaces a less specific one as a whole.
type AgencyFeesConfig struct {
	CommissionRate     float64         `json:"commission_rate"`
	ManagementFeeType  FeeType         `json:"management_fee_type"`
	ManagementFeeValue float64         `json:"management_fee_value"`
	AdditionalFees     []AdditionalFee `json:"additional_fees,omitempty"`
}

// Benchmarks are percentages (2 means 2%).
type Benchmarks struct {
	CtrDisplay     float64 `json:"ctr_display"`
	CtrSearch      float64 `json:"ctr_search"`
	VtrVideo       float64 `json:"vtr_video"`
	ConversionRate float64 `json:"conversion_rate"`
}

// BenchmarkOverrides replaces single rates of an already resolved Benchmarks;
// nil fields keep the base value.
type BenchmarkOverrides struct {
	CtrDisplay     *float64 `json:"ctr_display,omitempty"`
	CtrSearch      *float64 `json:"ctr_search,omitempty"`
	VtrVideo       *float64 `json:"vtr_video,omitempty"`
	ConversionRate *float64 `json:"conversion_rate,omitempty"`
}

func (o BenchmarkOverrides) Empty() bool {
	return o == BenchmarkOverrides{}
}

func (o BenchmarkOverrides) Apply(base Benchmarks) Benchmarks {
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&base.CtrDisplay, o.CtrDisplay)
	set(&base.CtrSearch, o.CtrSearch)
	set(&base.VtrVideo, o.VtrVideo)
	set(&base.ConversionRate, o.ConversionRate)
	return base
}

type Client struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	DefaultAgencyFees *AgencyFeesConfig `json:"default_agency_fees,omitempty"`
}

type MediaPlan struct {
	ID                 string            `json:"id"`
	ClientID           string            `json:"client_id"`
	Name               string            `json:"name"`
	Currency           string            `json:"currency"`
	Status             PlanStatus        `json:"status"`
	AgencyFees         *AgencyFeesConfig `json:"agency_fees,omitempty"`
	DefaultBenchmarks  *Benchmarks       `json:"default_benchmarks,omitempty"`
	ShowFees           bool              `json:"show_fees"`
	ShowCommission     bool              `json:"show_commission"`
	ShowAdditionalFees bool              `json:"show_additional_fees"`
}

// Insertion is one line item of a plan. Quantity is interpreted according to
// the referenced buying model.
type Insertion struct {
	ID                 string            `json:"id"`
	PlanID             string            `json:"plan_id"`
	Name               string            `json:"name"`
	ChannelID          string            `json:"channel_id"`
	FormatID           string            `json:"format_id,omitempty"`
	BuyingModelID      string            `json:"buying_model_id"`
	UnitCost           float64           `json:"unit_cost"`
	Quantity           float64           `json:"quantity"`
	TotalCostHT        *float64          `json:"total_cost_ht,omitempty"`
	AgencyFeesOverride *AgencyFeesConfig `json:"agency_fees_override,omitempty"`
	Currency           string            `json:"currency,omitempty"`
	Status             string            `json:"status,omitempty"`

	// Only used by lump-sum models, which have no native unit to derive from.
	ImpressionsOverride *float64 `json:"impressions_override,omitempty"`
	ClicksOverride      *float64 `json:"clicks_override,omitempty"`
}

type BuyingModel struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type Format struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Bundle is the shape the record source exports: one or more plans with the
// records they reference.
type Bundle struct {
	Clients      []Client      `json:"clients"`
	Plans        []MediaPlan   `json:"plans"`
	Insertions   []Insertion   `json:"insertions"`
	BuyingModels []BuyingModel `json:"buying_models"`
	Channels     []Channel     `json:"channels"`
	Formats      []Format      `json:"formats"`
}
