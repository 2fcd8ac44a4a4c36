package buying

import (
	"math"

	"github.com/AngelCh415/mediaplan/internal/models"
	"github.com/AngelCh415/mediaplan/internal/money"
)

// Rates are benchmark rates as fractions (0.02 for 2%).
type Rates struct {
	CTR  float64 `json:"ctr"`
	VTR  float64 `json:"vtr"`
	Conv float64 `json:"conversion_rate"`
}

// Metrics are unrounded projections. Rounding to whole units belongs to the
// presentation view.
type Metrics struct {
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Views       float64 `json:"views"`
	Leads       float64 `json:"leads"`
}

type conversion struct {
	cost   func(q, unitCost float64) float64
	derive func(q float64, r Rates, video bool) Metrics
}

var conversions = map[Unit]conversion{
	UnitImpressions: {
		cost: func(q, u float64) float64 { return q / 1000 * u },
		derive: func(q float64, r Rates, video bool) Metrics {
			m := Metrics{Impressions: q}
			m.Clicks = m.Impressions * r.CTR
			m.Views = videoViews(m.Impressions, r, video)
			m.Leads = m.Clicks * r.Conv
			return m
		},
	},
	UnitClicks: {
		cost: func(q, u float64) float64 { return q * u },
		derive: func(q float64, r Rates, video bool) Metrics {
			m := Metrics{Clicks: q}
			m.Impressions = safeDiv(m.Clicks, r.CTR)
			m.Views = videoViews(m.Impressions, r, video)
			m.Leads = m.Clicks * r.Conv
			return m
		},
	},
	UnitViews: {
		cost: func(q, u float64) float64 { return q * u },
		derive: func(q float64, r Rates, _ bool) Metrics {
			m := Metrics{Views: q}
			m.Impressions = safeDiv(m.Views, r.VTR)
			m.Clicks = m.Impressions * r.CTR
			m.Leads = m.Clicks * r.Conv
			return m
		},
	},
	UnitLeads: {
		cost: func(q, u float64) float64 { return q * u },
		derive: func(q float64, r Rates, video bool) Metrics {
			m := Metrics{Leads: q}
			m.Clicks = safeDiv(m.Leads, r.Conv)
			m.Impressions = safeDiv(m.Clicks, r.CTR)
			m.Views = videoViews(m.Impressions, r, video)
			return m
		},
	},
	UnitLumpSum: {
		cost:   func(_, u float64) float64 { return u },
		derive: func(float64, Rates, bool) Metrics { return Metrics{} },
	},
}

// DefaultBenchmarks is the one table used when neither the caller nor the
// plan supplies benchmarks.
var DefaultBenchmarks = models.Benchmarks{
	CtrDisplay:     0.5,
	CtrSearch:      3,
	VtrVideo:       30,
	ConversionRate: 2,
}

// SelectRates picks the CTR for the channel kind and converts the
// percentage benchmarks into fractions.
func SelectRates(b models.Benchmarks, searchLike bool) Rates {
	ctr := b.CtrDisplay
	if searchLike {
		ctr = b.CtrSearch
	}
	return Rates{
		CTR:  pct(ctr),
		VTR:  pct(b.VtrVideo),
		Conv: pct(b.ConversionRate),
	}
}

// DeriveCost returns the line cost rounded to the cent. Lump-sum models
// carry the total in unitCost and ignore quantity.
func DeriveCost(c Code, quantity, unitCost float64) float64 {
	conv := conversions[c.Unit()]
	return money.Round(conv.cost(nonNeg(quantity), nonNeg(unitCost)))
}

// DeriveMetrics projects the metrics the line did not purchase directly.
// Every division is guarded, so a zero rate yields zero, never NaN or Inf.
// Lump-sum models always project zero here; see FromOverride.
func DeriveMetrics(c Code, quantity float64, r Rates, video bool) Metrics {
	conv := conversions[c.Unit()]
	return conv.derive(nonNeg(quantity), r.sanitized(), video)
}

// FromOverride projects metrics for a lump-sum line from caller-supplied
// impression and/or click estimates. Nil overrides stay unknown.
func FromOverride(impressions, clicks *float64, r Rates, video bool) Metrics {
	r = r.sanitized()
	var m Metrics
	switch {
	case impressions != nil && clicks != nil:
		m.Impressions, m.Clicks = nonNeg(*impressions), nonNeg(*clicks)
	case impressions != nil:
		m.Impressions = nonNeg(*impressions)
		m.Clicks = m.Impressions * r.CTR
	case clicks != nil:
		m.Clicks = nonNeg(*clicks)
		m.Impressions = safeDiv(m.Clicks, r.CTR)
	default:
		return m
	}
	m.Views = videoViews(m.Impressions, r, video)
	m.Leads = m.Clicks * r.Conv
	return m
}

func (r Rates) sanitized() Rates {
	return Rates{CTR: nonNeg(r.CTR), VTR: nonNeg(r.VTR), Conv: nonNeg(r.Conv)}
}

func videoViews(impressions float64, r Rates, video bool) float64 {
	if !video {
		return 0
	}
	return impressions * r.VTR
}

func pct(v float64) float64 { return nonNeg(v) / 100 }

func safeDiv(a, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return a / b
}

func nonNeg(f float64) float64 {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
