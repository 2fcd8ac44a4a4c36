// Package fees resolves which agency fee configuration applies to a line
// item and turns it into commission, management and additional fee amounts.
package fees

import (
	"math"

	"github.com/AngelCh415/mediaplan/internal/models"
)

// Level says where a resolved configuration came from.
type Level string

const (
	LevelNone      Level = "none"
	LevelInsertion Level = "insertion"
	LevelPlan      Level = "plan"
	LevelClient    Level = "client"
)

type AdditionalAmount struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Amounts groups the three fee components and their sum.
type Amounts struct {
	Commission     float64 `json:"commission"`
	ManagementFee  float64 `json:"management_fee"`
	AdditionalFees float64 `json:"additional_fees"`
	Total          float64 `json:"total"`
}

// Resolved holds both the always-computed amounts and the amounts gated by
// the plan's display flags. Only Displayed feeds TotalFees and the grand total.
type Resolved struct {
	Source     Level                    `json:"source"`
	Config     *models.AgencyFeesConfig `json:"config,omitempty"`
	Additional []AdditionalAmount       `json:"additional,omitempty"`
	Computed   Amounts                  `json:"computed"`
	Displayed  Amounts                  `json:"displayed"`

	NetMediaSpend     float64 `json:"net_media_spend"`
	TotalFees         float64 `json:"total_fees"`
	TotalInvestmentHT float64 `json:"total_investment_ht"`
}

// Chain returns the most specific configuration present, whole.
func Chain(insertion, plan, client *models.AgencyFeesConfig) (*models.AgencyFeesConfig, Level) {
	switch {
	case insertion != nil:
		return insertion, LevelInsertion
	case plan != nil:
		return plan, LevelPlan
	case client != nil:
		return client, LevelClient
	}
	return nil, LevelNone
}

// Resolve computes the fees owed on netMediaSpend for one insertion. client
// may be nil. The result depends only on the arguments.
func Resolve(client *models.Client, plan models.MediaPlan, ins models.Insertion, netMediaSpend float64) Resolved {
	var clientFees *models.AgencyFeesConfig
	if client != nil {
		clientFees = client.DefaultAgencyFees
	}
	cfg, lvl := Chain(ins.AgencyFeesOverride, plan.AgencyFees, clientFees)

	spend := nonNeg(netMediaSpend)
	out := Resolved{Source: lvl, NetMediaSpend: spend}
	if cfg != nil {
		out.Config = cfg
		out.Computed.Commission = spend * nonNeg(cfg.CommissionRate) / 100
		out.Computed.ManagementFee = amount(cfg.ManagementFeeType, cfg.ManagementFeeValue, spend)
		for _, f := range cfg.AdditionalFees {
			a := amount(f.Type, f.Value, spend)
			out.Additional = append(out.Additional, AdditionalAmount{ID: f.ID, Name: f.Name, Amount: a})
			out.Computed.AdditionalFees += a
		}
	}
	out.Computed.Total = out.Computed.Commission + out.Computed.ManagementFee + out.Computed.AdditionalFees

	if plan.ShowCommission {
		out.Displayed.Commission = out.Computed.Commission
	}
	if plan.ShowFees {
		out.Displayed.ManagementFee = out.Computed.ManagementFee
	}
	if plan.ShowAdditionalFees {
		out.Displayed.AdditionalFees = out.Computed.AdditionalFees
	}
	out.Displayed.Total = out.Displayed.Commission + out.Displayed.ManagementFee + out.Displayed.AdditionalFees

	out.TotalFees = out.Displayed.Total
	out.TotalInvestmentHT = spend + out.TotalFees
	return out
}

// amount applies a percent (of spend) or flat fee. Anything that is not
// flat is treated as a percentage.
func amount(t models.FeeType, value, spend float64) float64 {
	if t == models.FeeFlat {
		return nonNeg(value)
	}
	return spend * nonNeg(value) / 100
}

func nonNeg(f float64) float64 {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
