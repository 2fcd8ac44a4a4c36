package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/mediaplan/internal/buying"
	"github.com/AngelCh415/mediaplan/internal/fees"
	"github.com/AngelCh415/mediaplan/internal/models"
	"github.com/AngelCh415/mediaplan/internal/money"
)

func ptr(f float64) *float64 { return &f }

func scenario() Input {
	return Input{
		Plan: models.MediaPlan{ID: "plan-1", Currency: "EUR", Status: models.PlanDraft},
		Insertions: []models.Insertion{
			{ID: "A", PlanID: "plan-1", Name: "FB reach", ChannelID: "fb", FormatID: "img", BuyingModelID: "bm-cpm", Quantity: 200000, UnitCost: 20},
			{ID: "B", PlanID: "plan-1", Name: "Brand search", ChannelID: "gs", FormatID: "txt", BuyingModelID: "bm-cpc", Quantity: 1000, UnitCost: 4},
		},
		BuyingModels: map[string]models.BuyingModel{
			"bm-cpm":  {ID: "bm-cpm", Code: "CPM"},
			"bm-cpc":  {ID: "bm-cpc", Code: "CPC"},
			"bm-cpv":  {ID: "bm-cpv", Code: "CPV"},
			"bm-flat": {ID: "bm-flat", Code: "FLAT"},
			"bm-odd":  {ID: "bm-odd", Code: "CPE"},
		},
		Channels: map[string]models.Channel{
			"fb": {ID: "fb", Name: "Facebook", Category: "social"},
			"gs": {ID: "gs", Name: "Google Search", Category: "search"},
			"yt": {ID: "yt", Name: "YouTube", Category: "video"},
		},
		Formats: map[string]models.Format{
			"img": {ID: "img", Name: "Image", Type: "image"},
			"txt": {ID: "txt", Name: "Text ad", Type: "text"},
			"vid": {ID: "vid", Name: "Pre-roll", Type: "video"},
		},
		Benchmarks: &models.Benchmarks{CtrDisplay: 1, CtrSearch: 5},
	}
}

func TestComputePlanMetrics_TwoChannelScenario(t *testing.T) {
	got := ComputePlanMetrics(scenario())

	require.Len(t, got.LineItems, 2)
	a, b := got.LineItems[0], got.LineItems[1]
	assert.Equal(t, 4000.0, a.Cost)
	assert.InDelta(t, 2000, a.Metrics.Clicks, 1e-6)
	assert.Equal(t, 4000.0, b.Cost)
	assert.InDelta(t, 20000, b.Metrics.Impressions, 1e-6)

	assert.Equal(t, 8000.0, got.TotalCostHT)
	assert.Equal(t, map[string]float64{"Facebook": 4000, "Google Search": 4000}, got.BudgetByChannel)
	assert.InDelta(t, 220000, got.TotalImpressions, 1e-6)
	// 2000 projected clicks on Facebook plus 1000 purchased on search
	assert.InDelta(t, 3000, got.TotalClicks, 1e-6)
	// 3000/220000 ≈ 0.0136; a weighted CTR of 0.1 is unreachable with these
	// formulas (it would need 22000 clicks)
	assert.InDelta(t, 3000.0/220000.0, got.WeightedCTR, 1e-12)
	assert.InDelta(t, 8000.0/220000.0*1000, got.AverageCPM, 1e-9)
	assert.Equal(t, 0.0, got.EstimatedCPA)
	assert.Empty(t, got.Diagnostics)
	assert.False(t, got.Degraded())
}

func TestComputePlanMetrics_Idempotent(t *testing.T) {
	in := scenario()
	in.Insertions = append(in.Insertions, models.Insertion{ID: "C", ChannelID: "nope", BuyingModelID: "bm-odd", UnitCost: -3})

	first := ComputePlanMetrics(in)
	second := ComputePlanMetrics(in)

	assert.Equal(t, first, second)
}

func TestComputePlanMetrics_EmptyPlan(t *testing.T) {
	got := ComputePlanMetrics(Input{Plan: models.MediaPlan{ID: "empty"}})

	assert.Equal(t, 0.0, got.TotalCostHT)
	assert.Equal(t, 0.0, got.AverageCPM)
	assert.Equal(t, 0.0, got.WeightedCTR)
	assert.Equal(t, 0.0, got.EstimatedCPA)
	assert.Empty(t, got.BudgetByChannel)
	assert.NotNil(t, got.BudgetByChannel)
	assert.Empty(t, got.LineItems)
	assert.Equal(t, "unknown", got.Currency)
}

func TestComputePlanMetrics_FeePrecedence(t *testing.T) {
	in := scenario()
	in.Client = &models.Client{ID: "c", DefaultAgencyFees: &models.AgencyFeesConfig{CommissionRate: 15}}
	in.Plan.AgencyFees = &models.AgencyFeesConfig{CommissionRate: 10}
	in.Plan.ShowCommission = true
	in.Insertions[0].AgencyFeesOverride = &models.AgencyFeesConfig{CommissionRate: 20}

	got := ComputePlanMetrics(in)

	assert.Equal(t, fees.LevelInsertion, got.LineItems[0].Fees.Source)
	assert.InDelta(t, 800, got.LineItems[0].Fees.Computed.Commission, 1e-9)
	assert.Equal(t, fees.LevelPlan, got.LineItems[1].Fees.Source)
	assert.InDelta(t, 400, got.LineItems[1].Fees.Computed.Commission, 1e-9)
	assert.InDelta(t, 1200, got.TotalAgencyCommission, 1e-9)
	assert.InDelta(t, 1200, got.TotalFees, 1e-9)
	assert.InDelta(t, 9200, got.TotalInvestmentHT, 1e-9)
}

func TestComputePlanMetrics_HiddenFeesStillComputed(t *testing.T) {
	in := scenario()
	in.Plan.AgencyFees = &models.AgencyFeesConfig{CommissionRate: 10, ManagementFeeType: models.FeeFlat, ManagementFeeValue: 250}
	in.Plan.ShowFees = true

	got := ComputePlanMetrics(in)

	assert.InDelta(t, 800, got.TotalAgencyCommission, 1e-9)
	assert.InDelta(t, 500, got.TotalManagementFees, 1e-9)
	assert.Equal(t, 0.0, got.DisplayedFees.Commission)
	assert.InDelta(t, 500, got.TotalFees, 1e-9)
	assert.InDelta(t, 8500, got.TotalInvestmentHT, 1e-9)
}

func TestComputePlanMetrics_MissingReferencesDegrade(t *testing.T) {
	in := scenario()
	in.Insertions = []models.Insertion{
		{ID: "x", ChannelID: "deleted", FormatID: "img", BuyingModelID: "bm-cpm", Quantity: 10000, UnitCost: 10},
		{ID: "y", ChannelID: "fb", FormatID: "gone", BuyingModelID: "bm-cpc", Quantity: 100, UnitCost: 1},
		{ID: "z", ChannelID: "fb", BuyingModelID: "bm-missing", Quantity: 3, UnitCost: 700},
	}

	got := ComputePlanMetrics(in)

	require.Len(t, got.LineItems, 3)
	x, y, z := got.LineItems[0], got.LineItems[1], got.LineItems[2]

	assert.Equal(t, "unknown", x.Channel)
	assert.True(t, x.Degraded)
	assert.Equal(t, 100.0, x.Cost)
	assert.InDelta(t, 10000, x.Metrics.Impressions, 1e-9)
	assert.Equal(t, 0.0, x.Metrics.Clicks)

	assert.Equal(t, "unknown", y.Format)
	assert.True(t, y.Degraded)
	assert.Equal(t, 0.0, y.Metrics.Impressions)

	assert.Equal(t, buying.Flat, z.BuyingModel)
	assert.Equal(t, 700.0, z.Cost)
	assert.Equal(t, buying.Metrics{}, z.Metrics)

	kinds := map[DiagnosticKind]int{}
	for _, d := range got.Diagnostics {
		kinds[d.Kind]++
	}
	assert.Equal(t, map[DiagnosticKind]int{MissingChannel: 1, MissingFormat: 1, MissingBuyingModel: 1}, kinds)
	assert.Equal(t, 900.0, got.TotalCostHT)
	assert.Equal(t, 800.0, got.BudgetByChannel["Facebook"])
	assert.Equal(t, 100.0, got.BudgetByChannel["unknown"])
	assert.True(t, got.Degraded())
}

func TestComputePlanMetrics_UnknownCodeTreatedAsFlat(t *testing.T) {
	in := scenario()
	in.Insertions = []models.Insertion{{ID: "odd", ChannelID: "fb", BuyingModelID: "bm-odd", Quantity: 500, UnitCost: 1200}}

	got := ComputePlanMetrics(in)

	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, UnknownBuyingModel, got.Diagnostics[0].Kind)
	assert.Equal(t, 1200.0, got.TotalCostHT)
	assert.Equal(t, 0.0, got.TotalImpressions)
	assert.True(t, got.LineItems[0].Degraded)
}

func TestComputePlanMetrics_BadNumbersCoerced(t *testing.T) {
	in := scenario()
	in.Insertions = []models.Insertion{
		{ID: "n", ChannelID: "fb", BuyingModelID: "bm-cpm", Quantity: math.NaN(), UnitCost: 5},
		{ID: "m", ChannelID: "fb", BuyingModelID: "bm-cpc", Quantity: 10, UnitCost: -2},
	}

	got := ComputePlanMetrics(in)

	assert.Equal(t, 0.0, got.TotalCostHT)
	assert.Len(t, got.Diagnostics, 2)
	for _, d := range got.Diagnostics {
		assert.Equal(t, InvalidNumber, d.Kind)
	}
	assert.False(t, math.IsNaN(got.TotalImpressions))
}

func TestComputePlanMetrics_StoredCostIsAuthoritative(t *testing.T) {
	in := scenario()
	in.Insertions[0].TotalCostHT = ptr(4000.004)
	in.Insertions[1].TotalCostHT = ptr(4500)

	got := ComputePlanMetrics(in)

	assert.Equal(t, 4000.0, got.LineItems[0].RecomputedCost)
	assert.Equal(t, 4500.0, got.LineItems[1].Cost)
	assert.Equal(t, 4000.0, got.LineItems[1].RecomputedCost)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, CostMismatch, got.Diagnostics[0].Kind)
	assert.Equal(t, "B", got.Diagnostics[0].InsertionID)
	assert.Equal(t, 8500.0, got.TotalCostHT)
}

func TestComputePlanMetrics_InvalidStoredCostFallsBack(t *testing.T) {
	in := scenario()
	in.Insertions[1].TotalCostHT = ptr(-1)

	got := ComputePlanMetrics(in)

	assert.Nil(t, got.LineItems[1].StoredCost)
	assert.Equal(t, 4000.0, got.LineItems[1].Cost)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, InvalidNumber, got.Diagnostics[0].Kind)
}

func TestComputePlanMetrics_IncludeFilter(t *testing.T) {
	in := scenario()
	in.Insertions[1].Status = "Cancelled"
	in.Include = ExcludeStatuses("cancelled")

	got := ComputePlanMetrics(in)

	assert.Len(t, got.LineItems, 1)
	assert.Equal(t, 1, got.Excluded)
	assert.Equal(t, 4000.0, got.TotalCostHT)
}

func TestComputePlanMetrics_ForeignInsertionExcluded(t *testing.T) {
	in := scenario()
	in.Insertions[1].PlanID = "other-plan"

	got := ComputePlanMetrics(in)

	assert.Len(t, got.LineItems, 1)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, ForeignInsertion, got.Diagnostics[0].Kind)
}

func TestComputePlanMetrics_VideoAndLumpSumOverride(t *testing.T) {
	in := scenario()
	in.Benchmarks = &models.Benchmarks{CtrDisplay: 1, VtrVideo: 40, ConversionRate: 5}
	in.Insertions = []models.Insertion{
		{ID: "v", ChannelID: "yt", FormatID: "vid", BuyingModelID: "bm-cpv", Quantity: 4000, UnitCost: 0.05},
		{ID: "f", ChannelID: "yt", FormatID: "vid", BuyingModelID: "bm-flat", Quantity: 1, UnitCost: 5000, ImpressionsOverride: ptr(100000)},
		{ID: "o", ChannelID: "fb", BuyingModelID: "bm-cpm", Quantity: 1000, UnitCost: 2, ClicksOverride: ptr(99)},
	}

	got := ComputePlanMetrics(in)

	v, f, o := got.LineItems[0], got.LineItems[1], got.LineItems[2]
	assert.Equal(t, 200.0, v.Cost)
	assert.InDelta(t, 10000, v.Metrics.Impressions, 1e-6)
	assert.InDelta(t, 100, v.Metrics.Clicks, 1e-6)
	assert.InDelta(t, 5, v.Metrics.Leads, 1e-6)

	assert.InDelta(t, 100000, f.Metrics.Impressions, 1e-6)
	assert.InDelta(t, 40000, f.Metrics.Views, 1e-6)
	assert.InDelta(t, 1000, f.Metrics.Clicks, 1e-6)

	assert.InDelta(t, 10, o.Metrics.Clicks, 1e-6)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, OverrideIgnored, got.Diagnostics[0].Kind)

	assert.InDelta(t, 44000, got.TotalViews, 1e-6)
	assert.Equal(t, map[string]float64{"YouTube": 5200, "Facebook": 2}, got.BudgetByChannel)
}

func TestEffectiveBenchmarks(t *testing.T) {
	plan := models.MediaPlan{}
	assert.Equal(t, buying.DefaultBenchmarks, EffectiveBenchmarks(nil, plan))

	plan.DefaultBenchmarks = &models.Benchmarks{CtrDisplay: 0.8}
	assert.Equal(t, 0.8, EffectiveBenchmarks(nil, plan).CtrDisplay)

	explicit := &models.Benchmarks{CtrSearch: 7}
	got := EffectiveBenchmarks(explicit, plan)
	assert.Equal(t, 7.0, got.CtrSearch)
	assert.Equal(t, 0.0, got.CtrDisplay)
}

func TestComputePlanMetrics_PartitionProperty(t *testing.T) {
	in := scenario()
	in.Insertions = nil
	for i := 0; i < 60; i++ {
		ch := []string{"fb", "gs", "yt"}[i%3]
		in.Insertions = append(in.Insertions, models.Insertion{
			ID: string(rune('a' + i%26)), ChannelID: ch, BuyingModelID: "bm-cpc",
			Quantity: float64(37 + i), UnitCost: 0.37 + float64(i)/100,
		})
	}

	got := ComputePlanMetrics(in)

	var parts float64
	for _, v := range got.BudgetByChannel {
		parts += v
	}
	assert.True(t, money.Equal(parts, got.TotalCostHT))
}

func TestComputePlanMetrics_SubCentStoredCostsPartition(t *testing.T) {
	in := scenario()
	in.Insertions = []models.Insertion{
		{ID: "s1", ChannelID: "fb", BuyingModelID: "bm-flat", TotalCostHT: ptr(0.005)},
		{ID: "s2", ChannelID: "gs", BuyingModelID: "bm-flat", TotalCostHT: ptr(0.005)},
		{ID: "s3", ChannelID: "yt", BuyingModelID: "bm-flat", TotalCostHT: ptr(0.005)},
		{ID: "s4", ChannelID: "yt", BuyingModelID: "bm-flat", TotalCostHT: ptr(10.004)},
	}

	got := ComputePlanMetrics(in)

	var parts float64
	for _, li := range got.LineItems {
		require.NotNil(t, li.StoredCost)
		assert.Equal(t, money.Round(*li.StoredCost), li.Cost)
		assert.Equal(t, li.Cost, *li.StoredCost)
	}
	for _, v := range got.BudgetByChannel {
		parts += v
	}
	assert.True(t, money.Equal(parts, got.TotalCostHT), "parts %v total %v", parts, got.TotalCostHT)
	assert.Equal(t, 10.0, got.LineItems[3].Cost)
}

func TestDisplay(t *testing.T) {
	in := scenario()
	in.Benchmarks = &models.Benchmarks{CtrDisplay: 1.234, CtrSearch: 5}

	d := ComputePlanMetrics(in).Display()

	assert.Equal(t, 8000.0, d.TotalCostHT)
	assert.Equal(t, 2468.0, d.Lines[0].Clicks)
	assert.Equal(t, 220000.0, d.TotalImpressions)
	assert.Equal(t, money.Round4((2468+1000)/220000.0), d.WeightedCTR)
	assert.False(t, d.Degraded)
	assert.Len(t, d.Lines, 2)
}
