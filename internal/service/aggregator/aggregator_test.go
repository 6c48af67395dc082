package aggregator

import (
	"testing"

	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/service/valuation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func enriched(amount, profit, shares, current, prior string) model.EnrichedHolding {
	h := model.Holding{HoldingAmount: d(amount), CurrentProfit: d(profit), ShareCount: d(shares)}
	ref := model.FundReference{CurrentValuation: d(current), PriorValuation: d(prior)}
	return valuation.Enrich(h, ref)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)

	assert.Equal(t, 0, s.HoldingsCount)
	assert.True(t, s.TotalProfit.IsZero())
	assert.True(t, s.TotalValue.IsZero())
	assert.True(t, s.TotalProfitRate.IsZero())
	assert.True(t, s.TotalTodayEstimateProfit.IsZero())
	assert.False(t, s.HasTodayEstimate)
}

func TestSummarize_TotalProfitIsSumOfProfits(t *testing.T) {
	holdings := []model.EnrichedHolding{
		enriched("1000", "150", "800", "1.25", "1.2"),
		enriched("500", "-120", "0", "0", "0"),
		enriched("300", "0", "100", "3", "0"),
	}

	s := Summarize(holdings)

	assert.Equal(t, 3, s.HoldingsCount)
	assert.True(t, s.TotalProfit.Equal(d("30")), "got %s", s.TotalProfit)
	// cost basis 850 + 620 + 300
	assert.True(t, s.TotalCost.Equal(d("1770")), "got %s", s.TotalCost)
	assert.InDelta(t, 30.0/1770*100, s.TotalProfitRate.InexactFloat64(), 1e-9)
	// 1000 + 0 + 300
	assert.True(t, s.TotalValue.Equal(d("1300")), "got %s", s.TotalValue)
}

func TestSummarize_TodayEstimateFlag(t *testing.T) {
	withoutEstimate := []model.EnrichedHolding{
		enriched("1000", "0", "10", "1.2", "0"),
		enriched("1000", "0", "10", "0", "0"),
	}

	s := Summarize(withoutEstimate)
	assert.False(t, s.HasTodayEstimate)
	assert.True(t, s.TotalTodayEstimateProfit.IsZero())

	mixed := append(withoutEstimate, enriched("1000", "0", "100", "1.2", "1.1"))

	s = Summarize(mixed)
	assert.True(t, s.HasTodayEstimate)
	assert.InDelta(t, 10.0, s.TotalTodayEstimateProfit.InexactFloat64(), 1e-9)
}

func TestSummarize_ZeroEstimateStillCounts(t *testing.T) {
	s := Summarize([]model.EnrichedHolding{enriched("1000", "0", "100", "1.1", "1.1")})

	assert.True(t, s.HasTodayEstimate)
	assert.True(t, s.TotalTodayEstimateProfit.IsZero())
}

func TestSummarize_NonPositiveTotalCost(t *testing.T) {
	s := Summarize([]model.EnrichedHolding{enriched("100", "100", "0", "0", "0")})

	assert.True(t, s.TotalProfitRate.IsZero())
}
