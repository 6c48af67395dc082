package aggregator

import (
	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/KotFed0t/fund_tracker_bot/internal/service/valuation"
	"github.com/shopspring/decimal"
)

// Summarize rolls enriched holdings up into portfolio totals.
// Not computable today estimates count as 0 in the sum and do not set HasTodayEstimate.
func Summarize(holdings []model.EnrichedHolding) model.PortfolioSummary {
	summary := model.PortfolioSummary{
		HoldingsCount:            len(holdings),
		TotalValue:               decimal.Zero,
		TotalCost:                decimal.Zero,
		TotalProfit:              decimal.Zero,
		TotalTodayEstimateProfit: decimal.Zero,
	}

	for _, h := range holdings {
		summary.TotalValue = summary.TotalValue.Add(h.Value)
		summary.TotalProfit = summary.TotalProfit.Add(h.Profit)
		summary.TotalCost = summary.TotalCost.Add(valuation.CostBasis(h.Holding))

		if h.TodayEstimateProfit.Valid {
			summary.TotalTodayEstimateProfit = summary.TotalTodayEstimateProfit.Add(h.TodayEstimateProfit.Decimal)
			summary.HasTodayEstimate = true
		}
	}

	summary.TotalProfitRate = valuation.Rate(summary.TotalProfit, summary.TotalCost)

	return summary
}
