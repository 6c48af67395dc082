// Package valuation derives per-holding metrics from a holding and its fund reference.
// All functions are pure and never fail: missing data gives zero or a not-valid estimate.
package valuation

import (
	"github.com/KotFed0t/fund_tracker_bot/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ShareCount is amount / currentValuation, or 0 when the valuation is unknown.
func ShareCount(holdingAmount, currentValuation decimal.Decimal) decimal.Decimal {
	if !currentValuation.IsPositive() || !holdingAmount.IsPositive() {
		return decimal.Zero
	}
	return holdingAmount.Div(currentValuation)
}

func HoldingValue(h model.Holding, ref model.FundReference) decimal.Decimal {
	return ref.CurrentValuation.Mul(h.ShareCount)
}

// Profit is the persisted profit, it is not recomputed from prices.
func Profit(h model.Holding) decimal.Decimal {
	return h.CurrentProfit
}

// CostBasis is the imputed invested amount.
func CostBasis(h model.Holding) decimal.Decimal {
	return h.HoldingAmount.Sub(h.CurrentProfit)
}

func ProfitRate(h model.Holding) decimal.Decimal {
	return Rate(h.CurrentProfit, CostBasis(h))
}

// Rate returns profit / cost * 100, 0 for a non-positive cost.
func Rate(profit, cost decimal.Decimal) decimal.Decimal {
	if !cost.IsPositive() {
		return decimal.Zero
	}
	return profit.Div(cost).Mul(hundred)
}

// TodayEstimateProfit is the change since the prior valuation scaled by held shares.
// When no share count is stored it is implied from amount / prior valuation.
func TodayEstimateProfit(h model.Holding, ref model.FundReference) decimal.NullDecimal {
	if !ref.PriorValuation.IsPositive() || !ref.CurrentValuation.IsPositive() {
		return decimal.NullDecimal{}
	}

	shares := h.ShareCount
	if !shares.IsPositive() {
		if !h.HoldingAmount.IsPositive() {
			return decimal.NullDecimal{}
		}
		shares = h.HoldingAmount.Div(ref.PriorValuation)
	}

	return decimal.NewNullDecimal(ref.CurrentValuation.Sub(ref.PriorValuation).Mul(shares))
}

// BuyPrice is the cost per share, informational only.
func BuyPrice(h model.Holding) decimal.Decimal {
	if !h.ShareCount.IsPositive() {
		return decimal.Zero
	}
	return CostBasis(h).Div(h.ShareCount)
}

func Enrich(h model.Holding, ref model.FundReference) model.EnrichedHolding {
	return model.EnrichedHolding{
		Holding:             h,
		Reference:           ref,
		Value:               HoldingValue(h, ref),
		Profit:              Profit(h),
		ProfitRate:          ProfitRate(h),
		BuyPrice:            BuyPrice(h),
		TodayEstimateProfit: TodayEstimateProfit(h, ref),
	}
}
