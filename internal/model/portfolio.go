package model

import "github.com/shopspring/decimal"

type EnrichedHolding struct {
	Holding
	Reference  FundReference
	Value      decimal.Decimal
	Profit     decimal.Decimal
	ProfitRate decimal.Decimal
	BuyPrice   decimal.Decimal
	// Valid is false when no estimate can be derived, which is not the same as zero
	TodayEstimateProfit decimal.NullDecimal
}

// DisplayName prefers the reference name and falls back to the stored one.
func (h EnrichedHolding) DisplayName() string {
	if h.Reference.Name != "" {
		return h.Reference.Name
	}
	if h.Name != "" {
		return h.Name
	}
	return h.Code
}

type PortfolioSummary struct {
	HoldingsCount            int
	TotalValue               decimal.Decimal
	TotalCost                decimal.Decimal
	TotalProfit              decimal.Decimal
	TotalProfitRate          decimal.Decimal
	TotalTodayEstimateProfit decimal.Decimal
	HasTodayEstimate         bool
}

type PortfolioView struct {
	Holdings []EnrichedHolding
	Summary  PortfolioSummary
	// holdings could not be loaded, the view is empty rather than failed
	Stale bool
}
