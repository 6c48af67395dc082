package model

import "github.com/shopspring/decimal"

// FundReference is the composed reference data of one fund.
// The zero value with only Code set means "no authoritative data".
type FundReference struct {
	Code             string
	Name             string
	FullName         string
	Type             string
	RiskLevel        string
	CurrentValuation decimal.Decimal
	PriorValuation   decimal.Decimal
}

type FundSummary struct {
	Code     string
	Name     string
	FullName string
	Type     string
}

type FundDetail struct {
	Code      string
	Name      string
	FullName  string
	Type      string
	Rating    string
	RiskLevel string
}

type FundEstimate struct {
	Code          string
	EstimateValue decimal.Decimal
	YesterdayNav  decimal.Decimal
	EstimateTime  string
}
