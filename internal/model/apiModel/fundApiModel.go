package apiModel

import "github.com/shopspring/decimal"

// fields may be absent or null in provider responses, hence NullDecimal

type FundSummary struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Type     string `json:"type"`
}

type FundDetail struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	FullName  string `json:"full_name"`
	Type      string `json:"type"`
	Rating    string `json:"rating"`
	RiskLevel string `json:"risk_level"`
}

type FundEstimate struct {
	Code          string              `json:"code"`
	EstimateValue decimal.NullDecimal `json:"estimate_value"`
	YesterdayNav  decimal.NullDecimal `json:"yesterday_nav"`
	EstimateTime  string              `json:"estimate_time"`
}

type ErrorDetail struct {
	Detail string `json:"detail"`
}
