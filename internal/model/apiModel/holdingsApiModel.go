package apiModel

import "github.com/shopspring/decimal"

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Holding struct {
	ID            int64               `json:"id"`
	UserID        int64               `json:"user_id"`
	Code          string              `json:"code"`
	Name          string              `json:"name"`
	HoldingCount  decimal.NullDecimal `json:"holding_count"`
	HoldingAmount decimal.NullDecimal `json:"holding_amount"`
	CurrentProfit decimal.NullDecimal `json:"current_profit"`
	Notes         string              `json:"notes,omitempty"`
}

// the backend validates numbers as JSON floats, not decimal strings
type HoldingRequest struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	HoldingCount  float64 `json:"holding_count"`
	HoldingAmount float64 `json:"holding_amount"`
	CurrentProfit float64 `json:"current_profit"`
	Notes         string  `json:"notes,omitempty"`
}
