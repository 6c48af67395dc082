package model

import "github.com/shopspring/decimal"

type User struct {
	ID       int64
	Username string
}

// Holding is the authority's copy of a position in one fund.
type Holding struct {
	ID            int64
	Code          string
	Name          string
	HoldingAmount decimal.Decimal
	ShareCount    decimal.Decimal
	CurrentProfit decimal.Decimal
	Notes         string
}

// HoldingRequest carries the full field set of create and update calls.
type HoldingRequest struct {
	Code          string
	Name          string
	ShareCount    decimal.Decimal
	HoldingAmount decimal.Decimal
	CurrentProfit decimal.Decimal
	Notes         string
}

type AddIntent struct {
	Code          string
	Name          string
	HoldingAmount decimal.Decimal
	CurrentProfit decimal.Decimal
	Notes         string
}

// HoldingChanges is a partial update, nil fields keep the existing value.
type HoldingChanges struct {
	HoldingAmount *decimal.Decimal
	ShareCount    *decimal.Decimal
	CurrentProfit *decimal.Decimal
	Notes         *string
}
