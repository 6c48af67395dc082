package service

import "errors"

var (
	ErrNotFound  = errors.New("error not found")
	ErrDuplicate = errors.New("error fund already in holdings")
	ErrNoSession = errors.New("error no active session")
	// the holdings authority can't be reached, the session is unknown
	ErrUnavailable = errors.New("error holdings temporarily unavailable")

	ErrInvalidCode     = errors.New("error fund code must be 6 digits")
	ErrInvalidAmount   = errors.New("error holding amount must be positive")
	ErrProfitBelowLoss = errors.New("error profit can't be below minus holding amount")

	ErrEmptyInput        = errors.New("error empty input")
	ErrNothingToAdd      = errors.New("error no ready candidates to add")
	ErrBatchNotPreviewed = errors.New("error batch is not previewed")
	ErrBatchBusy         = errors.New("error batch operation in progress")

	ErrBadCredentials   = errors.New("error wrong username or password")
	ErrLoginUnsupported = errors.New("error holdings backend has no login")
)
