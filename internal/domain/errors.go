package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")

	// Validation.
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidDirection = errors.New("direction must be LONG or SHORT")
	ErrBelowMinimum     = errors.New("amount below minimum withdrawal")

	// Lookup.
	ErrUserNotFound        = errors.New("user not found")
	ErrPositionNotFound    = errors.New("position not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAssetNotTradable    = errors.New("asset not tradable")

	// Preconditions.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrEmailNotVerified  = errors.New("email not verified")
	ErrPositionClosed    = errors.New("position already closed")
	ErrAlreadyProcessed  = errors.New("transaction already processed")

	// ErrQuoteUnavailable means there is no live price to settle against.
	// Callers may retry once the market has a quote for the asset.
	ErrQuoteUnavailable = errors.New("live quote unavailable")
)
