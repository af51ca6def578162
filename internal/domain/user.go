package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the ledger view of an account. Identity (passwords, tokens) lives
// in another service; only the fields needed for settlement are kept here.
type User struct {
	ID            string          `json:"id"`
	Username      string          `json:"username"`
	Balance       decimal.Decimal `json:"balance"`
	EmailVerified bool            `json:"email_verified"`
	CreatedAt     time.Time       `json:"created_at"`
}
