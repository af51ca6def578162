package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money moving in or out of an account.
type TransactionType string

const (
	TransactionDeposit  TransactionType = "DEPOSIT"
	TransactionWithdraw TransactionType = "WITHDRAW"
)

// TransactionStatus is the lifecycle of a ledger transaction. Withdrawals start
// PENDING and are moved to COMPLETED or REJECTED by an administrator.
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionPending   TransactionStatus = "PENDING"
	TransactionRejected  TransactionStatus = "REJECTED"
)

// Transaction is a deposit or withdrawal record.
type Transaction struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Username  string            `json:"username,omitempty"`
	Type      TransactionType   `json:"type"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    TransactionStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// AdminStats is the platform-wide view for administrators.
type AdminStats struct {
	TotalUsers           int             `json:"totalUsers"`
	TotalPlatformBalance decimal.Decimal `json:"totalPlatformBalance"`
	PendingWithdrawals   int             `json:"pendingWithdrawals"`
	Users                []User          `json:"users"`
	RecentTransactions   []Transaction   `json:"recentTransactions"`
}
