package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// UserStore reads and registers ledger accounts.
type UserStore interface {
	// Ensure creates the user with the given starting balance if absent and
	// returns the stored row either way.
	Ensure(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	SetEmailVerified(ctx context.Context, id string, verified bool) error
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int64, error)
	SumBalances(ctx context.Context) (decimal.Decimal, error)
}

// PositionStore reads positions outside of a ledger transaction.
type PositionStore interface {
	ListOpen(ctx context.Context, userID string) ([]Position, error)
	// ListClosed returns closed positions newest first. limit <= 0 means all.
	ListClosed(ctx context.Context, userID string, limit int) ([]Position, error)
}

// TransactionStore reads deposit and withdrawal records.
type TransactionStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]Transaction, error)
	// ListRecent returns the newest transactions across all users with the
	// owning username populated.
	ListRecent(ctx context.Context, limit int) ([]Transaction, error)
	CountPending(ctx context.Context) (int64, error)
}

// Ledger runs balance mutations atomically. fn receives a LedgerTx whose
// writes commit together when fn returns nil and roll back otherwise.
type Ledger interface {
	InTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the set of row-locking operations available inside a ledger
// transaction. Lock* methods hold the row until the transaction ends so
// concurrent mutations of the same user or record are serialized.
type LedgerTx interface {
	LockUser(ctx context.Context, userID string) (User, error)
	SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error

	CreatePosition(ctx context.Context, pos Position) error
	// LockPosition returns ErrPositionNotFound when the position does not
	// exist or belongs to another user.
	LockPosition(ctx context.Context, positionID, userID string) (Position, error)
	// SettlePosition transitions an OPEN position to CLOSED. It returns
	// ErrPositionClosed if the row is no longer OPEN.
	SettlePosition(ctx context.Context, positionID string, closePrice, profit decimal.Decimal, closedAt time.Time) error

	CreateTransaction(ctx context.Context, txn Transaction) error
	LockTransaction(ctx context.Context, id string) (Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, status TransactionStatus) error
}

// SnapshotStore persists historical price rows.
type SnapshotStore interface {
	InsertBatch(ctx context.Context, snaps []PriceSnapshot) error
	ClearAll(ctx context.Context) (int64, error)
	// ListByAsset returns snapshots for one asset created at or after since,
	// oldest first. A zero since returns the full history.
	ListByAsset(ctx context.Context, assetID string, since time.Time) ([]PriceSnapshot, error)
	ListRange(ctx context.Context, from, to time.Time) ([]PriceSnapshot, error)
}

// AuditFilter narrows an audit log query. Zero fields match everything.
type AuditFilter struct {
	// EventPrefix matches events such as "wallet." or "position.close".
	EventPrefix string
	// UserID matches the user_id recorded in the entry detail.
	UserID string
	Since  time.Time
	Limit  int
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	// List returns matching entries, newest first.
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}
