package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// Ledger implements domain.Ledger. Each InTx call is one READ COMMITTED
// transaction; row locks taken through LedgerTx serialize concurrent
// mutations of the same user, position or transaction.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a new Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// InTx runs fn inside a transaction, committing only if fn returns nil.
func (l *Ledger) InTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin ledger tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit ledger tx: %w", err)
	}
	committed = true
	return nil
}

type ledgerTx struct {
	tx pgx.Tx
}

func (t *ledgerTx) LockUser(ctx context.Context, userID string) (domain.User, error) {
	return getUser(ctx, t.tx, userID, true)
}

func (t *ledgerTx) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE users SET balance = $2, updated_at = NOW() WHERE id = $1`,
		userID, domain.RoundMoney(balance).String())
	if err != nil {
		return fmt.Errorf("postgres: set balance %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (t *ledgerTx) CreatePosition(ctx context.Context, pos domain.Position) error {
	const query = `
		INSERT INTO positions (id, user_id, asset_id, direction, entry_price, margin, status, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := t.tx.Exec(ctx, query,
		pos.ID, pos.UserID, pos.AssetID, string(pos.Direction),
		pos.EntryPrice.String(), pos.Margin.String(), string(pos.Status), pos.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: create position: %w", err)
	}
	return nil
}

func (t *ledgerTx) LockPosition(ctx context.Context, positionID, userID string) (domain.Position, error) {
	return lockPosition(ctx, t.tx, positionID, userID)
}

func (t *ledgerTx) SettlePosition(ctx context.Context, positionID string, closePrice, profit decimal.Decimal, closedAt time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE positions
		SET status = 'CLOSED', close_price = $2, profit = $3, closed_at = $4
		WHERE id = $1::uuid AND status = 'OPEN'`,
		positionID, closePrice.String(), profit.String(), closedAt)
	if err != nil {
		return fmt.Errorf("postgres: settle position %s: %w", positionID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPositionClosed
	}
	return nil
}

func (t *ledgerTx) CreateTransaction(ctx context.Context, txn domain.Transaction) error {
	const query = `
		INSERT INTO transactions (id, user_id, type, amount, status, created_at, updated_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $6)`
	if _, err := t.tx.Exec(ctx, query,
		txn.ID, txn.UserID, string(txn.Type), txn.Amount.String(), string(txn.Status), txn.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: create transaction: %w", err)
	}
	return nil
}

func (t *ledgerTx) LockTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	return lockTransaction(ctx, t.tx, id)
}

func (t *ledgerTx) UpdateTransactionStatus(ctx context.Context, id string, status domain.TransactionStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE transactions SET status = $2, updated_at = NOW() WHERE id = $1::uuid`, id, string(status))
	if err != nil {
		return fmt.Errorf("postgres: update transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}
