package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore backed by the given connection pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const transactionSelectCols = `t.id::text, t.user_id, t.type, t.amount::text, t.status, t.created_at, t.updated_at`

func scanTransaction(row pgx.Row, withUsername bool) (domain.Transaction, error) {
	var t domain.Transaction
	var typ, status, amount string
	dest := []any{&t.ID, &t.UserID, &typ, &amount, &status, &t.CreatedAt, &t.UpdatedAt}
	if withUsername {
		dest = append(dest, &t.Username)
	}
	if err := row.Scan(dest...); err != nil {
		return domain.Transaction{}, err
	}
	t.Type = domain.TransactionType(typ)
	t.Status = domain.TransactionStatus(status)
	a, err := parseDecimal("amount", amount)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Amount = a
	return t, nil
}

func scanTransactionRows(rows pgx.Rows, withUsername bool) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows, withUsername)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListByUser returns a user's transactions, newest first.
func (s *TransactionStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionSelectCols + ` FROM transactions t
		WHERE t.user_id = $1 ORDER BY t.created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}
	defer rows.Close()

	txns, err := scanTransactionRows(rows, false)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transactions: %w", err)
	}
	return txns, nil
}

// ListRecent returns the newest transactions platform-wide with usernames.
func (s *TransactionStore) ListRecent(ctx context.Context, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionSelectCols + `, u.username
		FROM transactions t JOIN users u ON u.id = t.user_id
		ORDER BY t.created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent transactions: %w", err)
	}
	defer rows.Close()

	txns, err := scanTransactionRows(rows, true)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent transactions: %w", err)
	}
	return txns, nil
}

// CountPending counts withdrawals awaiting review across all users.
func (s *TransactionStore) CountPending(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE type = 'WITHDRAW' AND status = 'PENDING'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count pending transactions: %w", err)
	}
	return n, nil
}

func lockTransaction(ctx context.Context, q querier, id string) (domain.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	t, err := scanTransaction(q.QueryRow(ctx,
		`SELECT `+transactionSelectCols+` FROM transactions t WHERE t.id = $1::uuid FOR UPDATE`, id), false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, domain.ErrTransactionNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: lock transaction %s: %w", id, err)
	}
	return t, nil
}
