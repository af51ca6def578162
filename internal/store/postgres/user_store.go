package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userSelectCols = `id, username, balance::text, email_verified, created_at`

func scanUserRow(row pgx.Row) (domain.User, error) {
	var u domain.User
	var balance string
	if err := row.Scan(&u.ID, &u.Username, &balance, &u.EmailVerified, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	b, err := parseDecimal("balance", balance)
	if err != nil {
		return domain.User{}, err
	}
	u.Balance = b
	return u, nil
}

func getUser(ctx context.Context, q querier, id string, forUpdate bool) (domain.User, error) {
	query := `SELECT ` + userSelectCols + ` FROM users WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	u, err := scanUserRow(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", id, err)
	}
	return u, nil
}

// Ensure inserts the user if no row with the same id exists and returns the
// stored row. An existing user's balance is never touched.
func (s *UserStore) Ensure(ctx context.Context, user domain.User) (domain.User, error) {
	const query = `
		INSERT INTO users (id, username, balance, email_verified)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query,
		user.ID, user.Username, domain.RoundMoney(user.Balance).String(), user.EmailVerified,
	); err != nil {
		return domain.User{}, fmt.Errorf("postgres: ensure user %s: %w", user.ID, err)
	}
	return getUser(ctx, s.pool, user.ID, false)
}

// GetByID returns domain.ErrUserNotFound when the user does not exist.
func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	return getUser(ctx, s.pool, id, false)
}

// SetEmailVerified records the verification flag pushed by the identity
// service.
func (s *UserStore) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET email_verified = $2, updated_at = NOW() WHERE id = $1`, id, verified)
	if err != nil {
		return fmt.Errorf("postgres: set email verified %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List returns every user, oldest first.
func (s *UserStore) List(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userSelectCols+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list users rows: %w", err)
	}
	return users, nil
}

// Count returns the number of registered users.
func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count users: %w", err)
	}
	return n, nil
}

// SumBalances returns the total of every user balance.
func (s *UserStore) SumBalances(ctx context.Context) (decimal.Decimal, error) {
	var total string
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0)::text FROM users`).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("postgres: sum balances: %w", err)
	}
	return parseDecimal("sum(balance)", total)
}
