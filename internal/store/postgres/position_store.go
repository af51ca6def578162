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

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id::text, user_id, asset_id, direction, entry_price::text,
	margin::text, status, close_price::text, profit::text, created_at, closed_at`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var direction, status, entry, margin string
	var closePrice, profit *string
	if err := row.Scan(
		&p.ID, &p.UserID, &p.AssetID, &direction, &entry,
		&margin, &status, &closePrice, &profit, &p.CreatedAt, &p.ClosedAt,
	); err != nil {
		return domain.Position{}, err
	}
	p.Direction = domain.Direction(direction)
	p.Status = domain.PositionStatus(status)

	var err error
	if p.EntryPrice, err = parseDecimal("entry_price", entry); err != nil {
		return domain.Position{}, err
	}
	if p.Margin, err = parseDecimal("margin", margin); err != nil {
		return domain.Position{}, err
	}
	if p.ClosePrice, err = parseOptionalDecimal("close_price", closePrice); err != nil {
		return domain.Position{}, err
	}
	if p.Profit, err = parseOptionalDecimal("profit", profit); err != nil {
		return domain.Position{}, err
	}
	return p, nil
}

// listPositions runs query and scans every row. rows is closed by CollectRows.
func (s *PositionStore) listPositions(ctx context.Context, what, query string, args ...any) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s positions: %w", what, err)
	}
	positions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Position, error) {
		return scanPositionRow(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan %s positions: %w", what, err)
	}
	return positions, nil
}

// ListOpen returns a user's OPEN positions, newest first.
func (s *PositionStore) ListOpen(ctx context.Context, userID string) ([]domain.Position, error) {
	return s.listPositions(ctx, "open",
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE user_id = $1 AND status = 'OPEN'
		 ORDER BY created_at DESC`, userID)
}

// ListClosed returns up to limit CLOSED positions, most recently closed
// first. limit <= 0 returns all of them.
func (s *PositionStore) ListClosed(ctx context.Context, userID string, limit int) ([]domain.Position, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.listPositions(ctx, "closed",
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE user_id = $1 AND status = 'CLOSED'
		 ORDER BY closed_at DESC NULLS LAST, created_at DESC
		 LIMIT NULLIF($2::int, -1)`, userID, limit)
}

func lockPosition(ctx context.Context, q querier, positionID, userID string) (domain.Position, error) {
	if _, err := uuid.Parse(positionID); err != nil {
		return domain.Position{}, domain.ErrPositionNotFound
	}
	p, err := scanPositionRow(q.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE id = $1::uuid AND user_id = $2
		 FOR UPDATE`, positionID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrPositionNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: lock position %s: %w", positionID, err)
	}
	return p, nil
}
