package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotSelectCols = `id, asset_id, price::text, bid_price::text, ask_price::text, source, created_at`

func scanSnapshotRows(rows pgx.Rows) ([]domain.PriceSnapshot, error) {
	var snaps []domain.PriceSnapshot
	for rows.Next() {
		var s domain.PriceSnapshot
		var price, bid, ask string
		if err := rows.Scan(&s.ID, &s.AssetID, &price, &bid, &ask, &s.Source, &s.CreatedAt); err != nil {
			return nil, err
		}
		var err error
		if s.Price, err = parseDecimal("price", price); err != nil {
			return nil, err
		}
		if s.BidPrice, err = parseDecimal("bid_price", bid); err != nil {
			return nil, err
		}
		if s.AskPrice, err = parseDecimal("ask_price", ask); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// InsertBatch writes all snapshots in one round trip inside a single
// transaction, so a batch is either fully stored or not at all.
func (s *SnapshotStore) InsertBatch(ctx context.Context, snaps []domain.PriceSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin snapshot batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO price_snapshots (asset_id, price, bid_price, ask_price, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, sn := range snaps {
		createdAt := sn.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		batch.Queue(query,
			sn.AssetID, sn.Price.String(), sn.BidPrice.String(), sn.AskPrice.String(),
			sn.Source, createdAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range snaps {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: insert snapshot batch item %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close snapshot batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit snapshot batch: %w", err)
	}
	return nil
}

// ClearAll deletes every snapshot and returns how many rows were removed.
func (s *SnapshotStore) ClearAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM price_snapshots`)
	if err != nil {
		return 0, fmt.Errorf("postgres: clear snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByAsset returns one asset's history in insertion order.
func (s *SnapshotStore) ListByAsset(ctx context.Context, assetID string, since time.Time) ([]domain.PriceSnapshot, error) {
	query := `SELECT ` + snapshotSelectCols + ` FROM price_snapshots WHERE asset_id = $1`
	args := []any{assetID}
	if !since.IsZero() {
		query += ` AND created_at >= $2`
		args = append(args, since)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots by asset: %w", err)
	}
	defer rows.Close()

	snaps, err := scanSnapshotRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan snapshots by asset: %w", err)
	}
	return snaps, nil
}

// ListRange returns snapshots created in [from, to), oldest first. The
// archiver reads one day at a time through it.
func (s *SnapshotStore) ListRange(ctx context.Context, from, to time.Time) ([]domain.PriceSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+snapshotSelectCols+` FROM price_snapshots
		 WHERE created_at >= $1 AND created_at < $2
		 ORDER BY id ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots in range: %w", err)
	}
	defer rows.Close()

	snaps, err := scanSnapshotRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan snapshots in range: %w", err)
	}
	return snaps, nil
}
