package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/market"
	"github.com/alanyoungcy/skintrend/internal/metrics"
)

const snapshotLockKey = "snapshot:persist"

// SnapshotConfig controls which quotes are persisted and how.
type SnapshotConfig struct {
	// MinPrice excludes quotes whose current price is not strictly above it.
	MinPrice decimal.Decimal
	// BatchSize is the number of rows per insert.
	BatchSize int
	// LockTTL bounds the cross-replica lock; usually the persist interval.
	LockTTL time.Duration
}

// PersistResult reports one persister run.
type PersistResult struct {
	Eligible      int
	Written       int
	FailedBatches int
}

// SnapshotPersister periodically writes the live market to price history.
type SnapshotPersister struct {
	store     *market.Store
	snapshots domain.SnapshotStore
	locks     domain.LockManager
	metrics   *metrics.Metrics
	cfg       SnapshotConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewSnapshotPersister creates a SnapshotPersister. locks and m may be nil.
func NewSnapshotPersister(
	store *market.Store,
	snapshots domain.SnapshotStore,
	locks domain.LockManager,
	m *metrics.Metrics,
	cfg SnapshotConfig,
	logger *slog.Logger,
) *SnapshotPersister {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &SnapshotPersister{
		store:     store,
		snapshots: snapshots,
		locks:     locks,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "snapshot_persister")),
	}
}

// ClearHistory deletes every stored snapshot. It runs once at start-up when
// configured to.
func (p *SnapshotPersister) ClearHistory(ctx context.Context) error {
	n, err := p.snapshots.ClearAll(ctx)
	if err != nil {
		return fmt.Errorf("clearing price history: %w", err)
	}
	p.logger.Info("snapshot persister: cleared price history", slog.Int64("rows", n))
	return nil
}

// Run writes one snapshot of every eligible quote. Batches are inserted in
// order; a failed batch is logged and the remaining batches still run. If
// another replica holds the lock the run is skipped.
func (p *SnapshotPersister) Run(ctx context.Context) (PersistResult, error) {
	if p.locks != nil {
		unlock, err := p.locks.Acquire(ctx, snapshotLockKey, p.cfg.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			p.logger.Info("snapshot persister: lock held elsewhere, skipping run")
			return PersistResult{}, nil
		}
		if err != nil {
			p.logger.Warn("snapshot persister: lock unavailable, persisting anyway", slog.String("error", err.Error()))
		} else {
			defer unlock()
		}
	}

	rows := p.eligible()
	res := PersistResult{Eligible: len(rows)}
	if len(rows) == 0 {
		return res, nil
	}

	for start := 0; start < len(rows); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(rows))
		batch := rows[start:end]
		if err := p.snapshots.InsertBatch(ctx, batch); err != nil {
			res.FailedBatches++
			p.metrics.AddSnapshotRows("error", len(batch))
			p.logger.Error("snapshot persister: batch failed",
				slog.Int("offset", start),
				slog.Int("size", len(batch)),
				slog.String("error", err.Error()),
			)
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			continue
		}
		res.Written += len(batch)
		p.metrics.AddSnapshotRows("ok", len(batch))
	}

	p.logger.Info("snapshot persisted",
		slog.Int("eligible", res.Eligible),
		slog.Int("written", res.Written),
		slog.Int("failed_batches", res.FailedBatches),
	)
	if res.Written == 0 {
		return res, fmt.Errorf("all %d snapshot batches failed", res.FailedBatches)
	}
	return res, nil
}

// RunLoop persists on every interval until ctx is cancelled.
func (p *SnapshotPersister) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("snapshot persister loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.Run(ctx); err != nil {
				p.logger.Error("snapshot persist failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (p *SnapshotPersister) eligible() []domain.PriceSnapshot {
	now := p.now().UTC()
	quotes := p.store.All()
	rows := make([]domain.PriceSnapshot, 0, len(quotes))
	for _, q := range quotes {
		if !q.CurrentPrice.GreaterThan(p.cfg.MinPrice) {
			continue
		}
		rows = append(rows, domain.PriceSnapshot{
			AssetID:   q.AssetID,
			Price:     q.CurrentPrice,
			BidPrice:  q.BidPrice,
			AskPrice:  q.AskPrice,
			Source:    domain.SnapshotSourceHourly,
			CreatedAt: now,
		})
	}
	return rows
}
