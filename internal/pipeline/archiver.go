package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/metrics"
)

// Archiver copies aged price history to cold storage on a cron schedule.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	metrics       *metrics.Metrics
	now           func() time.Time
	logger        *slog.Logger
}

// NewArchiver creates a new Archiver. m may be nil.
func NewArchiver(blobArchiver domain.Archiver, retentionDays int, m *metrics.Metrics, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		metrics:       m,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run archives the UTC day that ended retentionDays ago.
func (a *Archiver) Run(ctx context.Context) (int64, error) {
	cutoff := a.now().UTC().AddDate(0, 0, -a.retentionDays)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	n, err := a.blobArchiver.ArchiveSnapshots(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("archiving snapshots before %v: %w", cutoff, err)
	}
	a.metrics.AddArchivedRows(n)
	a.logger.Info("archive run complete", slog.Int64("snapshots_archived", n))
	return n, nil
}

// RunCron runs the archiver on a 5-field cron schedule until the context is
// cancelled.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	sched, err := ParseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
	}
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := sched.Next(a.now().UTC())
		if err != nil {
			return err
		}

		wait := time.Until(next)
		a.logger.Debug("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
