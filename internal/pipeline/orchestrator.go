package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Intervals configures the orchestrator's timers.
type Intervals struct {
	Sync        time.Duration
	Tick        time.Duration
	Snapshot    time.Duration
	ArchiveCron string
}

// Orchestrator runs the market pipelines: reference sync, ticks, snapshot
// persistence and, when configured, cold-storage archival.
type Orchestrator struct {
	refSync   *ReferenceSync
	ticker    *TickGenerator
	persister *SnapshotPersister
	archiver  *Archiver
	intervals Intervals
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator. archiver may be nil.
func NewOrchestrator(
	refSync *ReferenceSync,
	ticker *TickGenerator,
	persister *SnapshotPersister,
	archiver *Archiver,
	intervals Intervals,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		refSync:   refSync,
		ticker:    ticker,
		persister: persister,
		archiver:  archiver,
		intervals: intervals,
		logger:    logger,
	}
}

// Run starts every sub-pipeline in an errgroup. Each loop runs until ctx is
// cancelled; a non-context error from any loop cancels the others.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("sync_interval", o.intervals.Sync),
		slog.Duration("tick_interval", o.intervals.Tick),
		slog.Duration("snapshot_interval", o.intervals.Snapshot),
		slog.Bool("archiver", o.archiver != nil),
	)

	o.refSync.WarmStart(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.refSync.RunLoop(ctx, o.intervals.Sync)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("reference sync: %w", err)
	})

	g.Go(func() error {
		err := o.ticker.RunLoop(ctx, o.intervals.Tick)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tick generator: %w", err)
	})

	g.Go(func() error {
		err := o.persister.RunLoop(ctx, o.intervals.Snapshot)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("snapshot persister: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunCron(ctx, o.intervals.ArchiveCron)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
