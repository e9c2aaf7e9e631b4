package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/capturecabinet/cabinet/internal/services"
	"github.com/capturecabinet/cabinet/pkg/logger"
)

const (
	defaultPruneSpec   = "@hourly"
	defaultRefreshSpec = "*/5 * * * *"
)

// Cleaner coordinates background catalog upkeep: pruning assignments whose
// assets vanished from the photo source and refreshing the unassigned view.
type Cleaner struct {
	engine       *services.AssignmentService
	cron         *cron.Cron
	log          *zap.Logger
	recentWindow time.Duration

	pruneSchedule   string
	refreshSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithPruneSchedule overrides the cron specification for assignment pruning.
func WithPruneSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.pruneSchedule = spec
		}
	}
}

// WithRefreshSchedule overrides the cron specification for the unassigned refresh.
func WithRefreshSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.refreshSchedule = spec
		}
	}
}

// WithRecentWindow adjusts how far back the unassigned refresh looks.
func WithRecentWindow(window time.Duration) Option {
	return func(cleaner *Cleaner) {
		if window > 0 {
			cleaner.recentWindow = window
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(engine *services.AssignmentService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		engine:          engine,
		recentWindow:    24 * time.Hour,
		pruneSchedule:   defaultPruneSpec,
		refreshSchedule: defaultRefreshSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers upkeep jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.engine == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.pruneSchedule, func() {
		ctx := context.Background()
		removed, err := c.engine.PruneMissingAssets(ctx)
		if err != nil {
			c.log.Warn("assignment prune failed", zap.Error(err))
			return
		}
		if removed > 0 {
			c.log.Info("pruned stale assignments", zap.Int64("records", removed))
		}
	}); err != nil {
		return err
	}

	if _, err := c.cron.AddFunc(c.refreshSchedule, func() {
		ctx := context.Background()
		if _, err := c.engine.UnassignedRecent(ctx, time.Now().Add(-c.recentWindow)); err != nil {
			c.log.Warn("unassigned refresh failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all upkeep routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.engine == nil {
		return nil
	}

	var errs error

	if _, err := c.engine.PruneMissingAssets(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.engine.UnassignedRecent(ctx, time.Now().Add(-c.recentWindow)); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}
