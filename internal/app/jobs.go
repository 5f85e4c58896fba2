/**
 * @description
 * Scheduled job implementations for the fund-service.
 */
package app

import (
	"context"
	"log/slog"
	"time"
)

// IdleSweeper closes wizards left open.
type IdleSweeper interface {
	SweepIdle(ctx context.Context, olderThan time.Duration) int
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	sweeper   IdleSweeper
	wizardTTL time.Duration
	logger    *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(sweeper IdleSweeper, wizardTTL time.Duration, logger *slog.Logger) *Jobs {
	return &Jobs{
		sweeper:   sweeper,
		wizardTTL: wizardTTL,
		logger:    logger,
	}
}

// SweepIdleWizards closes wizards idle for longer than the configured TTL.
func (j *Jobs) SweepIdleWizards() {
	if j.wizardTTL <= 0 {
		j.logger.Debug("idle wizard sweep disabled")
		return
	}
	j.logger.Info("starting idle wizard sweep job")
	ctx := context.Background()

	closed := j.sweeper.SweepIdle(ctx, j.wizardTTL)

	j.logger.Info("idle wizard sweep job finished", "closed", closed)
}
