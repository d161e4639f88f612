package rotation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

// Rotator performs a rotation. The shop service implements it so scheduled
// rotations take the same lock as purchases.
type Rotator interface {
	Rotate(ctx context.Context) (Result, error)
}

// Scheduler fires a catch-up rotation at startup when one is due, then a
// rotation on every interval tick.
type Scheduler struct {
	engine  *Engine
	rotator Rotator
	logger  *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(engine *Engine, rotator Rotator, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		engine:  engine,
		rotator: rotator,
		logger:  logger.With(slog.String("component", "rotation_scheduler")),
	}
}

// Run blocks until ctx is cancelled. Call in a goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.engine.IsDue() {
		s.rotate(ctx, "catch_up")
	} else {
		s.logger.InfoContext(ctx, "no catch-up rotation needed",
			slog.Duration("next_in", s.engine.TimeUntilNextRotation()),
		)
	}

	ticker := time.NewTicker(s.engine.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.rotate(ctx, "scheduled")
		}
	}
}

func (s *Scheduler) rotate(ctx context.Context, trigger string) {
	res, err := s.rotator.Rotate(ctx)
	switch {
	case errors.Is(err, domain.ErrEmptyPool):
		// Already logged by the engine.
	case err != nil:
		s.logger.ErrorContext(ctx, "rotation failed",
			slog.String("trigger", trigger),
			slog.String("error", err.Error()),
		)
	default:
		s.logger.InfoContext(ctx, "rotation triggered",
			slog.String("trigger", trigger),
			slog.Int("selected", len(res.Selected)),
		)
	}
}
