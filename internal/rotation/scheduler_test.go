package rotation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingRotator struct {
	engine *Engine
	calls  atomic.Int32
}

func (r *countingRotator) Rotate(ctx context.Context) (Result, error) {
	r.calls.Add(1)
	return r.engine.PerformRotation(ctx)
}

func TestSchedulerRunsCatchUpThenTicks(t *testing.T) {
	store, _, clk := setup(t, 1, 2)
	engine := NewEngine(store, Config{Interval: 20 * time.Millisecond, Count: 1},
		WithClock(clk.Now), WithRand(seeded()), WithLogger(quietLogger()))
	rot := &countingRotator{engine: engine}
	sched := NewScheduler(engine, rot, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	err := sched.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if n := rot.calls.Load(); n < 3 {
		t.Fatalf("expected catch-up plus ticks, got %d calls", n)
	}
}

func TestSchedulerSkipsCatchUpWhenNotDue(t *testing.T) {
	store, _, clk := setup(t, 1)
	engine := NewEngine(store, Config{Interval: time.Hour, Count: 1},
		WithClock(clk.Now), WithRand(seeded()), WithLogger(quietLogger()))
	if _, err := engine.PerformRotation(context.Background()); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	rot := &countingRotator{engine: engine}
	sched := NewScheduler(engine, rot, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_ = sched.Run(ctx)
	if n := rot.calls.Load(); n != 0 {
		t.Fatalf("expected no rotation, got %d", n)
	}
}
