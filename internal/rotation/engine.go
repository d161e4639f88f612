// Package rotation decides which pool items are on offer. It owns the
// weighted selection, the "is a rotation due" policy and the scheduler that
// fires rotations at startup and on every interval.
package rotation

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

const (
	DefaultInterval = 24 * time.Hour
	DefaultCount    = 3
)

// Catalog is the part of the market store the engine reads and writes.
type Catalog interface {
	Pool() map[uuid.UUID]domain.MarketItem
	ActiveItems() []domain.MarketItem
	RotationClock() time.Time
	ApplyRotation(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Config controls rotation cadence and size.
type Config struct {
	Interval time.Duration
	Count    int
}

// Result describes one completed rotation.
type Result struct {
	Selected  []uuid.UUID
	PoolSize  int
	RotatedAt time.Time
}

// Engine performs rotations against a Catalog.
type Engine struct {
	catalog Catalog
	cfg     Config
	now     func() time.Time
	rng     IntNSource
	logger  *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithRand sets the random source used for selection.
func WithRand(rng IntNSource) EngineOption {
	return func(e *Engine) { e.rng = rng }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an Engine. Zero Interval or Count fall back to the
// defaults.
func NewEngine(catalog Catalog, cfg Config, opts ...EngineOption) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Count <= 0 {
		cfg.Count = DefaultCount
	}
	e := &Engine{
		catalog: catalog,
		cfg:     cfg,
		now:     time.Now,
		rng:     globalSource{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "rotation"))
	return e
}

// Interval returns the configured rotation interval.
func (e *Engine) Interval() time.Duration { return e.cfg.Interval }

// IsDue reports whether a rotation should run now: the interval has elapsed
// since the last rotation, or nothing is currently on offer.
func (e *Engine) IsDue() bool {
	if len(e.catalog.ActiveItems()) == 0 {
		return true
	}
	return e.now().Sub(e.catalog.RotationClock()) >= e.cfg.Interval
}

// TimeUntilNextRotation returns how long until the interval elapses, never
// negative.
func (e *Engine) TimeUntilNextRotation() time.Duration {
	remaining := e.cfg.Interval - e.now().Sub(e.catalog.RotationClock())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PerformRotation selects a new active set, clears the ledger and advances
// the clock. With an empty pool nothing changes and domain.ErrEmptyPool is
// returned. A failed save is returned wrapped in domain.ErrPersist after the
// in-memory rotation has taken effect.
func (e *Engine) PerformRotation(ctx context.Context) (Result, error) {
	pool := e.catalog.Pool()
	if len(pool) == 0 {
		e.logger.WarnContext(ctx, "cannot rotate: item pool is empty")
		return Result{}, domain.ErrEmptyPool
	}

	candidates := make([]Candidate, 0, len(pool))
	for id, item := range pool {
		candidates = append(candidates, Candidate{ID: id, Weight: item.Weight()})
	}
	// Map order is random; sort so a seeded source reproduces a rotation.
	slices.SortFunc(candidates, func(a, b Candidate) int {
		return compareIDs(a.ID, b.ID)
	})

	selected := SelectWeighted(candidates, min(e.cfg.Count, len(candidates)), e.rng)
	at := e.now()
	res := Result{Selected: selected, PoolSize: len(pool), RotatedAt: at}

	if err := e.catalog.ApplyRotation(ctx, selected, at); err != nil {
		return res, fmt.Errorf("rotation: apply: %w", err)
	}

	e.logger.InfoContext(ctx, "market rotated",
		slog.Int("selected", len(selected)),
		slog.Int("pool", len(pool)),
		slog.Time("rotated_at", at),
	)
	return res, nil
}

func compareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// FormatRemaining renders a duration the way the shop header shows it:
// "5h 12m", "12m 5s" or "5s".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
