// Package market holds the in-memory catalog: the item pool, the active set,
// the per-actor purchase ledger and the rotation clock. Every mutation is
// written through to a domain.SnapshotStore before the call returns.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

// Store is the catalog owner. It is safe for concurrent use; mutations hold
// the write lock through the synchronous save so snapshots reach the backend
// in mutation order.
type Store struct {
	backend domain.SnapshotStore
	codec   domain.ResourceCodec
	now     func() time.Time
	newID   func() uuid.UUID
	logger  *slog.Logger

	mu           sync.RWMutex
	pool         map[uuid.UUID]domain.MarketItem
	active       []uuid.UUID
	purchases    map[uuid.UUID]map[uuid.UUID]struct{}
	lastRotation time.Time
	skipped      []domain.SkippedRecord
	// dirty is set while a change has not reached the backend.
	dirty bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides uuid.New for new pool items.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *Store) { s.newID = gen }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates an empty Store backed by backend. Call Load to populate it.
func New(backend domain.SnapshotStore, codec domain.ResourceCodec, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		codec:   codec,
		now:     time.Now,
		newID:   uuid.New,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "market_store"))
	s.reset()
	s.lastRotation = s.now()
	return s
}

func (s *Store) reset() {
	s.pool = make(map[uuid.UUID]domain.MarketItem)
	s.active = nil
	s.purchases = make(map[uuid.UUID]map[uuid.UUID]struct{})
	s.skipped = nil
	s.dirty = false
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Load replaces the in-memory catalog with the backend's snapshot. Records
// that fail to parse are skipped and reported through Diagnostics. If the
// backend itself fails the store is left empty and the error is returned.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.backend.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	if err != nil {
		s.lastRotation = s.now()
		s.logger.ErrorContext(ctx, "snapshot load failed, starting with an empty catalog",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("market: load snapshot: %w", err)
	}

	for _, rec := range snap.Skipped {
		s.skip(ctx, rec.Section, rec.Key, rec.Reason)
	}

	for key, rec := range snap.Pool {
		item, err := s.decodeItem(key, rec)
		if err != nil {
			s.skip(ctx, domain.SectionPool, key, err.Error())
			continue
		}
		s.pool[item.ID()] = item
	}

	for _, raw := range snap.Active {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.skip(ctx, domain.SectionActive, raw, "invalid item id")
			continue
		}
		s.active = append(s.active, id)
	}

	for actorKey, items := range snap.Purchases {
		actor, err := uuid.Parse(actorKey)
		if err != nil {
			s.skip(ctx, domain.SectionPurchases, actorKey, "invalid actor id")
			continue
		}
		set := make(map[uuid.UUID]struct{}, len(items))
		for _, raw := range items {
			id, err := uuid.Parse(raw)
			if err != nil {
				s.skip(ctx, domain.SectionPurchases, actorKey+"/"+raw, "invalid item id")
				continue
			}
			set[id] = struct{}{}
		}
		s.purchases[actor] = set
	}

	if snap.LastRotation > 0 {
		s.lastRotation = time.UnixMilli(snap.LastRotation)
	} else {
		s.lastRotation = s.now()
	}

	s.logger.InfoContext(ctx, "catalog loaded",
		slog.Int("pool", len(s.pool)),
		slog.Int("active", len(s.active)),
		slog.Int("actors", len(s.purchases)),
		slog.Int("skipped", len(s.skipped)),
		slog.Time("last_rotation", s.lastRotation),
	)
	return nil
}

func (s *Store) decodeItem(key string, rec domain.ItemRecord) (domain.MarketItem, error) {
	id, err := uuid.Parse(key)
	if err != nil {
		return domain.MarketItem{}, fmt.Errorf("invalid item id: %w", err)
	}
	reward, err := s.codec.Decode(rec.Item)
	if err != nil {
		return domain.MarketItem{}, fmt.Errorf("reward: %w", err)
	}
	costs := make([]domain.Resource, 0, len(rec.Costs))
	for i, blob := range rec.Costs {
		c, err := s.codec.Decode(blob)
		if err != nil {
			return domain.MarketItem{}, fmt.Errorf("cost %d: %w", i, err)
		}
		costs = append(costs, c)
	}
	weight := rec.Weight
	if weight == 0 {
		weight = 1
	}
	return domain.NewMarketItem(id, reward, costs, weight), nil
}

func (s *Store) skip(ctx context.Context, section, key, reason string) {
	s.skipped = append(s.skipped, domain.SkippedRecord{Section: section, Key: key, Reason: reason})
	s.logger.WarnContext(ctx, "skipping malformed record",
		slog.String("section", section),
		slog.String("key", key),
		slog.String("reason", reason),
	)
}

// Diagnostics returns the records skipped by the last Load.
func (s *Store) Diagnostics() []domain.SkippedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SkippedRecord, len(s.skipped))
	copy(out, s.skipped)
	return out
}

// Save writes the full catalog to the backend.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

// Dirty reports whether a change is still waiting to be saved.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Close performs the final save on shutdown. A catalog with nothing
// unsaved is left untouched, so a read-only run or a failed Load never
// overwrites the backend.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		s.logger.DebugContext(ctx, "catalog unchanged, skipping final save")
		return nil
	}
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "catalog saved on shutdown")
	return nil
}

// Snapshot returns the catalog in its persisted form.
func (s *Store) Snapshot() (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() (domain.Snapshot, error) {
	snap := domain.NewSnapshot()
	for id, item := range s.pool {
		rec := domain.ItemRecord{Weight: item.Weight(), Costs: []string{}}
		blob, err := s.codec.Encode(item.Reward())
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("market: encode item %s: %w", id, err)
		}
		rec.Item = blob
		for i, c := range item.Costs() {
			cb, err := s.codec.Encode(c)
			if err != nil {
				return domain.Snapshot{}, fmt.Errorf("market: encode item %s cost %d: %w", id, i, err)
			}
			rec.Costs = append(rec.Costs, cb)
		}
		snap.Pool[id.String()] = rec
	}

	snap.Active = make([]string, 0, len(s.active))
	for _, id := range s.active {
		snap.Active = append(snap.Active, id.String())
	}

	for actor, set := range s.purchases {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id.String())
		}
		slices.Sort(ids)
		snap.Purchases[actor.String()] = ids
	}

	snap.LastRotation = s.lastRotation.UnixMilli()
	return snap, nil
}

// persistLocked saves the current state. Failures are logged and returned
// wrapped in domain.ErrPersist; the in-memory state is kept either way.
func (s *Store) persistLocked(ctx context.Context) error {
	snap, err := s.snapshotLocked()
	if err == nil {
		err = s.backend.Save(ctx, snap)
	}
	if err != nil {
		s.dirty = true
		s.logger.ErrorContext(ctx, "snapshot save failed, keeping in-memory state",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("market: save snapshot: %w: %w", domain.ErrPersist, err)
	}
	s.dirty = false
	return nil
}

// ---------------------------------------------------------------------------
// Pool
// ---------------------------------------------------------------------------

// AddItem creates a pool item with a fresh identifier and persists it. The
// item is in the pool even when the returned error reports a failed save.
func (s *Store) AddItem(ctx context.Context, reward domain.Resource, costs []domain.Resource, weight int) (domain.MarketItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := domain.NewMarketItem(s.newID(), reward, costs, weight)
	s.pool[item.ID()] = item
	s.logger.InfoContext(ctx, "item added to pool",
		slog.String("item_id", item.ID().String()),
		slog.String("kind", reward.Kind),
		slog.Int("weight", item.Weight()),
	)
	return item.Clone(), s.persistLocked(ctx)
}

// RemoveItem deletes id from the pool and the active set. Ledger entries
// that mention it are left in place. An unknown id changes nothing but the
// catalog is still saved.
func (s *Store) RemoveItem(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pool[id]; !ok {
		return s.persistLocked(ctx)
	}
	delete(s.pool, id)

	kept := make([]uuid.UUID, 0, len(s.active))
	for _, a := range s.active {
		if a != id {
			kept = append(kept, a)
		}
	}
	s.active = kept

	s.logger.InfoContext(ctx, "item removed from pool", slog.String("item_id", id.String()))
	return s.persistLocked(ctx)
}

// Pool returns a copy of every pool item keyed by identifier.
func (s *Store) Pool() map[uuid.UUID]domain.MarketItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]domain.MarketItem, len(s.pool))
	for id, item := range s.pool {
		out[id] = item.Clone()
	}
	return out
}

// PoolSize returns the number of items in the pool.
func (s *Store) PoolSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pool)
}

// Item looks up a pool item.
func (s *Store) Item(id uuid.UUID) (domain.MarketItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.pool[id]
	if !ok {
		return domain.MarketItem{}, false
	}
	return item.Clone(), true
}

// SetWeight sets an item's selection weight (floored at domain.MinWeight).
func (s *Store) SetWeight(ctx context.Context, id uuid.UUID, weight int) (domain.MarketItem, error) {
	return s.updateItem(ctx, id, func(item *domain.MarketItem) {
		item.SetWeight(weight)
	})
}

// AdjustWeight adds delta to an item's selection weight.
func (s *Store) AdjustWeight(ctx context.Context, id uuid.UUID, delta int) (domain.MarketItem, error) {
	return s.updateItem(ctx, id, func(item *domain.MarketItem) {
		item.SetWeight(item.Weight() + delta)
	})
}

// SetCosts replaces an item's cost bundle.
func (s *Store) SetCosts(ctx context.Context, id uuid.UUID, costs []domain.Resource) (domain.MarketItem, error) {
	return s.updateItem(ctx, id, func(item *domain.MarketItem) {
		item.SetCosts(costs)
	})
}

func (s *Store) updateItem(ctx context.Context, id uuid.UUID, fn func(*domain.MarketItem)) (domain.MarketItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.pool[id]
	if !ok {
		return domain.MarketItem{}, fmt.Errorf("market: item %s: %w", id, domain.ErrNotFound)
	}
	fn(&item)
	s.pool[id] = item
	return item.Clone(), s.persistLocked(ctx)
}

// ---------------------------------------------------------------------------
// Active set
// ---------------------------------------------------------------------------

// ActiveIDs returns the active set in display order, including identifiers
// whose item has since been removed.
func (s *Store) ActiveIDs() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uuid.UUID, len(s.active))
	copy(out, s.active)
	return out
}

// ActiveItems resolves the active set against the pool, dropping entries
// that no longer resolve.
func (s *Store) ActiveItems() []domain.MarketItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.MarketItem, 0, len(s.active))
	for _, id := range s.active {
		if item, ok := s.pool[id]; ok {
			out = append(out, item.Clone())
		}
	}
	return out
}

// IsActive reports whether id is in the active set and still in the pool.
func (s *Store) IsActive(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.pool[id]; !ok {
		return false
	}
	for _, a := range s.active {
		if a == id {
			return true
		}
	}
	return false
}

// SetActiveItems replaces the active set wholesale.
func (s *Store) SetActiveItems(ctx context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = append([]uuid.UUID(nil), ids...)
	return s.persistLocked(ctx)
}

// ---------------------------------------------------------------------------
// Purchase ledger
// ---------------------------------------------------------------------------

// HasPurchased reports whether actor already bought id this period.
func (s *Store) HasPurchased(actor, id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.purchases[actor][id]
	return ok
}

// RecordPurchase adds id to actor's ledger. Recording an existing entry is
// a no-op and does not save.
func (s *Store) RecordPurchase(ctx context.Context, actor, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.purchases[actor]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		s.purchases[actor] = set
	}
	if _, dup := set[id]; dup {
		return nil
	}
	set[id] = struct{}{}
	return s.persistLocked(ctx)
}

// ClearPurchases empties the ledger for every actor.
func (s *Store) ClearPurchases(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases = make(map[uuid.UUID]map[uuid.UUID]struct{})
	return s.persistLocked(ctx)
}

// LedgerSize returns the number of actors with at least one ledger entry.
func (s *Store) LedgerSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, set := range s.purchases {
		if len(set) > 0 {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Rotation clock
// ---------------------------------------------------------------------------

// RotationClock returns the time of the last rotation.
func (s *Store) RotationClock() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRotation
}

// SetRotationClock records t as the last rotation time.
func (s *Store) SetRotationClock(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRotation = t
	return s.persistLocked(ctx)
}

// ApplyRotation installs a new active set, clears the ledger and advances
// the clock to at as a single change with a single save.
func (s *Store) ApplyRotation(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = append([]uuid.UUID(nil), ids...)
	s.purchases = make(map[uuid.UUID]map[uuid.UUID]struct{})
	s.lastRotation = at
	return s.persistLocked(ctx)
}
