// Package service holds the shop: the acquisition flow and the admin
// operations over the catalog. Every mutating flow runs under one lock so a
// rotation can never land between a purchase's check and its debit.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/blackmarket/internal/bundle"
	"github.com/alanyoungcy/blackmarket/internal/domain"
	"github.com/alanyoungcy/blackmarket/internal/market"
	"github.com/alanyoungcy/blackmarket/internal/rotation"
)

// Announcer publishes market events. *notify.Notifier implements it.
type Announcer interface {
	Rotation(ctx context.Context, items []domain.MarketItem, next time.Duration) error
	EmptyPool(ctx context.Context) error
	PoolChanged(ctx context.Context, action string, item domain.MarketItem) error
}

// Messages are the player-facing texts. {time} in TimeRemaining is replaced
// with the formatted time until the next rotation.
type Messages struct {
	AlreadyPurchased string
	NotEnoughItems   string
	PurchaseSuccess  string
	NotActive        string
	SoldOut          string
	TimeRemaining    string
	RotationForced   string
	ItemAdded        string
	ItemRemoved      string
}

// DefaultMessages returns the stock texts.
func DefaultMessages() Messages {
	return Messages{
		AlreadyPurchased: "You have already purchased this item!",
		NotEnoughItems:   "You don't have the required items!",
		PurchaseSuccess:  "You have successfully purchased this item!",
		NotActive:        "That item is no longer on offer.",
		SoldOut:          "SOLD OUT",
		TimeRemaining:    "Time until next rotation: {time}",
		RotationForced:   "The black market items have been rotated!",
		ItemAdded:        "Item added to the black market pool!",
		ItemRemoved:      "Item removed from the black market pool!",
	}
}

// Offer is one active item as seen by an actor. Label carries the sold-out
// text once the actor has bought it.
type Offer struct {
	Item      domain.MarketItem
	Purchased bool
	Label     string
}

// Receipt describes a completed purchase. Leftover is the part of the
// reward that did not fit in the actor's holdings.
type Receipt struct {
	Item     domain.MarketItem
	Leftover int
}

// Status summarises the catalog for operators.
type Status struct {
	PoolSize     int
	Active       []domain.MarketItem
	LastRotation time.Time
	NextIn       time.Duration
}

// Shop coordinates purchases, rotations and admin edits.
type Shop struct {
	mu       sync.Mutex
	store    *market.Store
	engine   *rotation.Engine
	archiver domain.SnapshotArchiver
	announce Announcer
	messages Messages
	logger   *slog.Logger
}

// ShopOption configures a Shop.
type ShopOption func(*Shop)

// WithArchiver archives the closing snapshot of every rotation period.
func WithArchiver(a domain.SnapshotArchiver) ShopOption {
	return func(s *Shop) { s.archiver = a }
}

// WithAnnouncer publishes rotations and pool edits.
func WithAnnouncer(a Announcer) ShopOption {
	return func(s *Shop) { s.announce = a }
}

// WithMessages overrides the player-facing texts.
func WithMessages(m Messages) ShopOption {
	return func(s *Shop) { s.messages = m }
}

// NewShop creates a Shop over store and engine.
func NewShop(store *market.Store, engine *rotation.Engine, logger *slog.Logger, opts ...ShopOption) *Shop {
	s := &Shop{
		store:    store,
		engine:   engine,
		messages: DefaultMessages(),
		logger:   logger.With(slog.String("component", "shop")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Offers lists the active items for actor, flagging the ones it already
// bought this period.
func (s *Shop) Offers(actor uuid.UUID) []Offer {
	items := s.store.ActiveItems()
	offers := make([]Offer, len(items))
	for i, item := range items {
		offers[i] = Offer{Item: item, Purchased: s.store.HasPurchased(actor, item.ID())}
		if offers[i].Purchased {
			offers[i].Label = s.messages.SoldOut
		}
	}
	return offers
}

// Purchase runs the acquisition flow: the item must be on offer and not yet
// bought by actor this period, and holdings must cover its costs. The costs
// are then debited, the reward granted and the purchase recorded.
//
// A failed save after the purchase has taken effect returns the receipt
// together with an error wrapping domain.ErrPersist.
func (s *Shop) Purchase(ctx context.Context, actor, itemID uuid.UUID, holdings domain.Holdings) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.store.Item(itemID)
	if !ok || !s.store.IsActive(itemID) {
		return Receipt{}, fmt.Errorf("service: purchase %s: %w", itemID, domain.ErrNotActive)
	}
	if s.store.HasPurchased(actor, itemID) {
		return Receipt{}, fmt.Errorf("service: purchase %s: %w", itemID, domain.ErrAlreadyPurchased)
	}
	costs := item.Costs()
	if !bundle.Satisfies(holdings, costs) {
		return Receipt{}, fmt.Errorf("service: purchase %s: %w", itemID, domain.ErrInsufficientResources)
	}

	bundle.Debit(holdings, costs)
	receipt := Receipt{Item: item, Leftover: holdings.Add(item.Reward())}
	if receipt.Leftover > 0 {
		s.logger.WarnContext(ctx, "reward did not fit in holdings",
			slog.String("actor", actor.String()),
			slog.String("item_id", itemID.String()),
			slog.Int("leftover", receipt.Leftover),
		)
	}

	if err := s.store.RecordPurchase(ctx, actor, itemID); err != nil {
		return receipt, fmt.Errorf("service: record purchase %s: %w", itemID, err)
	}
	s.logger.InfoContext(ctx, "purchase completed",
		slog.String("actor", actor.String()),
		slog.String("item_id", itemID.String()),
	)
	return receipt, nil
}

// Message maps a Purchase result to the player-facing text.
func (s *Shop) Message(err error) string {
	switch {
	case err == nil, errors.Is(err, domain.ErrPersist):
		return s.messages.PurchaseSuccess
	case errors.Is(err, domain.ErrAlreadyPurchased):
		return s.messages.AlreadyPurchased
	case errors.Is(err, domain.ErrInsufficientResources):
		return s.messages.NotEnoughItems
	case errors.Is(err, domain.ErrNotActive):
		return s.messages.NotActive
	default:
		return err.Error()
	}
}

// Messages returns the configured texts.
func (s *Shop) Messages() Messages {
	return s.messages
}

// TimeRemainingMessage renders the countdown header.
func (s *Shop) TimeRemainingMessage() string {
	return strings.ReplaceAll(s.messages.TimeRemaining, "{time}",
		rotation.FormatRemaining(s.engine.TimeUntilNextRotation()))
}

// Rotate forces a rotation. It also serves as the scheduler's rotator. The
// closing period is archived and the new offer announced; failures of
// either are logged and do not fail the rotation.
func (s *Shop) Rotate(ctx context.Context) (rotation.Result, error) {
	s.mu.Lock()
	closing, snapErr := s.store.Snapshot()
	res, err := s.engine.PerformRotation(ctx)
	active := s.store.ActiveItems()
	s.mu.Unlock()

	if errors.Is(err, domain.ErrEmptyPool) {
		s.publish(ctx, "empty_pool", func(a Announcer) error { return a.EmptyPool(ctx) })
		return res, err
	}
	if err != nil && !errors.Is(err, domain.ErrPersist) {
		return res, err
	}

	if s.archiver != nil {
		if snapErr != nil {
			s.logger.WarnContext(ctx, "skipping archive of closing period",
				slog.String("error", snapErr.Error()))
		} else if aerr := s.archiver.Archive(ctx, closing, res.RotatedAt); aerr != nil {
			s.logger.WarnContext(ctx, "archive closing period failed",
				slog.String("error", aerr.Error()))
		}
	}
	s.publish(ctx, "rotation", func(a Announcer) error {
		return a.Rotation(ctx, active, s.engine.Interval())
	})
	return res, err
}

// Status reports pool size, the active set and the rotation clock.
func (s *Shop) Status() Status {
	return Status{
		PoolSize:     s.store.PoolSize(),
		Active:       s.store.ActiveItems(),
		LastRotation: s.store.RotationClock(),
		NextIn:       s.engine.TimeUntilNextRotation(),
	}
}

// TimeUntilNextRotation returns the time left in the current period.
func (s *Shop) TimeUntilNextRotation() time.Duration {
	return s.engine.TimeUntilNextRotation()
}

// AddItem puts a new item in the pool.
func (s *Shop) AddItem(ctx context.Context, reward domain.Resource, costs []domain.Resource, weight int) (domain.MarketItem, error) {
	s.mu.Lock()
	item, err := s.store.AddItem(ctx, reward, costs, weight)
	s.mu.Unlock()
	if err != nil && !errors.Is(err, domain.ErrPersist) {
		return item, err
	}
	s.logger.InfoContext(ctx, s.messages.ItemAdded, slog.String("item_id", item.ID().String()))
	s.publish(ctx, "pool_changed", func(a Announcer) error { return a.PoolChanged(ctx, "added", item) })
	return item, err
}

// RemoveItem takes an item out of the pool and the active set. Unknown ids
// are ignored.
func (s *Shop) RemoveItem(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	item, ok := s.store.Item(id)
	err := s.store.RemoveItem(ctx, id)
	s.mu.Unlock()
	if ok {
		s.logger.InfoContext(ctx, s.messages.ItemRemoved, slog.String("item_id", id.String()))
		s.publish(ctx, "pool_changed", func(a Announcer) error { return a.PoolChanged(ctx, "removed", item) })
	}
	return err
}

// SetWeight replaces an item's selection weight.
func (s *Shop) SetWeight(ctx context.Context, id uuid.UUID, weight int) (domain.MarketItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetWeight(ctx, id, weight)
}

// AdjustWeight changes an item's selection weight by delta.
func (s *Shop) AdjustWeight(ctx context.Context, id uuid.UUID, delta int) (domain.MarketItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.AdjustWeight(ctx, id, delta)
}

// SetCosts replaces an item's cost bundle.
func (s *Shop) SetCosts(ctx context.Context, id uuid.UUID, costs []domain.Resource) (domain.MarketItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetCosts(ctx, id, costs)
}

func (s *Shop) publish(ctx context.Context, event string, fn func(Announcer) error) {
	if s.announce == nil {
		return
	}
	if err := fn(s.announce); err != nil {
		s.logger.WarnContext(ctx, "announcement failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

var _ rotation.Rotator = (*Shop)(nil)
