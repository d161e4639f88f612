// Package notify announces market events to chat channels. Announcements
// go to every registered sender (Telegram, Discord) and can be filtered by
// event type.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

// Event types accepted by the filter.
const (
	EventRotation    = "rotation"
	EventEmptyPool   = "empty_pool"
	EventPoolChanged = "pool_changed"
)

// Sender is implemented by each notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches announcements to its senders. Only events in the
// allowed set are forwarded; an empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether at least one sender is registered.
func (n *Notifier) Enabled() bool { return n != nil && len(n.senders) > 0 }

// Notify sends title and message if event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// Rotation announces a new active set.
func (n *Notifier) Rotation(ctx context.Context, items []domain.MarketItem, next time.Duration) error {
	var b strings.Builder
	if len(items) == 0 {
		b.WriteString("Nothing is on offer this period.")
	}
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, Describe(item.Reward()))
		if costs := item.Costs(); len(costs) > 0 {
			parts := make([]string, len(costs))
			for j, c := range costs {
				parts[j] = Describe(c)
			}
			fmt.Fprintf(&b, " for %s", strings.Join(parts, " + "))
		} else {
			b.WriteString(" for free")
		}
	}
	fmt.Fprintf(&b, "\nNext rotation in %s.", next.Round(time.Minute))
	return n.Notify(ctx, EventRotation, "Black market restocked", b.String())
}

// EmptyPool warns operators that a rotation found nothing to offer.
func (n *Notifier) EmptyPool(ctx context.Context) error {
	return n.Notify(ctx, EventEmptyPool, "Black market rotation skipped", "The item pool is empty.")
}

// PoolChanged reports an admin edit to the pool.
func (n *Notifier) PoolChanged(ctx context.Context, action string, item domain.MarketItem) error {
	msg := fmt.Sprintf("%s %s (weight %d)", action, Describe(item.Reward()), item.Weight())
	return n.Notify(ctx, EventPoolChanged, "Black market pool updated", msg)
}

// Describe renders a resource as "3x kind" with sorted attributes.
func Describe(r domain.Resource) string {
	s := fmt.Sprintf("%dx %s", r.Quantity, r.Kind)
	if len(r.Attributes) == 0 {
		return s
	}
	keys := make([]string, 0, len(r.Attributes))
	for k := range r.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	attrs := make([]string, len(keys))
	for i, k := range keys {
		attrs[i] = k + "=" + r.Attributes[k]
	}
	return s + " [" + strings.Join(attrs, ", ") + "]"
}

// dispatch sends to every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
