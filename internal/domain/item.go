package domain

import "github.com/google/uuid"

// MinWeight is the floor applied to every selection weight.
const MinWeight = 1

// MarketItem is one offer in the pool: a reward handed out on purchase, the
// bundle of resources it costs, and its relative chance of being rotated in.
//
// Fields are unexported so that every read returns a copy; the pool owned by
// the market store is never reachable through a returned item.
type MarketItem struct {
	id     uuid.UUID
	reward Resource
	costs  []Resource
	weight int
}

// NewMarketItem builds an item with the given identity. The reward and cost
// bundle are copied; weight is floored at MinWeight.
func NewMarketItem(id uuid.UUID, reward Resource, costs []Resource, weight int) MarketItem {
	item := MarketItem{
		id:     id,
		reward: reward.Clone(),
		costs:  CloneResources(costs),
	}
	if item.costs == nil {
		item.costs = []Resource{}
	}
	item.SetWeight(weight)
	return item
}

// ID returns the item's stable identifier.
func (m MarketItem) ID() uuid.UUID { return m.id }

// Reward returns a copy of the resource granted on purchase.
func (m MarketItem) Reward() Resource { return m.reward.Clone() }

// Costs returns a copy of the cost bundle in display order.
func (m MarketItem) Costs() []Resource { return CloneResources(m.costs) }

// Weight returns the selection weight (always >= MinWeight).
func (m MarketItem) Weight() int { return m.weight }

// SetWeight updates the selection weight, flooring at MinWeight.
func (m *MarketItem) SetWeight(w int) {
	if w < MinWeight {
		w = MinWeight
	}
	m.weight = w
}

// SetCosts replaces the cost bundle with a copy of costs.
func (m *MarketItem) SetCosts(costs []Resource) {
	m.costs = CloneResources(costs)
	if m.costs == nil {
		m.costs = []Resource{}
	}
}

// Clone returns a deep copy of the item.
func (m MarketItem) Clone() MarketItem {
	return MarketItem{
		id:     m.id,
		reward: m.reward.Clone(),
		costs:  CloneResources(m.costs),
		weight: m.weight,
	}
}
