// Package bundle checks and debits resource bundles against an actor's
// holdings. Satisfies and Debit form a check-then-commit pair: Debit trusts
// that Satisfies returned true and neither revalidates nor rolls back.
package bundle

import "github.com/alanyoungcy/blackmarket/internal/domain"

// Matcher compares resources with a caller-supplied equivalence. The zero
// value uses domain.Resource.Similar.
type Matcher struct {
	Equivalent func(a, b domain.Resource) bool
}

var defaultMatcher Matcher

// Satisfies reports whether holdings cover required using the default
// equivalence.
func Satisfies(h domain.Holdings, required []domain.Resource) bool {
	return defaultMatcher.Satisfies(h, required)
}

// Debit removes required from holdings using the default equivalence.
func Debit(h domain.Holdings, required []domain.Resource) {
	defaultMatcher.Debit(h, required)
}

func (m Matcher) equivalent(a, b domain.Resource) bool {
	if m.Equivalent != nil {
		return m.Equivalent(a, b)
	}
	return a.Similar(b)
}

// Available sums the quantity of every holdings slot matching r.
func (m Matcher) Available(h domain.Holdings, r domain.Resource) int {
	total := 0
	for i := 0; i < h.Size(); i++ {
		slot := h.Slot(i)
		if slot != nil && m.equivalent(*slot, r) {
			total += slot.Quantity
		}
	}
	return total
}

// Satisfies reports whether, for every required line, the matching quantity
// in holdings is at least the line's quantity.
//
// Lines are checked independently against the same, undebited holdings. Two
// lines naming the same resource can therefore both pass on one stack that
// only covers either of them alone.
func (m Matcher) Satisfies(h domain.Holdings, required []domain.Resource) bool {
	for _, req := range required {
		if m.Available(h, req) < req.Quantity {
			return false
		}
	}
	return true
}

// Debit removes each required line from holdings, scanning slots in index
// order and stopping as soon as the line is paid. A slot that is fully
// consumed is emptied; the last slot touched is reduced.
func (m Matcher) Debit(h domain.Holdings, required []domain.Resource) {
	for _, req := range required {
		remaining := req.Quantity
		for i := 0; i < h.Size() && remaining > 0; i++ {
			slot := h.Slot(i)
			if slot == nil || !m.equivalent(*slot, req) {
				continue
			}
			if slot.Quantity <= remaining {
				remaining -= slot.Quantity
				h.SetSlot(i, nil)
				continue
			}
			reduced := slot.WithQuantity(slot.Quantity - remaining)
			h.SetSlot(i, &reduced)
			remaining = 0
		}
	}
}
