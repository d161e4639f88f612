package domain

// Holdings is an actor's bounded, slot-addressed collection of resources.
// Slots are independently nullable. Implementations are not required to be
// safe for concurrent use; callers serialise access.
type Holdings interface {
	Size() int
	// Slot returns the resource in slot i, or nil if the slot is empty.
	Slot(i int) *Resource
	// SetSlot replaces slot i. A nil r empties the slot.
	SetSlot(i int, r *Resource)
	// Add merges r into the holdings and returns the quantity that did not fit.
	Add(r Resource) int
}

// Inventory is a fixed-size slice-backed Holdings. Stacks are unbounded, so
// Add only fails when every slot is occupied by a dissimilar resource.
type Inventory struct {
	slots []*Resource
}

// NewInventory creates an empty inventory with size slots.
func NewInventory(size int) *Inventory {
	if size < 0 {
		size = 0
	}
	return &Inventory{slots: make([]*Resource, size)}
}

// Size returns the number of slots.
func (inv *Inventory) Size() int { return len(inv.slots) }

// Slot returns the resource stored in slot i, or nil when the slot is empty
// or out of range.
func (inv *Inventory) Slot(i int) *Resource {
	if i < 0 || i >= len(inv.slots) {
		return nil
	}
	return inv.slots[i]
}

// SetSlot stores a copy of r in slot i; a nil r or non-positive quantity
// empties the slot. Out-of-range indexes are ignored.
func (inv *Inventory) SetSlot(i int, r *Resource) {
	if i < 0 || i >= len(inv.slots) {
		return
	}
	if r == nil || r.Quantity <= 0 {
		inv.slots[i] = nil
		return
	}
	c := r.Clone()
	inv.slots[i] = &c
}

// Add merges r into the first similar stack, otherwise into the first empty
// slot. It returns r.Quantity when no slot could take it, else 0.
func (inv *Inventory) Add(r Resource) int {
	if r.Quantity <= 0 {
		return 0
	}
	for _, s := range inv.slots {
		if s != nil && s.Similar(r) {
			s.Quantity += r.Quantity
			return 0
		}
	}
	for i, s := range inv.slots {
		if s == nil {
			c := r.Clone()
			inv.slots[i] = &c
			return 0
		}
	}
	return r.Quantity
}

// Count sums the quantity of every stack similar to r.
func (inv *Inventory) Count(r Resource) int {
	total := 0
	for _, s := range inv.slots {
		if s != nil && s.Similar(r) {
			total += s.Quantity
		}
	}
	return total
}

// Compile-time interface check.
var _ Holdings = (*Inventory)(nil)
