package domain

// Snapshot is the persisted form of the whole catalog. Identifiers are kept
// as strings and resources as opaque codec blobs so that a backend never has
// to understand either; the market store parses them record by record.
type Snapshot struct {
	// Pool maps an item identifier to its stored record.
	Pool map[string]ItemRecord
	// Active lists item identifiers in display order.
	Active []string
	// Purchases maps an actor identifier to the items it bought this period.
	Purchases map[string][]string
	// LastRotation is the last rotation time in epoch milliseconds; zero
	// means absent.
	LastRotation int64

	// Skipped lists records the backend could not decode at all. It is
	// never persisted.
	Skipped []SkippedRecord
}

// ItemRecord is the stored form of a MarketItem.
type ItemRecord struct {
	Item   string
	Costs  []string
	Weight int
}

// Snapshot sections, used in diagnostics.
const (
	SectionPool         = "item-pool"
	SectionActive       = "active-items"
	SectionPurchases    = "purchases"
	SectionLastRotation = "last-rotation"
)

// SkippedRecord describes a persisted entry that was dropped during load.
type SkippedRecord struct {
	Section string
	Key     string
	Reason  string
}

// NewSnapshot returns an empty snapshot with initialised maps.
func NewSnapshot() Snapshot {
	return Snapshot{
		Pool:      make(map[string]ItemRecord),
		Purchases: make(map[string][]string),
	}
}

// IsEmpty reports whether the snapshot carries no catalog data.
func (s Snapshot) IsEmpty() bool {
	return len(s.Pool) == 0 && len(s.Active) == 0 && len(s.Purchases) == 0 && s.LastRotation == 0
}
