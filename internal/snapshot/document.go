// Package snapshot encodes a domain.Snapshot as a TOML document:
//
//	last-rotation = 1760000000000
//	active-items  = ["<id>", ...]
//
//	[item-pool.<id>]
//	item   = "<blob>"
//	costs  = ["<blob>", ...]
//	weight = 1
//
//	[purchases]
//	<actor> = ["<id>", ...]
//
// Decoding is tolerant: a section or record whose value has the wrong shape
// is reported in Snapshot.Skipped and the rest of the document still loads.
package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

// document is the decode-side shape. Each section is held as a Primitive,
// and each record inside it again, so a bad entry does not abort the decode.
type document struct {
	LastRotation toml.Primitive `toml:"last-rotation"`
	Active       toml.Primitive `toml:"active-items"`
	Pool         toml.Primitive `toml:"item-pool"`
	Purchases    toml.Primitive `toml:"purchases"`
}

type itemRecord struct {
	Item   string   `toml:"item"`
	Costs  []string `toml:"costs"`
	Weight int      `toml:"weight"`
}

// encoded is the encode-side shape.
type encoded struct {
	LastRotation int64                 `toml:"last-rotation,omitzero"`
	Active       []string              `toml:"active-items"`
	Pool         map[string]itemRecord `toml:"item-pool"`
	Purchases    map[string][]string   `toml:"purchases"`
}

// Encode writes snap to w. Map keys are emitted in sorted order so the same
// snapshot always produces the same bytes.
func Encode(w io.Writer, snap domain.Snapshot) error {
	doc := encoded{
		LastRotation: snap.LastRotation,
		Active:       snap.Active,
		Pool:         make(map[string]itemRecord, len(snap.Pool)),
		Purchases:    make(map[string][]string, len(snap.Purchases)),
	}
	if doc.Active == nil {
		doc.Active = []string{}
	}
	for id, rec := range snap.Pool {
		costs := rec.Costs
		if costs == nil {
			costs = []string{}
		}
		doc.Pool[id] = itemRecord{Item: rec.Item, Costs: costs, Weight: rec.Weight}
	}
	for actor, ids := range snap.Purchases {
		if len(ids) == 0 {
			continue
		}
		doc.Purchases[actor] = ids
	}
	if err := toml.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("snapshot: encode document: %w", err)
	}
	return nil
}

// Marshal returns the encoded document.
func Marshal(snap domain.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a document. A syntax error fails the whole document;
// sections and records with the wrong shape are skipped and listed in
// Snapshot.Skipped.
// Empty input yields an empty snapshot.
func Unmarshal(data []byte) (domain.Snapshot, error) {
	snap := domain.NewSnapshot()
	if len(bytes.TrimSpace(data)) == 0 {
		return snap, nil
	}

	var doc document
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return domain.NewSnapshot(), fmt.Errorf("snapshot: decode document: %w", err)
	}

	if md.IsDefined(domain.SectionLastRotation) {
		var ms int64
		if err := md.PrimitiveDecode(doc.LastRotation, &ms); err != nil {
			snap.Skipped = append(snap.Skipped, skipped(domain.SectionLastRotation, "", err))
		} else {
			snap.LastRotation = ms
		}
	}

	if md.IsDefined(domain.SectionActive) {
		var active []toml.Primitive
		if err := md.PrimitiveDecode(doc.Active, &active); err != nil {
			snap.Skipped = append(snap.Skipped, skipped(domain.SectionActive, "", err))
		}
		for i, prim := range active {
			var id string
			if err := md.PrimitiveDecode(prim, &id); err != nil {
				snap.Skipped = append(snap.Skipped, skipped(domain.SectionActive, fmt.Sprint(i), err))
				continue
			}
			snap.Active = append(snap.Active, id)
		}
	}

	if md.IsDefined(domain.SectionPool) {
		var pool map[string]toml.Primitive
		if err := md.PrimitiveDecode(doc.Pool, &pool); err != nil {
			snap.Skipped = append(snap.Skipped, skipped(domain.SectionPool, "", err))
		}
		for _, key := range sortedKeys(pool) {
			var rec itemRecord
			if err := md.PrimitiveDecode(pool[key], &rec); err != nil {
				snap.Skipped = append(snap.Skipped, skipped(domain.SectionPool, key, err))
				continue
			}
			snap.Pool[key] = domain.ItemRecord{Item: rec.Item, Costs: rec.Costs, Weight: rec.Weight}
		}
	}

	if md.IsDefined(domain.SectionPurchases) {
		var purchases map[string]toml.Primitive
		if err := md.PrimitiveDecode(doc.Purchases, &purchases); err != nil {
			snap.Skipped = append(snap.Skipped, skipped(domain.SectionPurchases, "", err))
		}
		for _, actor := range sortedKeys(purchases) {
			var ids []string
			if err := md.PrimitiveDecode(purchases[actor], &ids); err != nil {
				snap.Skipped = append(snap.Skipped, skipped(domain.SectionPurchases, actor, err))
				continue
			}
			snap.Purchases[actor] = ids
		}
	}
	return snap, nil
}

func skipped(section, key string, err error) domain.SkippedRecord {
	return domain.SkippedRecord{Section: section, Key: key, Reason: err.Error()}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
