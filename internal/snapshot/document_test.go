package snapshot

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

func sample() domain.Snapshot {
	snap := domain.NewSnapshot()
	snap.Pool["11111111-1111-1111-1111-111111111111"] = domain.ItemRecord{Item: "AAA", Costs: []string{"BBB", "CCC"}, Weight: 5}
	snap.Pool["22222222-2222-2222-2222-222222222222"] = domain.ItemRecord{Item: "DDD", Costs: []string{}, Weight: 1}
	snap.Active = []string{"22222222-2222-2222-2222-222222222222", "11111111-1111-1111-1111-111111111111"}
	snap.Purchases["99999999-9999-9999-9999-999999999999"] = []string{"11111111-1111-1111-1111-111111111111"}
	snap.LastRotation = 1_760_000_000_000
	return snap
}

func TestRoundTrip(t *testing.T) {
	want := sample()
	data, err := Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Skipped) != 0 {
		t.Fatalf("unexpected skipped records: %+v", got.Skipped)
	}
	if !reflect.DeepEqual(got.Pool, want.Pool) {
		t.Fatalf("pool mismatch:\n got %+v\nwant %+v", got.Pool, want.Pool)
	}
	if !reflect.DeepEqual(got.Active, want.Active) {
		t.Fatalf("active order not preserved: %v", got.Active)
	}
	if !reflect.DeepEqual(got.Purchases, want.Purchases) {
		t.Fatalf("purchases mismatch: %v", got.Purchases)
	}
	if got.LastRotation != want.LastRotation {
		t.Fatalf("last rotation = %d, want %d", got.LastRotation, want.LastRotation)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	a, err := Marshal(sample())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for range 10 {
		b, _ := Marshal(sample())
		if !bytes.Equal(a, b) {
			t.Fatalf("output differs between runs:\n%s\n---\n%s", a, b)
		}
	}
}

func TestUnmarshalEmpty(t *testing.T) {
	snap, err := Unmarshal([]byte("  \n"))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !snap.IsEmpty() {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestUnmarshalSyntaxError(t *testing.T) {
	if _, err := Unmarshal([]byte("item-pool = [")); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestUnmarshalSkipsMalformedRecords(t *testing.T) {
	doc := `
last-rotation = "yesterday"
active-items = ["a", 7, "b"]

[item-pool.a]
item = "AAA"
costs = ["BBB"]
weight = 2

[item-pool.b]
item = "CCC"
weight = "heavy"

[item-pool.c]
item = "DDD"

[purchases]
p1 = ["a"]
p2 = "a"
`
	snap, err := Unmarshal([]byte(doc))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if snap.LastRotation != 0 {
		t.Fatalf("bad last-rotation should be absent, got %d", snap.LastRotation)
	}
	if !reflect.DeepEqual(snap.Active, []string{"a", "b"}) {
		t.Fatalf("active = %v", snap.Active)
	}
	if len(snap.Pool) != 2 {
		t.Fatalf("expected 2 pool records, got %d", len(snap.Pool))
	}
	if rec := snap.Pool["c"]; rec.Weight != 0 || rec.Item != "DDD" {
		t.Fatalf("record without weight decoded as %+v", rec)
	}
	if _, ok := snap.Purchases["p2"]; ok {
		t.Fatal("non-list purchase entry should be skipped")
	}

	sections := map[string]int{}
	for _, s := range snap.Skipped {
		sections[s.Section]++
	}
	want := map[string]int{
		domain.SectionLastRotation: 1,
		domain.SectionActive:       1,
		domain.SectionPool:         1,
		domain.SectionPurchases:    1,
	}
	if !reflect.DeepEqual(sections, want) {
		t.Fatalf("skipped by section = %v, want %v", sections, want)
	}
}

func TestUnmarshalSkipsMisshapenSections(t *testing.T) {
	doc := `
last-rotation = 1760000000000
active-items = "a"
purchases = 5

[item-pool.a]
item = "AAA"
costs = []
weight = 1
`
	snap, err := Unmarshal([]byte(doc))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.LastRotation != 1760000000000 {
		t.Fatalf("last-rotation = %d", snap.LastRotation)
	}
	if len(snap.Pool) != 1 || snap.Pool["a"].Item != "AAA" {
		t.Fatalf("pool = %+v", snap.Pool)
	}
	if len(snap.Active) != 0 || len(snap.Purchases) != 0 {
		t.Fatalf("misshapen sections should load empty: active=%v purchases=%v", snap.Active, snap.Purchases)
	}

	got := map[string]string{}
	for _, s := range snap.Skipped {
		got[s.Section] = s.Key
	}
	want := map[string]string{
		domain.SectionActive:    "",
		domain.SectionPurchases: "",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("skipped = %v, want %v", snap.Skipped, want)
	}
}

func TestUnmarshalPoolWithWrongShape(t *testing.T) {
	snap, err := Unmarshal([]byte("item-pool = [1, 2]\nactive-items = [\"a\"]\n"))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(snap.Pool) != 0 || !reflect.DeepEqual(snap.Active, []string{"a"}) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap.Skipped) != 1 || snap.Skipped[0].Section != domain.SectionPool {
		t.Fatalf("skipped = %v", snap.Skipped)
	}
}
