package sqlitestore

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "market.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadEmptyDatabase(t *testing.T) {
	snap, err := openTemp(t).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !snap.IsEmpty() {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	want := domain.NewSnapshot()
	want.Pool["a"] = domain.ItemRecord{Item: "AAA", Costs: []string{"C1", "C2", "C3"}, Weight: 7}
	want.Pool["b"] = domain.ItemRecord{Item: "BBB", Costs: []string{}, Weight: 1}
	want.Active = []string{"b", "a"}
	want.Purchases["p1"] = []string{"a", "b"}
	want.LastRotation = 1_760_000_000_000

	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got.Pool, want.Pool) {
		t.Fatalf("pool mismatch:\n got %+v\nwant %+v", got.Pool, want.Pool)
	}
	if !reflect.DeepEqual(got.Active, want.Active) {
		t.Fatalf("active order lost: %v", got.Active)
	}
	if !reflect.DeepEqual(got.Purchases, want.Purchases) {
		t.Fatalf("purchases mismatch: %v", got.Purchases)
	}
	if got.LastRotation != want.LastRotation {
		t.Fatalf("last rotation = %d", got.LastRotation)
	}
}

func TestSaveFullyReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	first := domain.NewSnapshot()
	first.Pool["a"] = domain.ItemRecord{Item: "A", Costs: []string{"x"}, Weight: 1}
	first.Purchases["p"] = []string{"a"}
	first.LastRotation = 5
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, domain.NewSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.IsEmpty() {
		t.Fatalf("expected empty after replace, got %+v", got)
	}
}

func TestLoadReportsOrphanCost(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	if _, err := s.conn.Exec("INSERT INTO market_item_costs (item_id, position, cost) VALUES ('ghost', 0, 'X')"); err != nil {
		t.Fatal(err)
	}
	snap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Skipped) != 1 || snap.Skipped[0].Key != "ghost" {
		t.Fatalf("expected orphan cost diagnostic, got %+v", snap.Skipped)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "market.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	snap := domain.NewSnapshot()
	snap.Pool["a"] = domain.ItemRecord{Item: "A", Weight: 3}
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Pool["a"].Weight != 3 {
		t.Fatalf("expected persisted item, got %+v", got.Pool)
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := openTemp(t)

	var mode string
	if err := s.conn.Get(&mode, "PRAGMA journal_mode"); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}

	var timeout int
	if err := s.conn.Get(&timeout, "PRAGMA busy_timeout"); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Fatalf("busy_timeout = %d, want 5000", timeout)
	}
}
