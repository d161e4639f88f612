package redis

import (
	"reflect"
	"testing"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

func TestKeysFor(t *testing.T) {
	k := keysFor("bm")
	if k.pool != "bm:pool" || k.active != "bm:active" || k.purchases != "bm:purchases" || k.lastRotation != "bm:last_rotation" {
		t.Fatalf("unexpected keys: %+v", k)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	in := domain.ItemRecord{Item: "AAA", Costs: []string{"B", "C"}, Weight: 3}
	raw, err := encodeRecord(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decodeRecord(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestAssembleSkipsBadEntries(t *testing.T) {
	good, _ := encodeRecord(domain.ItemRecord{Item: "A", Weight: 2})
	snap := assemble(
		map[string]string{"a": good, "b": "{not json"},
		[]string{"a"},
		map[string]string{"p1": `["a"]`, "p2": `"a"`},
		"1700",
	)
	if len(snap.Pool) != 1 || snap.Pool["a"].Weight != 2 {
		t.Fatalf("pool = %+v", snap.Pool)
	}
	if !reflect.DeepEqual(snap.Purchases, map[string][]string{"p1": {"a"}}) {
		t.Fatalf("purchases = %+v", snap.Purchases)
	}
	if snap.LastRotation != 1700 {
		t.Fatalf("last rotation = %d", snap.LastRotation)
	}
	if len(snap.Skipped) != 2 {
		t.Fatalf("expected 2 skipped, got %+v", snap.Skipped)
	}
}

func TestAssembleEmpty(t *testing.T) {
	if snap := assemble(nil, nil, nil, ""); !snap.IsEmpty() {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestOptionsTLS(t *testing.T) {
	if opts := options(ClientConfig{Addr: "x:6379"}); opts.TLSConfig != nil {
		t.Fatal("TLS should be off by default")
	}
	if opts := options(ClientConfig{Addr: "x:6379", TLSEnabled: true}); opts.TLSConfig == nil {
		t.Fatal("TLS config missing")
	}
}
