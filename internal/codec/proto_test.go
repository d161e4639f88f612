package codec

import (
	"errors"
	"testing"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

func TestProtoRoundTrip(t *testing.T) {
	c := NewProto()
	in := domain.Resource{
		Kind:       "diamond_sword",
		Attributes: map[string]string{"enchant": "sharpness:5", "name": "Edge"},
		Quantity:   1,
	}

	blob, err := c.Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := c.Decode(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Similar(in) || out.Quantity != in.Quantity {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestProtoEncodeIsDeterministic(t *testing.T) {
	c := NewProto()
	r := domain.Resource{
		Kind:       "gold_ingot",
		Attributes: map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"},
		Quantity:   12,
	}
	first, err := c.Encode(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := c.Encode(r)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if again != first {
			t.Fatalf("encoding changed between calls")
		}
	}
}

func TestProtoRoundTripsEdgeValues(t *testing.T) {
	c := NewProto()
	tests := []struct {
		name string
		in   domain.Resource
	}{
		{"zero quantity", domain.Resource{Kind: "gold", Quantity: 0}},
		{"negative quantity", domain.Resource{Kind: "iron", Quantity: -4}},
		{"quantity beyond int32", domain.Resource{Kind: "gold", Quantity: 1 << 40}},
		{"quantity beyond float precision", domain.Resource{Kind: "gold", Quantity: 1<<53 + 1}},
		{"empty kind", domain.Resource{Quantity: 1}},
		{"empty attribute value", domain.Resource{Kind: "map", Quantity: 1, Attributes: map[string]string{"label": ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := c.Encode(tt.in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			out, err := c.Decode(blob)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !out.Similar(tt.in) || out.Quantity != tt.in.Quantity {
				t.Fatalf("round trip mismatch: got %+v, want %+v", out, tt.in)
			}
		})
	}
}

func TestProtoDecodeRejectsMalformed(t *testing.T) {
	c := NewProto()
	tests := []struct {
		name string
		blob string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"garbage bytes", "//79/A=="},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.blob)
			if !errors.Is(err, domain.ErrMalformedRecord) {
				t.Fatalf("expected ErrMalformedRecord, got %v", err)
			}
		})
	}
}
