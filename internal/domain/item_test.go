package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewMarketItemFloorsWeight(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: -5, want: 1},
		{in: 0, want: 1},
		{in: 1, want: 1},
		{in: 7, want: 7},
	}
	for _, tt := range tests {
		item := NewMarketItem(uuid.New(), Resource{Kind: "apple", Quantity: 1}, nil, tt.in)
		if item.Weight() != tt.want {
			t.Fatalf("weight %d: expected %d, got %d", tt.in, tt.want, item.Weight())
		}
	}
}

func TestMarketItemReadsAreCopies(t *testing.T) {
	reward := Resource{Kind: "sword", Attributes: map[string]string{"name": "Edge"}, Quantity: 1}
	costs := []Resource{{Kind: "gold", Quantity: 5}}
	item := NewMarketItem(uuid.New(), reward, costs, 1)

	// Mutating the inputs after construction must not reach the item.
	reward.Attributes["name"] = "Blunt"
	costs[0].Quantity = 99

	got := item.Reward()
	if got.Attributes["name"] != "Edge" {
		t.Fatalf("constructor aliased reward attributes")
	}
	got.Attributes["name"] = "Changed"
	if item.Reward().Attributes["name"] != "Edge" {
		t.Fatalf("Reward returned shared attributes")
	}

	c := item.Costs()
	if c[0].Quantity != 5 {
		t.Fatalf("constructor aliased costs, got %d", c[0].Quantity)
	}
	c[0].Quantity = 1
	if item.Costs()[0].Quantity != 5 {
		t.Fatalf("Costs returned shared slice")
	}
}

func TestMarketItemSetCostsReplaces(t *testing.T) {
	item := NewMarketItem(uuid.New(), Resource{Kind: "bow", Quantity: 1}, []Resource{{Kind: "string", Quantity: 3}}, 1)
	item.SetCosts([]Resource{{Kind: "stick", Quantity: 2}, {Kind: "feather", Quantity: 4}})

	costs := item.Costs()
	if len(costs) != 2 || costs[0].Kind != "stick" || costs[1].Kind != "feather" {
		t.Fatalf("unexpected costs after replace: %+v", costs)
	}

	item.SetCosts(nil)
	if costs := item.Costs(); costs == nil || len(costs) != 0 {
		t.Fatalf("expected empty non-nil costs, got %#v", costs)
	}
}

func TestMarketItemSetWeightFloors(t *testing.T) {
	item := NewMarketItem(uuid.New(), Resource{Kind: "bow", Quantity: 1}, nil, 3)
	item.SetWeight(0)
	if item.Weight() != MinWeight {
		t.Fatalf("expected floor %d, got %d", MinWeight, item.Weight())
	}
}

func TestResourceSimilar(t *testing.T) {
	base := Resource{Kind: "potion", Attributes: map[string]string{"effect": "speed"}, Quantity: 1}
	tests := []struct {
		name  string
		other Resource
		want  bool
	}{
		{"same with other quantity", Resource{Kind: "potion", Attributes: map[string]string{"effect": "speed"}, Quantity: 64}, true},
		{"different kind", Resource{Kind: "water", Attributes: map[string]string{"effect": "speed"}, Quantity: 1}, false},
		{"different attribute", Resource{Kind: "potion", Attributes: map[string]string{"effect": "haste"}, Quantity: 1}, false},
		{"missing attribute", Resource{Kind: "potion", Quantity: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Similar(tt.other); got != tt.want {
				t.Fatalf("Similar = %v, want %v", got, tt.want)
			}
		})
	}

	if !(Resource{Kind: "dirt"}).Similar(Resource{Kind: "dirt", Attributes: map[string]string{}}) {
		t.Fatal("nil and empty attributes should be similar")
	}
}
