package domain

import "testing"

func TestInventoryAddMergesThenFillsEmpty(t *testing.T) {
	inv := NewInventory(2)
	gold := Resource{Kind: "gold", Quantity: 3}

	if left := inv.Add(gold); left != 0 {
		t.Fatalf("expected full insert, %d left", left)
	}
	if left := inv.Add(gold.WithQuantity(4)); left != 0 {
		t.Fatalf("expected merge, %d left", left)
	}
	if got := inv.Count(gold); got != 7 {
		t.Fatalf("expected 7 gold, got %d", got)
	}
	if inv.Slot(1) != nil {
		t.Fatalf("merge should not use a second slot")
	}

	if left := inv.Add(Resource{Kind: "iron", Quantity: 1}); left != 0 {
		t.Fatalf("expected iron to fit in slot 1")
	}
	if left := inv.Add(Resource{Kind: "coal", Quantity: 5}); left != 5 {
		t.Fatalf("expected coal to overflow, %d left", left)
	}
}

func TestInventorySetSlot(t *testing.T) {
	inv := NewInventory(3)
	r := Resource{Kind: "emerald", Quantity: 2}
	inv.SetSlot(1, &r)

	r.Quantity = 50
	if got := inv.Slot(1).Quantity; got != 2 {
		t.Fatalf("SetSlot stored a reference, quantity %d", got)
	}

	inv.SetSlot(1, &Resource{Kind: "emerald", Quantity: 0})
	if inv.Slot(1) != nil {
		t.Fatalf("zero quantity should empty the slot")
	}

	inv.SetSlot(9, &r)
	if inv.Slot(9) != nil {
		t.Fatalf("out of range slot should read nil")
	}
}
