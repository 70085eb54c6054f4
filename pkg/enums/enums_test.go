package enums

import "testing"

func TestOrderStatus(t *testing.T) {
	if OrderStatusPending != 0 {
		t.Fatalf("pending must be stored as 0")
	}
	if OrderStatusPending.String() != "pending" || !OrderStatusPending.IsValid() {
		t.Fatalf("unexpected pending status metadata")
	}
	if OrderStatus(9).IsValid() {
		t.Fatalf("unknown status should be invalid")
	}
	if OrderStatus(9).String() != "status_9" {
		t.Fatalf("unexpected string for unknown status: %s", OrderStatus(9))
	}
}

func TestParseEventType(t *testing.T) {
	got, err := ParseEventType("order.created")
	if err != nil || got != EventOrderCreated {
		t.Fatalf("expected order.created, got %q err=%v", got, err)
	}
	if _, err := ParseEventType("order.deleted"); err == nil {
		t.Fatalf("expected error for unknown event type")
	}
}
