package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustRouteRate(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal.NewFromString(%q): %v", s, err)
	}
	return d
}

// TestRouteDeliveryTimeForSizeIncludesTransmissionTime exercises a
// two-hop diamond (A->B->D) where each hop carries rate=1: with size=1,
// each hop adds a full second of transmission_time on top of owlt, so
// the delivery time diverges from the size-zero BestDeliveryTime used
// during route search.
func TestRouteDeliveryTimeForSizeIncludesTransmissionTime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c1 := NewContact("c1", "A", "B", "A", "B", start, start.Add(5*time.Second), mustRouteRate(t, "1"), 0, 0)
	c2 := NewContact("c2", "B", "D", "B", "D", start.Add(2*time.Second), start.Add(3*time.Second), mustRouteRate(t, "1"), 0, 0)

	route := RecomputeRoute([]*Contact{c1, c2}, start)

	wantBest := start.Add(2 * time.Second) // size-zero: max(0,0)+0, then max(0,2)+0
	if !route.BestDeliveryTime.Equal(wantBest) {
		t.Fatalf("BestDeliveryTime = %v, want %v", route.BestDeliveryTime, wantBest)
	}

	size := mustRouteRate(t, "1")
	wantDelivery := start.Add(3 * time.Second) // matches forward-simulated per-hop arrival with tx_time
	if got := route.DeliveryTimeForSize(size); !got.Equal(wantDelivery) {
		t.Fatalf("DeliveryTimeForSize(1) = %v, want %v", got, wantDelivery)
	}
}

// TestRouteDeliveryTimeForSizeRerouteAfterSuppression mirrors a
// suppressed-contact reroute: c2's window is cut short so the B->D hop
// is no longer usable, and the alternate A->C->D path is recomputed
// with its own (later) delivery time once size is folded in.
func TestRouteDeliveryTimeForSizeRerouteAfterSuppression(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c3 := NewContact("c3", "A", "C", "A", "C", start, start.Add(5*time.Second), mustRouteRate(t, "1"), 0, 0)
	c4 := NewContact("c4", "C", "D", "C", "D", start.Add(6*time.Second), start.Add(10*time.Second), mustRouteRate(t, "1"), 0, 0)

	route := RecomputeRoute([]*Contact{c3, c4}, start)

	size := mustRouteRate(t, "1")
	want := start.Add(7 * time.Second)
	if got := route.DeliveryTimeForSize(size); !got.Equal(want) {
		t.Fatalf("DeliveryTimeForSize(1) = %v, want %v", got, want)
	}
}
