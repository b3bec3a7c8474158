package core

import (
	"context"
	"testing"
	"time"

	"github.com/signalsfoundry/cgs-scheduler/model"
)

// TestFindRoutesDiamondYensK exercises the S6 acceptance scenario: a
// diamond contact graph A->B->D and A->C->D where the B-leg is strictly
// faster, so k=2 must return both loopless paths in delivery-time order.
func TestFindRoutesDiamondYensK(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := NewContactPlan()

	plan.AddRoutingContact(model.NewContact("c1", "A", "B", "A", "B", start, start.Add(5*time.Minute), mustRate(t, "1"), 0, 0))
	plan.AddRoutingContact(model.NewContact("c2", "B", "D", "B", "gw", start.Add(1*time.Minute), start.Add(5*time.Minute), mustRate(t, "1"), 0, 0))
	plan.AddRoutingContact(model.NewContact("c3", "A", "C", "A", "C", start, start.Add(5*time.Minute), mustRate(t, "1"), 0, 0))
	plan.AddRoutingContact(model.NewContact("c4", "C", "D", "C", "gw", start.Add(3*time.Minute), start.Add(8*time.Minute), mustRate(t, "1"), 0, 0))

	routes := FindRoutes(context.Background(), plan, "A", "gw", start, time.Time{}, 2)
	if len(routes) != 2 {
		t.Fatalf("expected 2 candidate routes, got %d", len(routes))
	}

	if routes[0].ContactIDs()[0] != "c1" {
		t.Fatalf("expected the faster B-relay route first, got hops %v", routes[0].ContactIDs())
	}
	if routes[1].ContactIDs()[0] != "c3" {
		t.Fatalf("expected the C-relay route second, got hops %v", routes[1].ContactIDs())
	}
	if !routes[0].BestDeliveryTime.Before(routes[1].BestDeliveryTime) {
		t.Fatalf("expected routes sorted by BestDeliveryTime ascending")
	}
}

func TestFindRoutesNoPathReturnsNil(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := NewContactPlan()
	plan.AddRoutingContact(model.NewContact("c1", "A", "B", "A", "B", start, start.Add(time.Minute), mustRate(t, "1"), 0, 0))

	routes := FindRoutes(context.Background(), plan, "A", "nonexistent", start, time.Time{}, 3)
	if routes != nil {
		t.Fatalf("expected nil routes, got %v", routes)
	}
}

func TestFindRoutesRespectsEndTimeBound(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := NewContactPlan()
	plan.AddRoutingContact(model.NewContact("c1", "A", "B", "A", "B", start.Add(time.Hour), start.Add(2*time.Hour), mustRate(t, "1"), 0, 0))

	routes := FindRoutes(context.Background(), plan, "A", "B", start, start.Add(time.Minute), 1)
	if routes != nil {
		t.Fatalf("expected no route: contact starts after the endTime bound, got %v", routes)
	}

	routes = FindRoutes(context.Background(), plan, "A", "B", start, time.Time{}, 1)
	if len(routes) != 1 {
		t.Fatalf("expected one route with an unbounded endTime, got %d", len(routes))
	}
}
