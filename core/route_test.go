package core

import (
	"testing"
	"time"

	"github.com/signalsfoundry/cgs-scheduler/model"
)

func TestCandidateRoutesFiltersByDeadlineAndVolume(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cHeavy := model.NewContact("c1", "A", "B", "A", "B", start, start.Add(time.Minute), mustRate(t, "10"), 0, 0)
	cLate := model.NewContact("c2", "A", "B", "A", "B", start.Add(time.Hour), start.Add(2*time.Hour), mustRate(t, "10"), 0, 0)
	cThin := model.NewContact("c3", "A", "B", "A", "B", start, start.Add(4*time.Second), mustRate(t, "1"), 0, 0)

	routeHeavy := model.RecomputeRoute([]*model.Contact{cHeavy}, start)
	routeLate := model.RecomputeRoute([]*model.Contact{cLate}, start)
	routeThin := model.RecomputeRoute([]*model.Contact{cThin}, start)

	bundle := &model.Bundle{Size: mustRate(t, "5"), Deadline: start.Add(10 * time.Minute)}

	out := CandidateRoutes(start, bundle, []*model.Route{routeHeavy, routeLate, routeThin}, nil)
	if len(out) != 1 {
		t.Fatalf("expected only routeHeavy to survive, got %d routes", len(out))
	}
	if out[0] != routeHeavy {
		t.Fatalf("expected routeHeavy to survive filtering")
	}
}

func TestCandidateRoutesExcludesNode(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := model.NewContact("c1", "A", "B", "A", "B", start, start.Add(time.Minute), mustRate(t, "10"), 0, 0)
	route := model.RecomputeRoute([]*model.Contact{c}, start)
	bundle := &model.Bundle{Size: mustRate(t, "1"), Deadline: start.Add(time.Hour)}

	out := CandidateRoutes(start, bundle, []*model.Route{route}, map[model.NodeID]bool{"B": true})
	if len(out) != 0 {
		t.Fatalf("expected route through excluded node B to be filtered out")
	}
}

func TestCandidateRoutesSortsByBestDeliveryTime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cSlow := model.NewContact("slow", "A", "B", "A", "B", start.Add(5*time.Minute), start.Add(10*time.Minute), mustRate(t, "10"), 0, 0)
	cFast := model.NewContact("fast", "A", "B", "A", "B", start, start.Add(time.Minute), mustRate(t, "10"), 0, 0)
	routeSlow := model.RecomputeRoute([]*model.Contact{cSlow}, start)
	routeFast := model.RecomputeRoute([]*model.Contact{cFast}, start)

	bundle := &model.Bundle{Size: mustRate(t, "1"), Deadline: start.Add(time.Hour)}
	out := CandidateRoutes(start, bundle, []*model.Route{routeSlow, routeFast}, nil)
	if len(out) != 2 || out[0] != routeFast || out[1] != routeSlow {
		t.Fatalf("expected fast route first, got %v", out)
	}
}
