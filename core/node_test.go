package core

import (
	"context"
	"testing"
	"time"

	"github.com/signalsfoundry/cgs-scheduler/internal/logging"
	"github.com/signalsfoundry/cgs-scheduler/model"
	"github.com/signalsfoundry/cgs-scheduler/timectrl"
)

type fullRecordingSink struct {
	submitted   []*model.Request
	duplicated  []model.TaskID
	added       []*model.Task
	rescheduled []model.TaskID
	failed      []model.TaskID
	acquired    []*model.Bundle
	delivered   []*model.Bundle
	dropped     []*model.Bundle
}

func (s *fullRecordingSink) RequestSubmitted(r *model.Request) { s.submitted = append(s.submitted, r) }
func (s *fullRecordingSink) RequestDuplicated(_ model.RequestID, taskID model.TaskID, _ time.Time) {
	s.duplicated = append(s.duplicated, taskID)
}
func (s *fullRecordingSink) TaskAdded(task *model.Task) { s.added = append(s.added, task) }
func (s *fullRecordingSink) TaskRescheduled(taskID model.TaskID, _ time.Time, _ model.NodeID) {
	s.rescheduled = append(s.rescheduled, taskID)
}
func (s *fullRecordingSink) TaskFailed(taskID model.TaskID, _ time.Time, _ model.NodeID) {
	s.failed = append(s.failed, taskID)
}
func (s *fullRecordingSink) BundleAcquired(b *model.Bundle)  { s.acquired = append(s.acquired, b) }
func (s *fullRecordingSink) BundleDelivered(b *model.Bundle) { s.delivered = append(s.delivered, b) }
func (s *fullRecordingSink) BundleDropped(b *model.Bundle, _ error) {
	s.dropped = append(s.dropped, b)
}

func newTestNode(t *testing.T, desc *model.NodeDescriptor, plan *ContactPlan, table *TaskTable, clock timectrl.EventScheduler, network *Network, sink *fullRecordingSink) *Node {
	t.Helper()
	return NewNode(desc, plan, table, clock, network, false, model.ReschedulingOff, 2, time.Second, time.Second,
		WithAnalytics(sink), WithLogger(logging.Noop()))
}

// TestNodeAssignOneLazilyPopulatesRouteTable exercises the
// candidate_routes call when no prior RefreshRouteTable has been done:
// assignOne must still find and enqueue a route rather than silently
// dropping every bundle forever.
func TestNodeAssignOneLazilyPopulatesRouteTable(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := NewContactPlan()
	plan.AddRoutingContact(model.NewContact("c1", "A", "B", "A", "gw", start, start.Add(5*time.Minute), mustRate(t, "10"), 0, 0))

	table := NewTaskTable()
	clock := timectrl.NewTimeController(start)
	network := NewNetwork(clock)
	sink := &fullRecordingSink{}
	desc := &model.NodeDescriptor{UID: "A", Endpoint: "A", BufferCapacity: mustRate(t, "1000")}
	n := newTestNode(t, desc, plan, table, clock, network, sink)

	if _, ok := n.routeTable["gw"]; ok {
		t.Fatalf("expected routeTable to start empty")
	}

	bundle := model.NewBundle("b1", "A", "gw", "T1", mustRate(t, "5"), start.Add(time.Hour), 1, "task1", start, nil)
	n.assignOne(start, bundle)

	if _, ok := n.routeTable["gw"]; !ok {
		t.Fatalf("expected assignOne to lazily populate the route table")
	}
	if len(n.outboundQueues["B"]) != 1 {
		t.Fatalf("expected bundle enqueued toward B, got queues %v", n.outboundQueues)
	}
}

// TestNodeReceiveBundleDeliversAtDestination exercises S1: a bundle
// whose Dst matches the node's own endpoint is marked delivered and the
// matching task is marked delivered too.
func TestNodeReceiveBundleDeliversAtDestination(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := NewContactPlan()
	table := NewTaskTable()
	task := model.NewTask("task1", "T1", start, "gw", mustRate(t, "5"), 1, start.Add(time.Minute), start.Add(time.Hour), "A", nil, start)
	table.Add(task)

	clock := timectrl.NewTimeController(start)
	network := NewNetwork(clock)
	sink := &fullRecordingSink{}
	desc := &model.NodeDescriptor{UID: "D", Endpoint: "gw", BufferCapacity: mustRate(t, "1000")}
	n := newTestNode(t, desc, plan, table, clock, network, sink)

	bundle := model.NewBundle("b1", "A", "gw", "T1", mustRate(t, "5"), start.Add(time.Hour), 1, "task1", start, nil)
	n.ReceiveBundle(start.Add(time.Minute), bundle)

	if bundle.DeliveredAt.IsZero() {
		t.Fatalf("expected bundle to be marked delivered")
	}
	if len(sink.delivered) != 1 {
		t.Fatalf("expected one BundleDelivered event, got %d", len(sink.delivered))
	}
	got, _ := table.Get("task1")
	if got.Status != model.TaskDelivered {
		t.Fatalf("expected task status delivered, got %v", got.Status)
	}
}

// TestNodeAssignOneDropsOnExpiredDeadline exercises S3: a bundle whose
// only available route would deliver after its deadline is dropped.
func TestNodeAssignOneDropsOnExpiredDeadline(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := NewContactPlan()
	plan.AddRoutingContact(model.NewContact("c1", "A", "B", "A", "gw", start.Add(10*time.Minute), start.Add(20*time.Minute), mustRate(t, "10"), 0, 0))

	table := NewTaskTable()
	clock := timectrl.NewTimeController(start)
	network := NewNetwork(clock)
	sink := &fullRecordingSink{}
	desc := &model.NodeDescriptor{UID: "A", Endpoint: "A", BufferCapacity: mustRate(t, "1000")}
	n := newTestNode(t, desc, plan, table, clock, network, sink)

	bundle := model.NewBundle("b1", "A", "gw", "T1", mustRate(t, "5"), start.Add(time.Minute), 1, "task1", start, nil)
	n.assignOne(start, bundle)

	if len(sink.dropped) != 1 {
		t.Fatalf("expected bundle dropped for missing its deadline, got %d drops", len(sink.dropped))
	}
	if len(n.outboundQueues["B"]) != 0 {
		t.Fatalf("expected nothing enqueued for a dropped bundle")
	}
}

// TestNodeAssignOneReroutesWhenReschedulingAny exercises S2: when the
// cached route is no longer feasible but Rescheduling is "any", the node
// searches for an alternate delivery route instead of abandoning the
// bundle outright.
func TestNodeAssignOneReroutesWhenReschedulingAny(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := NewContactPlan()
	// The cached route (via B) has already closed; an alternate route
	// via C is still open and fits the deadline.
	plan.AddRoutingContact(model.NewContact("c1", "A", "C", "A", "gw", start.Add(5*time.Minute), start.Add(30*time.Minute), mustRate(t, "10"), 0, 0))

	table := NewTaskTable()
	task := model.NewTask("task1", "T1", start, "gw", mustRate(t, "5"), 1, start.Add(time.Minute), start.Add(time.Hour), "A", nil, start)
	table.Add(task)

	clock := timectrl.NewTimeController(start)
	network := NewNetwork(clock)
	sink := &fullRecordingSink{}
	desc := &model.NodeDescriptor{UID: "A", Endpoint: "A", BufferCapacity: mustRate(t, "1000")}
	n := NewNode(desc, plan, table, clock, network, false, model.ReschedulingAny, 2, time.Second, time.Second, WithAnalytics(sink), WithLogger(logging.Noop()))

	// routeTable already populated with a now-stale, empty candidate set
	// (the contact it once pointed at has since closed), forcing
	// CandidateRoutes to come up empty and rescheduleDelivery to kick in.
	n.routeTable["gw"] = nil

	bundle := model.NewBundle("b1", "A", "gw", "T1", mustRate(t, "5"), start.Add(time.Hour), 1, "task1", start, nil)
	n.assignOne(start.Add(6*time.Minute), bundle)

	if len(sink.dropped) != 1 {
		t.Fatalf("expected the initial attempt to register a drop, got %d", len(sink.dropped))
	}
	if len(n.outboundQueues["C"]) != 1 {
		t.Fatalf("expected reschedule to enqueue the bundle via the alternate C relay, got %v", n.outboundQueues)
	}
	if len(sink.rescheduled) != 1 {
		t.Fatalf("expected one TaskRescheduled event, got %d", len(sink.rescheduled))
	}
}

// TestNodeAssignOneFallsBackWhenBaseRouteInfeasible exercises MSR's
// promised fallback (model.Bundle's BaseRoute doc comment): when the
// bundle's base route contact has since expired, assignOne must not
// drop the bundle just because MSR is enabled — it should fall back to
// the other feasible route still present in the route table.
func TestNodeAssignOneFallsBackWhenBaseRouteInfeasible(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := NewContactPlan()
	stale := model.NewContact("stale", "A", "B", "A", "gw", start, start.Add(time.Minute), mustRate(t, "10"), 0, 0)
	alt := model.NewContact("alt", "A", "C", "A", "gw", start, start.Add(30*time.Minute), mustRate(t, "10"), 0, 0)

	table := NewTaskTable()
	clock := timectrl.NewTimeController(start)
	network := NewNetwork(clock)
	sink := &fullRecordingSink{}
	desc := &model.NodeDescriptor{UID: "A", Endpoint: "A", BufferCapacity: mustRate(t, "1000")}
	n := NewNode(desc, plan, table, clock, network, true, model.ReschedulingOff, 2, time.Second, time.Second,
		WithAnalytics(sink), WithLogger(logging.Noop()))

	staleRoute := model.RecomputeRoute([]*model.Contact{stale}, start)
	altRoute := model.RecomputeRoute([]*model.Contact{alt}, start)
	n.routeTable["gw"] = []*model.Route{staleRoute, altRoute}

	bundle := model.NewBundle("b1", "A", "gw", "T1", mustRate(t, "5"), start.Add(time.Hour), 1, "task1", start, staleRoute.ContactIDs())

	// Advance past the stale contact's end so it no longer survives
	// CandidateRoutes, but stays within the alternate's window.
	n.assignOne(start.Add(5*time.Minute), bundle)

	if len(sink.dropped) != 0 {
		t.Fatalf("expected no drop: an alternate feasible route exists, got %d drops", len(sink.dropped))
	}
	if len(n.outboundQueues["C"]) != 1 {
		t.Fatalf("expected the bundle enqueued via the alternate C relay, got %v", n.outboundQueues)
	}
}

func TestNodeCheckMissedPickupsReschedulesPrePickup(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := NewContactPlan()
	plan.AddTargetContact(model.NewContact("missed", "A", "T1", "A", "T1", start.Add(-3*time.Minute), start.Add(-time.Minute), mustRate(t, "10"), 0, 0))
	plan.AddTargetContact(model.NewContact("next", "A", "T1", "A", "T1", start.Add(time.Minute), start.Add(2*time.Minute), mustRate(t, "10"), 0, 0))
	plan.AddRoutingContact(model.NewContact("c1", "A", "D", "A", "gw", start, start.Add(time.Hour), mustRate(t, "10"), 0, 0))

	table := NewTaskTable()
	task := model.NewTask("task1", "T1", start.Add(-time.Minute), "gw", mustRate(t, "5"), 1, start, start.Add(time.Hour), "A", nil, start.Add(-time.Minute))
	table.Add(task)

	clock := timectrl.NewTimeController(start)
	network := NewNetwork(clock)
	sink := &fullRecordingSink{}
	desc := &model.NodeDescriptor{UID: "A", Endpoint: "A", BufferCapacity: mustRate(t, "1000")}
	sched := NewScheduler("A", plan, table, ObjectiveCGR, false, 2, logging.Noop())
	n := NewNode(desc, plan, table, clock, network, false, model.ReschedulingPrePickupOnly, 2, time.Second, time.Second,
		WithAnalytics(sink), WithLogger(logging.Noop()), WithScheduler(sched))

	n.CheckMissedPickups(context.Background(), start)

	got, err := table.Get("task1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.TaskRescheduled {
		t.Fatalf("expected task rescheduled after a missed pickup, got %v", got.Status)
	}
	if len(sink.rescheduled) != 1 {
		t.Fatalf("expected one TaskRescheduled event, got %d", len(sink.rescheduled))
	}
}
