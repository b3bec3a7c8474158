package core

import (
	"context"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/signalsfoundry/cgs-scheduler/internal/logging"
	"github.com/signalsfoundry/cgs-scheduler/model"
	"github.com/signalsfoundry/cgs-scheduler/timectrl"
)

// Node is the event-driven actor state machine described in spec §4.5:
// it runs contacts, acquires bundles off targets, forwards bundles
// toward their destination, reschedules on failure, and (if
// scheduler-capable) turns Requests into Tasks. Control flow mirrors
// original_source/src/node.py's generator-based activities, restructured
// as goroutines cooperating through timectrl's EventScheduler instead of
// simpy generators.
type Node struct {
	UID        model.NodeID
	Endpoint   model.EID
	Descriptor *model.NodeDescriptor

	Plan      *ContactPlan
	TaskTable *TaskTable
	Buffer    *Buffer
	Network   *Network
	Clock     timectrl.EventScheduler
	Analytics AnalyticsSink
	Scheduler *Scheduler // nil unless Descriptor.SchedulerCapable

	MSREnabled         bool
	Rescheduling       model.ReschedulingMode
	KRoutesPerPair     int
	BundleAssignPeriod time.Duration
	OutboundPollPeriod time.Duration

	ids *model.IDGenerator
	log logging.Logger

	selfContacts []*model.Contact // contacts where From == UID, time-ordered

	outboundQueues map[model.NodeID][]*model.Bundle
	routeTable     map[model.EID][]*model.Route

	requestQueue []*model.Request

	// pollLimiter throttles the outbound-queue polling branch of
	// peerContactProcedure (spec §4.5.A "poll a small interval"): a
	// rate.Limiter keyed off OutboundPollPeriod, consulted with the
	// simulator's own virtual "now" via ReserveN, so repeated empty-queue
	// polls back off under congestion instead of hammering the event
	// scheduler at a fixed period.
	pollLimiter *rate.Limiter
}

// NodeOption configures optional Node collaborators at construction.
type NodeOption func(*Node)

// WithScheduler attaches a Scheduler, making the node scheduler-capable.
func WithScheduler(s *Scheduler) NodeOption {
	return func(n *Node) { n.Scheduler = s }
}

// WithAnalytics attaches an analytics sink.
func WithAnalytics(a AnalyticsSink) NodeOption {
	return func(n *Node) { n.Analytics = a }
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) NodeOption {
	return func(n *Node) { n.log = l }
}

// NewNode constructs a Node bound to plan/taskTable/clock/network.
func NewNode(desc *model.NodeDescriptor, plan *ContactPlan, taskTable *TaskTable, clock timectrl.EventScheduler, network *Network, msrEnabled bool, rescheduling model.ReschedulingMode, kRoutes int, bundleAssignPeriod, outboundPollPeriod time.Duration, opts ...NodeOption) *Node {
	if kRoutes < 1 {
		kRoutes = 1
	}
	n := &Node{
		UID:                desc.UID,
		Endpoint:           desc.Endpoint,
		Descriptor:         desc,
		Plan:               plan,
		TaskTable:          taskTable,
		Buffer:             NewBuffer(desc.BufferCapacity),
		Network:            network,
		Clock:              clock,
		Analytics:          noopAnalyticsSink{},
		MSREnabled:         msrEnabled,
		Rescheduling:       rescheduling,
		KRoutesPerPair:     kRoutes,
		BundleAssignPeriod: bundleAssignPeriod,
		OutboundPollPeriod: outboundPollPeriod,
		ids:                model.NewIDGenerator(desc.UID),
		log:                logging.Noop(),
		outboundQueues:     make(map[model.NodeID][]*model.Bundle),
		routeTable:         make(map[model.EID][]*model.Route),
		pollLimiter:        rate.NewLimiter(rate.Every(outboundPollPeriod), 1),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.Scheduler != nil {
		n.Scheduler.Analytics = n.Analytics
	}
	return n
}

// SetSelfContacts installs the contacts departing this node (routing and
// target), sorted by start time, for the contact controller to walk.
func (n *Node) SetSelfContacts(contacts []*model.Contact) {
	sorted := append([]*model.Contact(nil), contacts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	n.selfContacts = sorted
}

// RefreshRouteTable recomputes and caches up to KRoutesPerPair candidate
// routes from this node to dest, for use by the bundle assignment
// controller's candidate_routes call (spec §4.3, §4.5.B).
func (n *Node) RefreshRouteTable(dest model.EID, now, endTime time.Time) {
	routes := FindRoutes(context.Background(), n.Plan, n.UID, dest, now, endTime, n.KRoutesPerPair)
	n.routeTable[dest] = routes
}

// RequestReceived implements spec §4.5.C / scheduling.request_received:
// queues the request and immediately invokes the scheduler (scheduler-
// role nodes only).
func (n *Node) RequestReceived(ctx context.Context, request *model.Request, now time.Time) {
	if n.Scheduler == nil {
		return
	}
	n.Analytics.RequestSubmitted(request)
	n.requestQueue = append(n.requestQueue, request)
	n.processRequests(ctx, now)
}

func (n *Node) processRequests(ctx context.Context, now time.Time) {
	for len(n.requestQueue) > 0 {
		request := n.requestQueue[0]
		n.requestQueue = n.requestQueue[1:]

		task, err := n.Scheduler.Schedule(ctx, request, now)
		if err != nil {
			request.Failed()
			n.log.Warn(ctx, "request could not be scheduled",
				logging.String("request_uid", string(request.UID)))
			continue
		}

		n.TaskTable.Add(task)
		n.Analytics.TaskAdded(task)
		request.Accept(task.UID)
	}
}

// RunContactController spawns the long-lived activity that walks this
// node's outgoing contacts in time order (spec §4.5.A).
func (n *Node) RunContactController() {
	n.Clock.Spawn(func() {
		for _, c := range n.selfContacts {
			now := n.Clock.Now()
			if c.Start.After(now) {
				<-n.Clock.Sleep(c.Start.Sub(now))
			}
			if n.isTarget(c) {
				n.targetPickupProcedure(c)
			} else {
				n.peerContactProcedure(c)
			}
		}
	})
}

// isTarget reports whether c's receiver is a non-relaying target, using
// the convention that a target contact has To == target and From ==
// acquiring satellite (spec §9, model.Contact doc comment): we treat c
// as a target contact if it is registered in the target plan rather than
// the routing plan.
func (n *Node) isTarget(c *model.Contact) bool {
	_, err := n.Plan.Contact(c.ID)
	return err != nil
}

// targetPickupProcedure implements spec §4.5.A's target pickup: for
// every task (pending, or rescheduled onto a new pickup) whose pickup is
// on this contact and assigned to self, synthesise a Bundle and push it
// into the buffer.
func (n *Node) targetPickupProcedure(c *model.Contact) {
	now := n.Clock.Now()
	for _, task := range n.TaskTable.All() {
		if task.Status != model.TaskPending && task.Status != model.TaskRescheduled {
			continue
		}
		if !task.PickupTime.Equal(now) || task.TargetID != c.To || task.Assignee != n.UID {
			continue
		}

		bundleDeadline := task.DeadlineDelivery

		bundle := model.NewBundle(
			n.ids.NextBundleID(),
			n.UID,
			task.DestinationEID,
			task.TargetID,
			task.Size,
			bundleDeadline,
			task.Priority,
			task.UID,
			now,
			nil,
		)

		if err := n.Buffer.Append(bundle); err != nil {
			n.log.Warn(context.Background(), "dropped bundle at acquisition: buffer overflow",
				logging.String("task_uid", string(task.UID)))
			continue
		}

		stored, _ := n.TaskTable.Get(task.UID)
		stored.Acquired(now, n.UID)
		n.TaskTable.Add(stored)
		n.Analytics.BundleAcquired(bundle)
	}
}

// peerContactProcedure implements spec §4.5.A's peer contact: handshake
// (send full task table), then while the contact is open, prefer
// sending a task-table delta if dirty, else pop and transmit the head of
// the outbound queue, else poll.
func (n *Node) peerContactProcedure(c *model.Contact) {
	n.TaskTable.RegisterNeighbour(c.To)
	n.handshake(c)

	for n.Clock.Now().Before(c.End) {
		now := n.Clock.Now()

		if n.TaskTable.DirtyFor(c.To) {
			n.sendTaskTable(c, now)
			n.TaskTable.ClearDirty(c.To)
			continue
		}

		queue := n.outboundQueues[c.To]
		if len(queue) == 0 {
			remaining := c.End.Sub(now)
			if remaining <= 0 {
				break
			}
			wait := n.pollLimiter.ReserveN(now, 1).DelayFrom(now)
			if wait <= 0 {
				wait = n.OutboundPollPeriod
			}
			if wait > remaining {
				wait = remaining
			}
			<-n.Clock.Sleep(wait)
			continue
		}

		bundle := queue[0]
		txTime := c.TransmissionTime(bundle.Size)
		if now.Add(txTime).After(c.End) {
			break
		}
		n.outboundQueues[c.To] = queue[1:]
		bundle.Forward(c.To, now)
		n.Network.SendBundle(c.To, bundle, now.Add(c.OWLT+txTime))
		<-n.Clock.Sleep(txTime)
	}

	n.returnOutboundQueueToBuffer(c)
}

func (n *Node) handshake(c *model.Contact) {
	n.sendTaskTable(c, n.Clock.Now())
}

// sendTaskTable transmits the full task table snapshot rather than a
// computed delta: the merge rule (spec §4.6) is idempotent and total,
// so sending the whole table is always correct, just not bandwidth
// optimal. A true per-neighbour delta would need the version-vector
// scheme spec §9 floats as a redesign; out of scope here.
func (n *Node) sendTaskTable(c *model.Contact, now time.Time) {
	n.Network.SendTaskTable(c.To, n.TaskTable.All(), now.Add(c.OWLT))
}

// returnOutboundQueueToBuffer reabsorbs anything left in c.To's outbound
// queue at contact close, crediting back the residual volume debited
// for it (spec §5 cancellation: "residual volume debits for that hop
// must be undone").
func (n *Node) returnOutboundQueueToBuffer(c *model.Contact) {
	queue := n.outboundQueues[c.To]
	n.outboundQueues[c.To] = nil
	for _, bundle := range queue {
		for _, hopID := range bundle.BaseRoute {
			_ = n.Plan.CreditResidualVolume(hopID, bundle.Size)
		}
		if err := n.Buffer.Append(bundle); err != nil {
			n.Analytics.BundleDropped(bundle, err)
		}
	}
}

// ReceiveBundle implements spec's bundle_receive: rejects with
// BufferOverflow if it doesn't fit, marks delivery if this node is the
// destination, else re-buffers for onward forwarding.
func (n *Node) ReceiveBundle(now time.Time, bundle *model.Bundle) {
	if bundle.Dst == n.Endpoint {
		bundle.Delivered(now)
		n.Analytics.BundleDelivered(bundle)
		if task, err := n.TaskTable.Get(bundle.TaskID); err == nil {
			task.Delivered(now, bundle.PreviousNode, n.UID)
			n.TaskTable.Add(task)
		}
		return
	}

	if err := n.Buffer.Append(bundle); err != nil {
		// Sender retains the bundle until contact end, then returns it
		// to its own buffer (spec §7 BufferOverflow); the receiver does
		// nothing further here.
		return
	}
}

// ReceiveTaskTable implements spec §4.6's gossip merge entry point.
func (n *Node) ReceiveTaskTable(snapshot map[model.TaskID]*model.Task) {
	n.TaskTable.Merge(snapshot)
}

// RunBundleAssignmentController spawns the periodic activity that
// drains the buffer and assigns routes to every bundle in it (spec
// §4.5.B).
func (n *Node) RunBundleAssignmentController() {
	n.Clock.Spawn(func() {
		for {
			now := n.Clock.Now()
			n.refreshKnownRoutes(now)
			n.assignBundles(now)
			n.CheckMissedPickups(context.Background(), now)
			<-n.Clock.Sleep(n.BundleAssignPeriod)
		}
	})
}

// refreshKnownRoutes recomputes every cached route-table entry against
// the current time, so contacts that have since closed drop out of the
// candidate set and any newly reachable spur becomes visible (spec
// §4.5.B: candidate_routes is recomputed each assignment pass, not
// cached for the life of the node).
func (n *Node) refreshKnownRoutes(now time.Time) {
	for dest := range n.routeTable {
		n.RefreshRouteTable(dest, now, time.Time{})
	}
}

func (n *Node) assignBundles(now time.Time) {
	for _, bundle := range n.Buffer.Drain() {
		n.assignOne(now, bundle)
	}
}

func (n *Node) assignOne(now time.Time, bundle *model.Bundle) {
	routes, ok := n.routeTable[bundle.Dst]
	if !ok {
		n.RefreshRouteTable(bundle.Dst, now, time.Time{})
		routes = n.routeTable[bundle.Dst]
	}

	candidates := CandidateRoutes(now, bundle, routes, nil)

	if n.MSREnabled && len(bundle.BaseRoute) > 0 {
		for _, r := range candidates {
			if r.SameHops(bundle.BaseRoute) {
				candidates = []*model.Route{r}
				break
			}
		}
	}

	if len(candidates) == 0 {
		n.Analytics.BundleDropped(bundle, ErrUnreachableDestination)
		if n.Rescheduling == model.ReschedulingAny {
			n.rescheduleDelivery(now, bundle)
		}
		return
	}

	route := candidates[0]
	for _, id := range route.ContactIDs() {
		_ = n.Plan.DebitResidualVolume(id, bundle.Size)
	}
	bundle.BaseRoute = route.ContactIDs()
	first := route.Hops[0].To
	n.outboundQueues[first] = append(n.outboundQueues[first], bundle)
}
