package core

import (
	"context"
	"time"

	"github.com/signalsfoundry/cgs-scheduler/model"
)

// CheckMissedPickups implements the "pre_pickup" rescheduling mode (spec
// §4.7): for every task assigned to self whose pickup_time has passed
// while still pending (the target contact was missed, no bundle
// produced), mark it rescheduled and invoke the scheduler locally for a
// new (target-contact, route) pairing. A no-op when rescheduling is off,
// and on a node without a Scheduler, which leaves such tasks unchanged.
func (n *Node) CheckMissedPickups(ctx context.Context, now time.Time) {
	if n.Rescheduling == model.ReschedulingOff {
		return
	}
	for _, task := range n.TaskTable.All() {
		if task.Assignee != n.UID || task.Status != model.TaskPending {
			continue
		}
		if now.Before(task.PickupTime) {
			continue
		}
		n.reschedulePrePickup(ctx, now, task)
	}
}

func (n *Node) reschedulePrePickup(ctx context.Context, now time.Time, task *model.Task) {
	if n.Scheduler == nil {
		return
	}

	request := model.NewRequest(model.NewRequestID(), task.TargetID, task.DestinationEID, task.Size, task.Priority, task.DeadlineDelivery, now)

	newTask, err := n.Scheduler.Schedule(ctx, request, now)
	if err != nil {
		task.Failed(now, n.UID)
		n.TaskTable.Add(task)
		n.Analytics.TaskFailed(task.UID, now, n.UID)
		return
	}

	task.Rescheduled(now, newTask.Assignee)
	task.PickupTime = newTask.PickupTime
	task.DeadlineAcquisition = newTask.DeadlineAcquisition
	n.TaskTable.Add(task)
	n.Analytics.TaskRescheduled(task.UID, now, newTask.Assignee)
}

// rescheduleDelivery implements the "any" rescheduling mode (spec
// §4.7): when a bundle has no feasible onward route, mark its task
// rescheduled and search for a new delivery route across the remaining
// horizon [now, deadline] from self to the destination (the pickup has
// already happened; only the delivery leg is re-sought). A no-op unless
// Rescheduling == ReschedulingAny.
func (n *Node) rescheduleDelivery(now time.Time, bundle *model.Bundle) {
	if n.Rescheduling != model.ReschedulingAny {
		return
	}

	routes := FindRoutes(context.Background(), n.Plan, n.UID, bundle.Dst, now, bundle.Deadline, n.KRoutesPerPair)
	candidates := CandidateRoutes(now, bundle, routes, nil)
	if len(candidates) == 0 {
		if task, err := n.TaskTable.Get(bundle.TaskID); err == nil {
			task.Failed(now, n.UID)
			n.TaskTable.Add(task)
			n.Analytics.TaskFailed(task.UID, now, n.UID)
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

	if task, err := n.TaskTable.Get(bundle.TaskID); err == nil {
		task.Rescheduled(now, n.UID)
		n.TaskTable.Add(task)
		n.Analytics.TaskRescheduled(task.UID, now, n.UID)
	}
}
