package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskStatus mirrors the status strings original_source/src/analytics.py
// stamps onto a task: "pending" until acquired, then "acquired",
// "delivered", "failed", or "rescheduled".
type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskAcquired
	TaskDelivered
	TaskFailed
	TaskRescheduled
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskAcquired:
		return "acquired"
	case TaskDelivered:
		return "delivered"
	case TaskFailed:
		return "failed"
	case TaskRescheduled:
		return "rescheduled"
	default:
		return "unknown"
	}
}

// Task is a scheduled pickup-and-delivery commitment: acquire data from
// TargetID at PickupTime via PickupNode, then deliver it to
// DestinationEID before DeadlineDelivery (spec §3, §4.4). One Task may
// satisfy several Requests when request_duplication folds duplicate asks
// for the same target/window together.
type Task struct {
	UID                 TaskID
	TargetID            NodeID
	PickupTime          time.Time
	PickupNode          NodeID
	DestinationEID      EID
	Size                decimal.Decimal
	Priority            int
	DeadlineAcquisition time.Time
	DeadlineDelivery    time.Time

	// Assignee is the node currently responsible for carrying out this
	// task's pickup (or, once rescheduled, the node that re-took it).
	Assignee NodeID

	RequestIDs []RequestID

	Status    TaskStatus
	UpdatedAt time.Time

	// Bookkeeping set by the corresponding state transition, surfaced
	// for analytics (spec's supplemented feature: richer task lifecycle
	// reporting, grounded on analytics.py's acquired/delivered/failed).
	AcquiredAt    time.Time
	AcquiredBy    NodeID
	DeliveredAt   time.Time
	DeliveredVia  NodeID
	FailedAt      time.Time
	FailedOn      NodeID
	RescheduledAt time.Time
	RescheduledBy NodeID
}

// NewTask constructs a Task in the pending state, owned by assignee.
func NewTask(uid TaskID, target NodeID, pickupTime time.Time, dest EID, size decimal.Decimal, priority int, deadlineAcq, deadlineDel time.Time, assignee NodeID, requestIDs []RequestID, now time.Time) *Task {
	return &Task{
		UID:                 uid,
		TargetID:            target,
		PickupTime:          pickupTime,
		DestinationEID:      dest,
		Size:                size,
		Priority:            priority,
		DeadlineAcquisition: deadlineAcq,
		DeadlineDelivery:    deadlineDel,
		Assignee:            assignee,
		RequestIDs:          requestIDs,
		Status:              TaskPending,
		UpdatedAt:           now,
	}
}

// Acquired marks the task as picked up by pickupNode at time t (spec §4.5
// target pickup procedure).
func (t *Task) Acquired(at time.Time, pickupNode NodeID) {
	t.Status = TaskAcquired
	t.PickupNode = pickupNode
	t.AcquiredAt = at
	t.AcquiredBy = pickupNode
	t.UpdatedAt = at
}

// Delivered marks the task as delivered at time at, recording via as
// DeliveredVia. previousNode is accepted but not stored.
func (t *Task) Delivered(at time.Time, previousNode, via NodeID) {
	t.Status = TaskDelivered
	t.DeliveredAt = at
	t.DeliveredVia = via
	t.UpdatedAt = at
}

// Failed marks the task as unservable: dropped bundle, expired deadline,
// or unreachable destination (spec §4.4, §7).
func (t *Task) Failed(at time.Time, on NodeID) {
	if t.Status == TaskDelivered {
		return
	}
	t.Status = TaskFailed
	t.FailedAt = at
	t.FailedOn = on
	t.UpdatedAt = at
}

// Rescheduled marks the task as handed to a new assignee at time t (spec
// §4.7).
func (t *Task) Rescheduled(at time.Time, by NodeID) {
	t.Status = TaskRescheduled
	t.RescheduledAt = at
	t.RescheduledBy = by
	t.Assignee = by
	t.UpdatedAt = at
}

// Clone returns a deep-enough copy for gossip transmission: a Task sent
// over the wire must not share mutable state with the sender's copy.
func (t *Task) Clone() *Task {
	clone := *t
	clone.RequestIDs = append([]RequestID(nil), t.RequestIDs...)
	return &clone
}

// Dominates reports whether t should replace other in a merged Task
// Table (spec §4.6): delivered is absorbing and always wins; failed is
// terminal unless superseded by a delivered report (a late delivery
// notice wins because the data arrived, spec §4.6 invariant); otherwise
// the later UpdatedAt wins.
func (t *Task) Dominates(other *Task) bool {
	if other.Status == TaskDelivered {
		return false
	}
	if t.Status == TaskDelivered {
		return true
	}
	if other.Status == TaskFailed {
		return false
	}
	if t.Status == TaskFailed {
		return true
	}
	return t.UpdatedAt.After(other.UpdatedAt)
}
