package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus tracks a Request through the lifecycle described in
// spec §3: submitted by an external source, accepted once a feasible Task
// exists, acquired once the underlying data has been picked up, delivered
// once a Bundle carrying it reaches the destination EID, or failed.
type RequestStatus int

const (
	RequestSubmitted RequestStatus = iota
	RequestAccepted
	RequestAcquired
	RequestDelivered
	RequestFailed
)

func (s RequestStatus) String() string {
	switch s {
	case RequestSubmitted:
		return "submitted"
	case RequestAccepted:
		return "accepted"
	case RequestAcquired:
		return "acquired"
	case RequestDelivered:
		return "delivered"
	case RequestFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request is an external ask for data to be collected from TargetID and
// delivered to DestinationEID by Deadline (spec §3). Requests are the
// input the scheduler consumes; several Requests may be folded into one
// Task when request_duplication is enabled (spec §4.4).
type Request struct {
	UID            RequestID
	TargetID       NodeID
	DestinationEID EID
	Size           decimal.Decimal
	Priority       int
	Deadline       time.Time
	TimeCreated    time.Time
	Status         RequestStatus
	AssignedTaskID TaskID
}

// NewRequest constructs a Request in the submitted state.
func NewRequest(uid RequestID, target NodeID, dest EID, size decimal.Decimal, priority int, deadline, now time.Time) *Request {
	return &Request{
		UID:            uid,
		TargetID:       target,
		DestinationEID: dest,
		Size:           size,
		Priority:       priority,
		Deadline:       deadline,
		TimeCreated:    now,
		Status:         RequestSubmitted,
	}
}

// Accept marks the request as bound to a Task.
func (r *Request) Accept(taskID TaskID) {
	r.Status = RequestAccepted
	r.AssignedTaskID = taskID
}

// Acquired marks the request's data as picked up off its target.
func (r *Request) Acquired() {
	r.Status = RequestAcquired
}

// Delivered marks the request as satisfied.
func (r *Request) Delivered() {
	r.Status = RequestDelivered
}

// Failed marks the request as unservable (expired deadline, unreachable
// destination, or its Task was abandoned without a replacement).
func (r *Request) Failed() {
	r.Status = RequestFailed
}

// Expired reports whether the request's deadline has passed.
func (r *Request) Expired(now time.Time) bool {
	return now.After(r.Deadline)
}
