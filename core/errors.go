package core

import "errors"

var (
	// ErrNoFeasibleTask is returned by Scheduler.Schedule when no
	// target-contact/route pairing exists that can satisfy a request
	// within its deadline.
	ErrNoFeasibleTask = errors.New("no feasible task for request")

	// ErrBufferOverflow is returned when a bundle would exceed a node's
	// buffer capacity. The sender keeps the bundle in its outbound
	// queue until contact end, then returns it to its own buffer.
	ErrBufferOverflow = errors.New("buffer overflow")

	// ErrContactExpiredMidTransmission marks a bundle aborted because its
	// contact ended before the transfer completed.
	ErrContactExpiredMidTransmission = errors.New("contact expired mid transmission")

	// ErrUnreachableDestination is returned when candidate route search
	// yields no feasible route to a bundle's destination.
	ErrUnreachableDestination = errors.New("destination unreachable")

	// ErrContactNotFound is returned by ContactPlan lookups against an
	// unknown ContactID.
	ErrContactNotFound = errors.New("contact not found")

	// ErrInsufficientResidualVolume is returned when a debit would drive
	// a contact's residual volume negative.
	ErrInsufficientResidualVolume = errors.New("insufficient residual volume")

	// ErrTaskNotFound is returned by TaskTable lookups against an
	// unknown TaskID.
	ErrTaskNotFound = errors.New("task not found")

	// ErrDuplicateRequest names the case where request_duplication detects
	// an existing task already covering the same target and delivery
	// window. Scheduler.Schedule does not return it: it folds the request
	// into that task and returns the task with a nil error.
	ErrDuplicateRequest = errors.New("request already covered by an existing task")
)
