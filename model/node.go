package model

import "github.com/shopspring/decimal"

// ReschedulingMode bounds how aggressively a node may reassign a Task
// away from its original assignee (spec §4.7, §6).
type ReschedulingMode int

const (
	ReschedulingOff ReschedulingMode = iota
	ReschedulingPrePickupOnly
	ReschedulingAny
)

func (m ReschedulingMode) String() string {
	switch m {
	case ReschedulingOff:
		return "off"
	case ReschedulingPrePickupOnly:
		return "pre_pickup"
	case ReschedulingAny:
		return "any"
	default:
		return "unknown"
	}
}

// NodeDescriptor is the static configuration of a participant in the
// contact plan: its role flags, buffer sizing, and rescheduling policy
// (spec §3 "Node" fields, minus the mutable per-node state that lives in
// core.Node instead — contact-plan views, queues, task table).
type NodeDescriptor struct {
	UID      NodeID
	Endpoint EID

	SchedulerCapable   bool
	AcquisitionCapable bool
	ForwardingOnly     bool

	BufferCapacity decimal.Decimal

	Rescheduling ReschedulingMode
}
