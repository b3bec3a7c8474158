// Package model defines the data types shared by the Contact Graph
// Scheduling engine: contacts, routes, requests, tasks, bundles, and the
// identifiers that tie them together.
package model

import (
	"fmt"

	"github.com/google/uuid"
)

// NodeID identifies a participant in the contact plan: a satellite, a
// gateway, the scheduling node (MOC), or a target.
type NodeID string

// EID is an endpoint identifier. Several NodeIDs may share one EID (e.g.
// every gateway reports to the same ground-segment endpoint), so routing
// is always expressed in terms of destination EID, not destination node.
type EID string

// ContactID identifies a Contact within a ContactPlan.
type ContactID string

// TaskID identifies a Task. Per spec §9, IDs are generated as
// (node_uid, local_seq) pairs rather than from a shared counter, so two
// nodes scheduling concurrently never collide.
type TaskID string

// BundleID identifies a Bundle, generated the same way as TaskID.
type BundleID string

// RequestID identifies a Request. Requests originate outside the core
// (the external request source, spec §6), so its ID space uses a UUID
// rather than a node-local sequence.
type RequestID string

// IDGenerator mints node-local, collision-free IDs of the form
// "<node>-task-<seq>" and "<node>-bundle-<seq>" for Tasks and Bundles,
// drawing both from one sequence, per spec §9.
type IDGenerator struct {
	node NodeID
	seq  uint64
}

// NewIDGenerator returns a generator that stamps IDs as owned by node.
func NewIDGenerator(node NodeID) *IDGenerator {
	return &IDGenerator{node: node}
}

// NextTaskID returns the next unused TaskID for this generator's node.
func (g *IDGenerator) NextTaskID() TaskID {
	g.seq++
	return TaskID(fmt.Sprintf("%s-task-%d", g.node, g.seq))
}

// NextBundleID returns the next unused BundleID for this generator's node.
func (g *IDGenerator) NextBundleID() BundleID {
	g.seq++
	return BundleID(fmt.Sprintf("%s-bundle-%d", g.node, g.seq))
}

// NewRequestID mints a globally unique request identifier. Modelled on the
// external request source stamping a UUID on every submitted Request.
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}
