package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bundle is a single unit of carried data, created when a Task's pickup
// fires and forwarded hop by hop until it reaches Dst (spec §3, §4.5).
type Bundle struct {
	ID       BundleID
	Src      NodeID
	Dst      EID
	TargetID NodeID
	Size     decimal.Decimal
	Deadline time.Time

	CreatedAt time.Time
	Priority  int
	TaskID    TaskID

	// Current is the node presently holding the bundle; PreviousNode is
	// whoever handed it there last (nil/empty at acquisition).
	Current      NodeID
	PreviousNode NodeID
	HopCount     int

	// BaseRoute is the contact sequence of the route most recently
	// assigned to the bundle by a node's bundle assignment, carried for
	// MSR (moderate source routing, spec §4.5): with MSR enabled, a node
	// prefers a feasible candidate route whose hops equal BaseRoute
	// exactly, and otherwise uses the best feasible candidate. A relay's
	// candidate routes start at the relay while BaseRoute still begins
	// with the hop that brought the bundle there, so the preference only
	// takes effect when the same node re-assigns the bundle.
	BaseRoute []ContactID

	DeliveredAt time.Time
	DroppedAt   time.Time
}

// NewBundle creates a Bundle acquired at src, carrying size units bound
// for dst. deadline is stored as given; no separate time-to-live is
// applied.
func NewBundle(id BundleID, src NodeID, dst EID, target NodeID, size decimal.Decimal, deadline time.Time, priority int, taskID TaskID, createdAt time.Time, baseRoute []ContactID) *Bundle {
	return &Bundle{
		ID:        id,
		Src:       src,
		Dst:       dst,
		TargetID:  target,
		Size:      size,
		Deadline:  deadline,
		CreatedAt: createdAt,
		Priority:  priority,
		TaskID:    taskID,
		Current:   src,
		BaseRoute: baseRoute,
	}
}

// Forward records the bundle's arrival at the next hop.
func (b *Bundle) Forward(via NodeID, at time.Time) {
	b.PreviousNode = b.Current
	b.Current = via
	b.HopCount++
}

// Delivered marks the bundle as having reached its destination.
func (b *Bundle) Delivered(at time.Time) {
	b.DeliveredAt = at
}

// Dropped marks the bundle as lost (buffer overflow downstream, expired
// deadline, or unreachable next hop).
func (b *Bundle) Dropped(at time.Time) {
	b.DroppedAt = at
}

// Expired reports whether the bundle has outlived its deadline.
func (b *Bundle) Expired(now time.Time) bool {
	return now.After(b.Deadline)
}

// MatchesBaseRoute reports whether ids is the same sequence the bundle
// was originally routed along, used by MSR to decide whether a relay
// should keep forwarding along BaseRoute or re-search.
func (b *Bundle) MatchesBaseRoute(ids []ContactID) bool {
	if len(b.BaseRoute) != len(ids) {
		return false
	}
	for i := range ids {
		if b.BaseRoute[i] != ids[i] {
			return false
		}
	}
	return true
}
