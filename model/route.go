package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Route is an ordered sequence of contacts a bundle can traverse to reach
// a destination endpoint (spec §3). Routes are immutable once
// constructed; staleness is handled by re-search, not mutation.
type Route struct {
	Hops []*Contact

	// BestDeliveryTime is the latest arrival time accumulated across hops:
	// for each hop, max(prevArrival, hop.Start) + hop.OWLT, seeded by the
	// path-entry time at hop 0. Computed with size zero, matching spec
	// §4.2's graph-search definition (route search runs before a bundle
	// is chosen, so no size is known yet); callers scoring or filtering a
	// route against an actual bundle use DeliveryTimeForSize instead,
	// which folds in transmission_time (spec §3).
	BestDeliveryTime time.Time

	// EntryTime is the time the path was entered at hop 0, recorded so
	// DeliveryTimeForSize can replay the hop sequence with a real bundle
	// size without the caller having to re-derive it.
	EntryTime time.Time
}

// BottleneckVolume returns the minimum residual volume across all hops,
// read live off the underlying Contacts (which are shared pointers with
// the ContactPlan) rather than cached, since residual volume mutates as
// bundles are assigned and rolled back (spec §4.3 "recomputed bottleneck").
func (r *Route) BottleneckVolume() decimal.Decimal {
	if len(r.Hops) == 0 {
		return decimal.Zero
	}
	min := r.Hops[0].ResidualVolume
	for _, hop := range r.Hops[1:] {
		if hop.ResidualVolume.LessThan(min) {
			min = hop.ResidualVolume
		}
	}
	return min
}

// Destination returns the EID the final hop delivers to.
func (r *Route) Destination() EID {
	if len(r.Hops) == 0 {
		return ""
	}
	return r.Hops[len(r.Hops)-1].ToEID
}

// Entry returns the node the route departs from.
func (r *Route) Entry() NodeID {
	if len(r.Hops) == 0 {
		return ""
	}
	return r.Hops[0].From
}

// NextHop returns the contact the bundle should be enqueued on.
func (r *Route) NextHop() *Contact {
	if len(r.Hops) == 0 {
		return nil
	}
	return r.Hops[0]
}

// ContactIDs returns the hop IDs in order, used for MSR base-route
// comparisons (spec §4.5) and as a stable, comparable route fingerprint.
func (r *Route) ContactIDs() []ContactID {
	ids := make([]ContactID, len(r.Hops))
	for i, h := range r.Hops {
		ids[i] = h.ID
	}
	return ids
}

// SameHops reports whether r and other traverse the same contacts in the
// same order.
func (r *Route) SameHops(other []ContactID) bool {
	ids := r.ContactIDs()
	if len(ids) != len(other) {
		return false
	}
	for i := range ids {
		if ids[i] != other[i] {
			return false
		}
	}
	return true
}

// Fingerprint renders the hop sequence as a lexicographically comparable
// string, used for Yen's "already present" de-duplication and tie-break.
func (r *Route) Fingerprint() string {
	ids := r.ContactIDs()
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = string(id)
	}
	return strings.Join(strs, ">")
}

// RecomputeRoute derives BestDeliveryTime from Hops, given the time the
// path is entered at hop 0. Exported for use by the route-search pass,
// which needs to re-derive arrival times after suppressing or re-checking
// hops. Bottleneck volume is intentionally not computed here: it must be
// read live via BottleneckVolume at the point of use (spec §4.3).
func RecomputeRoute(hops []*Contact, entryTime time.Time) *Route {
	if len(hops) == 0 {
		return &Route{Hops: hops, EntryTime: entryTime}
	}
	return &Route{
		Hops:             hops,
		EntryTime:        entryTime,
		BestDeliveryTime: accumulateDeliveryTime(hops, entryTime, decimal.Zero),
	}
}

// DeliveryTimeForSize replays the hop sequence from EntryTime with size's
// real transmission_time term included at every hop (spec §3: arrival =
// max(prevArrival, hop.Start) + owlt + size/rate), unlike BestDeliveryTime
// which is fixed at size zero. Used wherever a route is being evaluated
// against an actual bundle rather than compared during route search.
func (r *Route) DeliveryTimeForSize(size decimal.Decimal) time.Time {
	return accumulateDeliveryTime(r.Hops, r.EntryTime, size)
}

func accumulateDeliveryTime(hops []*Contact, entryTime time.Time, size decimal.Decimal) time.Time {
	arrival := entryTime
	for _, hop := range hops {
		arrival = hop.ArrivalTime(arrival).Add(hop.TransmissionTime(size))
	}
	return arrival
}
