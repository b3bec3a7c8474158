package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// infiniteVolume stands in for "unbounded" on virtual management contacts.
// Large enough that no realistic bundle size or accumulated debit will
// exhaust it, without risking float-style overflow from true infinity.
var infiniteVolume = decimal.New(1, 18)

// Contact is a bounded-time directed communication opportunity between two
// nodes at a fixed data rate (spec §3).
//
// Target-contact convention (spec §4.4 step 1, §9): a contact in which the
// receiver is a ground/surface target (one that does not relay) is
// modelled with To == target's NodeID and From == the acquiring satellite,
// matching original_source/src/node.py's _target_contact_procedure, which
// matches task.target against contact.to.
type Contact struct {
	ID   ContactID
	From NodeID
	To   NodeID

	FromEID EID
	ToEID   EID

	Start time.Time
	End   time.Time

	// Rate is the data rate in volume units per second.
	Rate decimal.Decimal
	// OWLT is the one-way light time (propagation delay) of this contact.
	OWLT time.Duration
	// Cost is the scalar path weight read from the contact plan. Route
	// search ranks purely by arrival time and does not read it.
	Cost float64

	// Volume is the nominal capacity of the contact: Rate * duration.
	Volume decimal.Decimal
	// ResidualVolume is mutable: debited by scheduling (§4.4) and bundle
	// assignment (§4.5), credited back on rollback/contact-end reversal (§5).
	ResidualVolume decimal.Decimal

	// MAV holds optional per-priority reserved volume ("managed available
	// volume"). Nil unless priority-aware reservation is configured.
	MAV map[int]decimal.Decimal
}

// NewContact constructs a Contact with Volume and ResidualVolume derived
// from rate * duration, per spec §3.
func NewContact(id ContactID, from, to NodeID, fromEID, toEID EID, start, end time.Time, rate decimal.Decimal, owlt time.Duration, cost float64) *Contact {
	duration := decimal.NewFromFloat(end.Sub(start).Seconds())
	volume := rate.Mul(duration)
	return &Contact{
		ID:             id,
		From:           from,
		To:             to,
		FromEID:        fromEID,
		ToEID:          toEID,
		Start:          start,
		End:            end,
		Rate:           rate,
		OWLT:           owlt,
		Cost:           cost,
		Volume:         volume,
		ResidualVolume: volume,
	}
}

// NewVirtualContact returns a permanent, effectively-infinite-capacity
// contact. Spec §4.1: a virtual contact connects the scheduler node to
// each gateway, in both directions, so the management channel is always
// reachable for task-table gossip regardless of the physical contact plan.
func NewVirtualContact(id ContactID, from, to NodeID, eid EID, start, end time.Time) *Contact {
	return &Contact{
		ID:             id,
		From:           from,
		To:             to,
		FromEID:        eid,
		ToEID:          eid,
		Start:          start,
		End:            end,
		Rate:           infiniteVolume,
		OWLT:           0,
		Cost:           0,
		Volume:         infiniteVolume,
		ResidualVolume: infiniteVolume,
	}
}

// TransmissionTime returns how long it takes to send size volume units
// over this contact at its nominal rate.
func (c *Contact) TransmissionTime(size decimal.Decimal) time.Duration {
	if c.Rate.IsZero() {
		return 0
	}
	seconds, _ := size.Div(c.Rate).Float64()
	return time.Duration(seconds * float64(time.Second))
}

// ArrivalTime returns the earliest time a byte entering this contact at
// (or after) arrival can reach c.To, i.e. max(arrival, c.Start) + OWLT.
func (c *Contact) ArrivalTime(arrival time.Time) time.Time {
	effectiveStart := arrival
	if c.Start.After(arrival) {
		effectiveStart = c.Start
	}
	return effectiveStart.Add(c.OWLT)
}

// Reachable reports whether this contact can still be entered at time t:
// it must not have already ended (by the time the first byte would reach
// the receiver), per spec §4.2's Dijkstra-relaxation condition.
func (c *Contact) Reachable(arrival time.Time) bool {
	effectiveStart := arrival
	if c.Start.After(arrival) {
		effectiveStart = c.Start
	}
	return c.End.After(effectiveStart.Add(c.OWLT))
}

// Expired reports whether the contact has ended by time now (§4.3, §4.5).
func (c *Contact) Expired(now time.Time) bool {
	return !c.End.After(now)
}
