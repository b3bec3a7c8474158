package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/signalsfoundry/cgs-scheduler/model"
)

// ContactPlan holds the contact set for one horizon, partitioned into
// routing contacts (node-to-node, graph search eligible) and target
// contacts (satellite-to-target, consulted only by the scheduler since
// targets do not relay), per spec §4.1. A virtual contact of infinite
// capacity between the scheduler node and each gateway is stored among
// the routing contacts like any other.
//
// ContactPlan is safe for concurrent use: route search reads it while
// the scheduler and bundle-assignment controller debit/credit residual
// volume concurrently.
type ContactPlan struct {
	mu sync.RWMutex

	routing map[model.ContactID]*model.Contact
	target  map[model.ContactID]*model.Contact

	// byFrom indexes routing contacts by originating node for the graph
	// view (spec §4.1: "for a source node u and time t, the set of
	// contacts with from==u and end>t").
	byFrom map[model.NodeID][]*model.Contact
}

// NewContactPlan returns an empty plan.
func NewContactPlan() *ContactPlan {
	return &ContactPlan{
		routing: make(map[model.ContactID]*model.Contact),
		target:  make(map[model.ContactID]*model.Contact),
		byFrom:  make(map[model.NodeID][]*model.Contact),
	}
}

// AddRoutingContact inserts a node-to-node contact into the graph-search
// view.
func (p *ContactPlan) AddRoutingContact(c *model.Contact) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routing[c.ID] = c
	p.byFrom[c.From] = append(p.byFrom[c.From], c)
}

// AddTargetContact inserts a satellite-to-target contact, consulted only
// during scheduling (spec §4.4 step 1).
func (p *ContactPlan) AddTargetContact(c *model.Contact) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target[c.ID] = c
}

// AddVirtualContact installs a permanent infinite-capacity contact from
// the scheduler node to a gateway, in both directions, so the management
// channel is always reachable (spec §4.1).
func (p *ContactPlan) AddVirtualContact(idPrefix string, scheduler, gateway model.NodeID, eid model.EID, horizonStart, horizonEnd time.Time) {
	fwd := model.NewVirtualContact(model.ContactID(idPrefix+"-fwd"), scheduler, gateway, eid, horizonStart, horizonEnd)
	rev := model.NewVirtualContact(model.ContactID(idPrefix+"-rev"), gateway, scheduler, eid, horizonStart, horizonEnd)
	p.AddRoutingContact(fwd)
	p.AddRoutingContact(rev)
}

// Contact returns the routing contact with the given ID.
func (p *ContactPlan) Contact(id model.ContactID) (*model.Contact, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.routing[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContactNotFound, id)
	}
	return c, nil
}

// OutgoingFrom returns the routing contacts departing node at or after
// t, i.e. those still enterable (end > t). Used as the graph view's
// adjacency function by route search (spec §4.1, §4.2).
func (p *ContactPlan) OutgoingFrom(node model.NodeID, t time.Time) []*model.Contact {
	p.mu.RLock()
	defer p.mu.RUnlock()
	all := p.byFrom[node]
	out := make([]*model.Contact, 0, len(all))
	for _, c := range all {
		if c.End.After(t) {
			out = append(out, c)
		}
	}
	return out
}

// TargetContactsFrom returns target contacts departing node, for the
// contact controller's self-contact walk (spec §4.5.A): a node must also
// see its own target-pickup opportunities, not just its routing contacts.
func (p *ContactPlan) TargetContactsFrom(node model.NodeID) []*model.Contact {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*model.Contact
	for _, c := range p.target {
		if c.From == node {
			out = append(out, c)
		}
	}
	return out
}

// TargetContactsTo returns target contacts whose To matches target,
// consulted by the scheduler (spec §4.4 step 1).
func (p *ContactPlan) TargetContactsTo(target model.NodeID) []*model.Contact {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*model.Contact, 0)
	for _, c := range p.target {
		if c.To == target {
			out = append(out, c)
		}
	}
	return out
}

// TargetNodeIDs returns the distinct target-contact "To" node ids in the
// plan: the set of physical targets requests may name (spec §4.4 step
// 1). Targets are not core.Node instances — they never run a contact
// controller — so this is how a request generator discovers valid
// request.TargetID values without walking node descriptors.
func (p *ContactPlan) TargetNodeIDs() []model.NodeID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := map[model.NodeID]bool{}
	var out []model.NodeID
	for _, c := range p.target {
		if !seen[c.To] {
			seen[c.To] = true
			out = append(out, c.To)
		}
	}
	return out
}

// DebitResidualVolume atomically deducts size from a contact's residual
// volume. Returns ErrInsufficientResidualVolume if that would drive it
// negative, leaving the contact unchanged.
func (p *ContactPlan) DebitResidualVolume(id model.ContactID, size decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.routing[id]
	if !ok {
		c, ok = p.target[id]
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrContactNotFound, id)
	}
	if c.ResidualVolume.LessThan(size) {
		return fmt.Errorf("%w: contact %s has %s, need %s", ErrInsufficientResidualVolume, id, c.ResidualVolume, size)
	}
	c.ResidualVolume = c.ResidualVolume.Sub(size)
	return nil
}

// CreditResidualVolume reverses a prior debit: used on contact-end
// cancellation (spec §5) and on scheduling rollback when a candidate
// task/route pairing is abandoned after a tentative deduction.
func (p *ContactPlan) CreditResidualVolume(id model.ContactID, size decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.routing[id]
	if !ok {
		c, ok = p.target[id]
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrContactNotFound, id)
	}
	c.ResidualVolume = c.ResidualVolume.Add(size)
	if c.ResidualVolume.GreaterThan(c.Volume) {
		c.ResidualVolume = c.Volume
	}
	return nil
}

// DebitRoute debits size from every hop of a route plus, when supplied,
// the target contact that fed it (spec §4.4 step 4: "deduct ... from
// each hop ... and from the target contact, modelling pickup cost"). On
// partial failure, already-applied debits are rolled back so the
// operation is atomic.
func (p *ContactPlan) DebitRoute(route *model.Route, targetContact model.ContactID, size decimal.Decimal) error {
	applied := make([]model.ContactID, 0, len(route.Hops)+1)
	rollback := func() {
		for _, id := range applied {
			_ = p.CreditResidualVolume(id, size)
		}
	}
	if targetContact != "" {
		if err := p.DebitResidualVolume(targetContact, size); err != nil {
			return err
		}
		applied = append(applied, targetContact)
	}
	for _, hop := range route.Hops {
		if err := p.DebitResidualVolume(hop.ID, size); err != nil {
			rollback()
			return err
		}
		applied = append(applied, hop.ID)
	}
	return nil
}
