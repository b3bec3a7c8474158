package core

import (
	"container/heap"
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/cgs-scheduler/model"
)

// frontierState is one entry in the Dijkstra priority queue: a node
// reached at a given arrival time. Generalizes the teacher's
// dijkstraNode (which indexes into a pre-built time-expanded graph) to
// relax directly over model.Contact edges.
type frontierState struct {
	node    model.NodeID
	arrival time.Time
}

type frontierQueue []frontierState

func (q frontierQueue) Len() int            { return len(q) }
func (q frontierQueue) Less(i, j int) bool  { return q[i].arrival.Before(q[j].arrival) }
func (q frontierQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *frontierQueue) Push(x interface{}) { *q = append(*q, x.(frontierState)) }
func (q *frontierQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// shortestPath runs one Dijkstra-style relaxation pass over the contact
// graph from "from" at time "now" toward any contact whose ToEID matches
// toEID (spec §4.2 inner shortest-path). suppressedContacts and
// suppressedNodes exclude edges/nodes from consideration, used by Yen's
// outer loop to force deviation. Returns the hop sequence of the
// earliest-arriving route, or nil if none exists.
func shortestPath(plan *ContactPlan, from model.NodeID, toEID model.EID, now, endTime time.Time, suppressedContacts map[model.ContactID]bool, suppressedNodes map[model.NodeID]bool) []*model.Contact {
	dist := map[model.NodeID]time.Time{from: now}
	predContact := map[model.NodeID]*model.Contact{}
	visited := map[model.NodeID]bool{}

	pq := &frontierQueue{}
	heap.Init(pq)
	heap.Push(pq, frontierState{node: from, arrival: now})

	var bestArrival time.Time
	var bestContact *model.Contact
	var bestPred model.NodeID
	haveBest := false

	for pq.Len() > 0 {
		state := heap.Pop(pq).(frontierState)
		if visited[state.node] {
			continue
		}
		if haveBest && state.arrival.After(bestArrival) {
			break
		}
		visited[state.node] = true

		for _, c := range plan.OutgoingFrom(state.node, state.arrival) {
			if suppressedContacts[c.ID] {
				continue
			}
			if !endTime.IsZero() && !c.Start.Before(endTime) {
				continue
			}
			if !c.Reachable(state.arrival) {
				continue
			}
			arrival := c.ArrivalTime(state.arrival)

			if c.ToEID == toEID {
				if !haveBest || arrival.Before(bestArrival) {
					haveBest = true
					bestArrival = arrival
					bestContact = c
					bestPred = state.node
				}
			}

			if suppressedNodes[c.To] {
				continue
			}
			if existing, ok := dist[c.To]; ok && !arrival.Before(existing) {
				continue
			}
			dist[c.To] = arrival
			predContact[c.To] = c
			heap.Push(pq, frontierState{node: c.To, arrival: arrival})
		}
	}

	if bestContact == nil {
		return nil
	}

	hops := make([]*model.Contact, 0, 4)
	cur := bestPred
	for cur != from {
		c, ok := predContact[cur]
		if !ok {
			return nil
		}
		hops = append([]*model.Contact{c}, hops...)
		cur = c.From
	}
	hops = append(hops, bestContact)
	return hops
}

// FindRoutes implements Yen's k-shortest path search over the contact
// graph (spec §4.2): one Dijkstra pass for the shortest route, then
// repeated spur/root decomposition to find up to k-1 loopless
// deviations.
func FindRoutes(ctx context.Context, plan *ContactPlan, from model.NodeID, toEID model.EID, now, endTime time.Time, k int) []*model.Route {
	_, span := tracer.Start(ctx, "cgs.route_search",
		attribute.String("route_search.from", string(from)),
		attribute.String("route_search.to_eid", string(toEID)),
		attribute.Int("route_search.k", k),
	)
	defer span.End()

	first := shortestPath(plan, from, toEID, now, endTime, nil, nil)
	if first == nil {
		return nil
	}

	found := []*model.Route{model.RecomputeRoute(first, now)}
	seen := map[string]bool{found[0].Fingerprint(): true}

	type candidate struct {
		route *model.Route
	}
	var candidates []candidate

	for len(found) < k {
		prev := found[len(found)-1]

		for i := 0; i < len(prev.Hops); i++ {
			rootHops := prev.Hops[:i]
			spurNode := prev.Hops[i].From

			spurArrival := now
			if i > 0 {
				spurRoute := model.RecomputeRoute(rootHops, now)
				spurArrival = spurRoute.BestDeliveryTime
			}

			suppressedContacts := map[model.ContactID]bool{}
			for _, r := range found {
				if len(r.Hops) <= i {
					continue
				}
				if sameRootPrefix(r.Hops[:i], rootHops) {
					suppressedContacts[r.Hops[i].ID] = true
				}
			}

			suppressedNodes := map[model.NodeID]bool{}
			for _, h := range rootHops {
				if h.From != spurNode {
					suppressedNodes[h.From] = true
				}
			}

			spurHops := shortestPath(plan, spurNode, toEID, spurArrival, endTime, suppressedContacts, suppressedNodes)
			if spurHops == nil {
				continue
			}

			total := make([]*model.Contact, 0, len(rootHops)+len(spurHops))
			total = append(total, rootHops...)
			total = append(total, spurHops...)

			candidateRoute := model.RecomputeRoute(total, now)
			fp := candidateRoute.Fingerprint()
			if seen[fp] {
				continue
			}
			seen[fp] = true
			candidates = append(candidates, candidate{route: candidateRoute})
		}

		if len(candidates) == 0 {
			break
		}

		sort.Slice(candidates, func(i, j int) bool {
			return lessRoute(candidates[i].route, candidates[j].route)
		})

		best := candidates[0].route
		candidates = candidates[1:]
		found = append(found, best)
		seen[best.Fingerprint()] = true
	}

	return found
}

// sameRootPrefix compares two hop-ID prefixes for exact equality,
// identifying routes that share a root path in Yen's spur decomposition.
func sameRootPrefix(a, b []*model.Contact) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// lessRoute implements the tie-break order from spec §4.2: earliest
// best_delivery_time, then fewest hops, then lexicographic on hop ids.
func lessRoute(a, b *model.Route) bool {
	if !a.BestDeliveryTime.Equal(b.BestDeliveryTime) {
		return a.BestDeliveryTime.Before(b.BestDeliveryTime)
	}
	if len(a.Hops) != len(b.Hops) {
		return len(a.Hops) < len(b.Hops)
	}
	return a.Fingerprint() < b.Fingerprint()
}
