package core

import (
	"sort"
	"time"

	"github.com/signalsfoundry/cgs-scheduler/model"
)

// CandidateRoutes filters routes to those usable for bundle, per spec
// §4.3: excludes routes touching excludedNodes, routes whose recomputed
// bottleneck residual volume is below bundle.Size, routes delivering
// after bundle.Deadline, and routes containing an already-expired
// contact. Feasibility and ordering use each route's delivery time for
// bundle's actual size (spec §3's transmission_time term), not the
// size-zero BestDeliveryTime route search compares against. The result
// is sorted by that delivery time ascending.
func CandidateRoutes(now time.Time, bundle *model.Bundle, routes []*model.Route, excludedNodes map[model.NodeID]bool) []*model.Route {
	out := make([]*model.Route, 0, len(routes))
	delivery := make(map[*model.Route]time.Time, len(routes))

outer:
	for _, r := range routes {
		if len(r.Hops) == 0 {
			continue
		}
		for _, hop := range r.Hops {
			if excludedNodes[hop.To] {
				continue outer
			}
			if hop.Expired(now) {
				continue outer
			}
		}
		if r.BottleneckVolume().LessThan(bundle.Size) {
			continue
		}
		deliveryTime := r.DeliveryTimeForSize(bundle.Size)
		if deliveryTime.After(bundle.Deadline) {
			continue
		}
		delivery[r] = deliveryTime
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		return delivery[out[i]].Before(delivery[out[j]])
	})
	return out
}
