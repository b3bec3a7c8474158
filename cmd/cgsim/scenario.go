package main

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/signalsfoundry/cgs-scheduler/core"
	"github.com/signalsfoundry/cgs-scheduler/model"
)

// builtinScenario builds the demo contact plan used when --contact-plan
// is omitted: a four-node relay diamond (A -> B -> D and A -> C -> D)
// mirroring spec S2's re-route scenario, with one target T1 reachable
// only from A and one gateway D as the delivery destination.
func builtinScenario(start, end time.Time) (*core.ContactPlan, []*model.NodeDescriptor) {
	plan := core.NewContactPlan()
	rate := decimal.NewFromInt(1)

	plan.AddTargetContact(model.NewContact("target-A-T1", "A", "T1", "A", "T1", start, start.Add(time.Minute), rate, 0, 0))

	plan.AddRoutingContact(model.NewContact("c1", "A", "B", "A", "B", start, start.Add(5*time.Minute), rate, 0, 0))
	plan.AddRoutingContact(model.NewContact("c2", "B", "D", "B", "gw", start.Add(2*time.Minute), start.Add(5*time.Minute), rate, 0, 0))
	plan.AddRoutingContact(model.NewContact("c3", "A", "C", "A", "C", start, start.Add(5*time.Minute), rate, 0, 0))
	plan.AddRoutingContact(model.NewContact("c4", "C", "D", "C", "gw", start.Add(6*time.Minute), start.Add(10*time.Minute), rate, 0, 0))

	buffer := decimal.NewFromInt(1000)
	descriptors := []*model.NodeDescriptor{
		{UID: "A", Endpoint: "A", SchedulerCapable: true, AcquisitionCapable: true, BufferCapacity: buffer, Rescheduling: model.ReschedulingPrePickupOnly},
		{UID: "B", Endpoint: "B", ForwardingOnly: true, BufferCapacity: buffer},
		{UID: "C", Endpoint: "C", ForwardingOnly: true, BufferCapacity: buffer},
		{UID: "D", Endpoint: "gw", BufferCapacity: buffer},
	}

	return plan, descriptors
}
