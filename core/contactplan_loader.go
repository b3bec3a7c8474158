package core

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/signalsfoundry/cgs-scheduler/model"
)

// contactJSON is the on-disk shape of one contact entry in a contact
// plan file. "kind" distinguishes a routing contact (node-to-node,
// graph-search eligible) from a target contact (satellite-to-target,
// consulted only by the scheduler), per spec §4.1.
type contactJSON struct {
	ID      string  `json:"id"`
	From    string  `json:"from"`
	To      string  `json:"to"`
	FromEID string  `json:"from_eid"`
	ToEID   string  `json:"to_eid"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Rate    string  `json:"rate"`
	OWLT    float64 `json:"owlt"`
	Cost    float64 `json:"cost"`
	Kind    string  `json:"kind"` // "routing" or "target"
}

// nodeJSON is the on-disk shape of a node descriptor within a contact
// plan file (spec §3 Node fields).
type nodeJSON struct {
	UID                string  `json:"uid"`
	Endpoint           string  `json:"endpoint"`
	SchedulerCapable   bool    `json:"scheduler_capable"`
	AcquisitionCapable bool    `json:"acquisition_capable"`
	ForwardingOnly     bool    `json:"forwarding_only"`
	BufferCapacity     string  `json:"buffer_capacity"`
	Rescheduling       string  `json:"rescheduling"` // "off" | "pre_pickup" | "any"
}

type contactPlanJSON struct {
	Epoch    string        `json:"epoch"`
	Nodes    []nodeJSON    `json:"nodes"`
	Contacts []contactJSON `json:"contacts"`
}

// LoadContactPlan reads a JSON contact plan from r (spec §3's contact
// set, partitioned by "kind" into routing/target as in §4.1) into an
// empty ContactPlan. Contact times are expressed as seconds-since-epoch
// floats rather than absolute timestamps, which load converts against
// the file's own epoch field.
//
// LoadContactPlan mirrors the structure of the teacher's
// LoadNetworkScenario: fail only on JSON/structural errors, and stamp a
// fresh generation id for provenance (each load gets a distinguishable
// id even when loading the same file twice, e.g. across a hot reload).
func LoadContactPlan(r io.Reader) (*ContactPlan, []*model.NodeDescriptor, string, error) {
	var payload contactPlanJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, nil, "", fmt.Errorf("LoadContactPlan: decode failed: %w", err)
	}

	epoch := time.Unix(0, 0).UTC()
	if payload.Epoch != "" {
		parsed, err := time.Parse(time.RFC3339, payload.Epoch)
		if err != nil {
			return nil, nil, "", fmt.Errorf("LoadContactPlan: invalid epoch %q: %w", payload.Epoch, err)
		}
		epoch = parsed
	}

	plan := NewContactPlan()
	generationID := uuid.NewString()

	for _, jc := range payload.Contacts {
		if jc.ID == "" {
			return nil, nil, "", fmt.Errorf("LoadContactPlan: contact with empty id")
		}
		rate, err := decimal.NewFromString(jc.Rate)
		if err != nil {
			return nil, nil, "", fmt.Errorf("LoadContactPlan: contact %s: invalid rate %q: %w", jc.ID, jc.Rate, err)
		}

		start := epoch.Add(time.Duration(jc.Start * float64(time.Second)))
		end := epoch.Add(time.Duration(jc.End * float64(time.Second)))
		owlt := time.Duration(jc.OWLT * float64(time.Second))

		c := model.NewContact(
			model.ContactID(jc.ID),
			model.NodeID(jc.From),
			model.NodeID(jc.To),
			model.EID(jc.FromEID),
			model.EID(jc.ToEID),
			start, end, rate, owlt, jc.Cost,
		)

		switch jc.Kind {
		case "target":
			plan.AddTargetContact(c)
		case "routing", "":
			plan.AddRoutingContact(c)
		default:
			return nil, nil, "", fmt.Errorf("LoadContactPlan: contact %s: unknown kind %q", jc.ID, jc.Kind)
		}
	}

	nodes := make([]*model.NodeDescriptor, 0, len(payload.Nodes))
	for _, jn := range payload.Nodes {
		if jn.UID == "" {
			return nil, nil, "", fmt.Errorf("LoadContactPlan: node with empty uid")
		}
		capacity := decimal.NewFromInt(1_000_000)
		if jn.BufferCapacity != "" {
			parsed, err := decimal.NewFromString(jn.BufferCapacity)
			if err != nil {
				return nil, nil, "", fmt.Errorf("LoadContactPlan: node %s: invalid buffer_capacity %q: %w", jn.UID, jn.BufferCapacity, err)
			}
			capacity = parsed
		}
		nodes = append(nodes, &model.NodeDescriptor{
			UID:                model.NodeID(jn.UID),
			Endpoint:           model.EID(jn.Endpoint),
			SchedulerCapable:   jn.SchedulerCapable,
			AcquisitionCapable: jn.AcquisitionCapable,
			ForwardingOnly:     jn.ForwardingOnly,
			BufferCapacity:     capacity,
			Rescheduling:       reschedulingFromString(jn.Rescheduling),
		})
	}

	return plan, nodes, generationID, nil
}

func reschedulingFromString(s string) model.ReschedulingMode {
	switch s {
	case "pre_pickup":
		return model.ReschedulingPrePickupOnly
	case "any":
		return model.ReschedulingAny
	default:
		return model.ReschedulingOff
	}
}
