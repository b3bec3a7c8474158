package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/cgs-scheduler/internal/logging"
	"github.com/signalsfoundry/cgs-scheduler/model"
)

var tracer = otel.Tracer("cgs-scheduler/core")

// ObjectiveMode selects the feasibility and scoring rule used to pick a
// (target-contact, delivery-route) pair (spec §4.4 step 3).
type ObjectiveMode int

const (
	// ObjectiveFirst picks the earliest feasible pickup.
	ObjectiveFirst ObjectiveMode = iota
	// ObjectiveCGR picks the earliest delivery time. Candidate routes are
	// filtered by live residual volume as in every mode, so it does not
	// fall back to nominal volume and selects the same pair as
	// ObjectiveResourceAware.
	ObjectiveCGR
	// ObjectiveResourceAware picks the earliest delivery time after
	// deducting residual volume for all previously scheduled tasks.
	ObjectiveResourceAware
)

// Scheduler produces Tasks from Requests by pairing a feasible target
// contact with a feasible delivery route (spec §4.4).
type Scheduler struct {
	Plan      *ContactPlan
	TaskTable *TaskTable
	IDs       *model.IDGenerator

	Objective          ObjectiveMode
	RequestDuplication bool
	KRoutesPerPair     int

	Analytics AnalyticsSink

	log logging.Logger
}

// NewScheduler builds a Scheduler bound to plan and taskTable, minting
// Task IDs under self.
func NewScheduler(self model.NodeID, plan *ContactPlan, taskTable *TaskTable, objective ObjectiveMode, requestDuplication bool, kRoutes int, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Noop()
	}
	if kRoutes < 1 {
		kRoutes = 1
	}
	return &Scheduler{
		Plan:               plan,
		TaskTable:          taskTable,
		IDs:                model.NewIDGenerator(self),
		Objective:          objective,
		RequestDuplication: requestDuplication,
		KRoutesPerPair:     kRoutes,
		Analytics:          noopAnalyticsSink{},
		log:                log,
	}
}

type scheduleCandidate struct {
	targetContact *model.Contact
	route         *model.Route
}

// Schedule implements spec §4.4: finds a feasible (target-contact,
// delivery-route) pairing for request, atomically debits residual
// volume along the chosen path, and returns the produced Task.
func (s *Scheduler) Schedule(ctx context.Context, request *model.Request, now time.Time) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "cgs.schedule",
		attribute.String("request.uid", string(request.UID)),
		attribute.String("request.target_id", string(request.TargetID)),
	)
	defer span.End()

	if s.RequestDuplication {
		if existing := s.TaskTable.FindDuplicate(request.TargetID, request.TimeCreated, request.Deadline); existing != nil {
			existing.RequestIDs = append(existing.RequestIDs, request.UID)
			s.log.Info(ctx, "request folded into existing task",
				logging.String("request_uid", string(request.UID)),
				logging.String("task_uid", string(existing.UID)))
			s.Analytics.RequestDuplicated(request.UID, existing.UID, now)
			return existing, nil
		}
	}

	targetContacts := s.Plan.TargetContactsTo(request.TargetID)
	var best *scheduleCandidate
	var bestScore time.Time
	haveBest := false

	for _, tc := range targetContacts {
		if tc.End.Before(now) || tc.Start.After(request.Deadline) {
			continue
		}
		routes := FindRoutes(ctx, s.Plan, tc.From, request.DestinationEID, tc.Start, request.Deadline, s.KRoutesPerPair)
		feasible := CandidateRoutes(tc.Start, &model.Bundle{Size: request.Size, Deadline: request.Deadline}, routes, nil)
		if len(feasible) == 0 {
			continue
		}

		route := feasible[0]
		if s.Objective == ObjectiveResourceAware && route.BottleneckVolume().LessThan(request.Size) {
			continue
		}

		score := s.score(tc, route, request.Size)
		if !haveBest || score.Before(bestScore) {
			haveBest = true
			bestScore = score
			best = &scheduleCandidate{targetContact: tc, route: route}
		}
	}

	if best == nil {
		span.RecordError(ErrNoFeasibleTask)
		return nil, ErrNoFeasibleTask
	}

	if err := s.Plan.DebitRoute(best.route, best.targetContact.ID, request.Size); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("debit route: %w", err)
	}

	task := model.NewTask(
		s.IDs.NextTaskID(),
		request.TargetID,
		best.targetContact.Start,
		request.DestinationEID,
		request.Size,
		request.Priority,
		best.targetContact.End,
		request.Deadline,
		best.targetContact.From,
		[]model.RequestID{request.UID},
		now,
	)

	s.log.Info(ctx, "task scheduled",
		logging.String("task_uid", string(task.UID)),
		logging.String("assignee", string(task.Assignee)),
	)

	return task, nil
}

// score returns the comparable key for picking between candidates, per
// the selected ObjectiveMode (spec §4.4 step 3). CGR and resource-aware
// rank by the route's delivery time for size, which includes the
// transmission_time term (spec §3); size is request.Size at the call
// site, not zero.
func (s *Scheduler) score(targetContact *model.Contact, route *model.Route, size decimal.Decimal) time.Time {
	switch s.Objective {
	case ObjectiveFirst:
		return targetContact.Start
	default: // ObjectiveCGR, ObjectiveResourceAware
		return route.DeliveryTimeForSize(size)
	}
}
