package core

import (
	"time"

	"github.com/signalsfoundry/cgs-scheduler/model"
)

// AnalyticsSink receives the fire-and-forget lifecycle events emitted by
// the core (spec §6 "Analytics sink"). Delivery has no ordering
// guarantee beyond per-publisher FIFO, so a sink must not assume events
// from different nodes interleave in any particular order.
type AnalyticsSink interface {
	RequestSubmitted(request *model.Request)
	RequestDuplicated(requestID model.RequestID, taskID model.TaskID, t time.Time)
	TaskAdded(task *model.Task)
	TaskRescheduled(taskID model.TaskID, t time.Time, by model.NodeID)
	TaskFailed(taskID model.TaskID, t time.Time, on model.NodeID)
	BundleAcquired(bundle *model.Bundle)
	BundleDelivered(bundle *model.Bundle)
	BundleDropped(bundle *model.Bundle, reason error)
}

// noopAnalyticsSink discards every event; used when a Node is built
// without an analytics collaborator (e.g. in unit tests).
type noopAnalyticsSink struct{}

func (noopAnalyticsSink) RequestSubmitted(*model.Request)                          {}
func (noopAnalyticsSink) RequestDuplicated(model.RequestID, model.TaskID, time.Time) {}
func (noopAnalyticsSink) TaskAdded(*model.Task)                                    {}
func (noopAnalyticsSink) TaskRescheduled(model.TaskID, time.Time, model.NodeID)    {}
func (noopAnalyticsSink) TaskFailed(model.TaskID, time.Time, model.NodeID)         {}
func (noopAnalyticsSink) BundleAcquired(*model.Bundle)                            {}
func (noopAnalyticsSink) BundleDelivered(*model.Bundle)                           {}
func (noopAnalyticsSink) BundleDropped(*model.Bundle, error)                      {}
