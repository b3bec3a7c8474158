// Package analytics implements the event sink core.Scheduler and
// core.Node publish lifecycle events to (spec §6 "Analytics sink"), plus
// the richer statistics surface of original_source/src/analytics.py:
// per-request/task/bundle latency statistics, active-period filtering
// (warmup/cooldown), and count/ratio accessors. Every event also updates
// a Prometheus collector, mirroring the registration idiom of
// internal/observability/scheduler_metrics.go.
package analytics

import (
	"math"
	"sync"
	"time"

	"github.com/signalsfoundry/cgs-scheduler/core"
	"github.com/signalsfoundry/cgs-scheduler/model"
)

// requestRecord tracks one Request through its lifecycle for latency and
// ratio reporting.
type requestRecord struct {
	request     *model.Request
	submittedAt time.Time
	duplicated  bool
	delivered   bool
	deliveredAt time.Time
	failed      bool
}

// taskRecord tracks one Task, mirroring analytics.py's status-bearing
// task bookkeeping (acquired/delivered/failed/rescheduled timestamps).
type taskRecord struct {
	uid                model.TaskID
	addedAt            time.Time
	pickupTime         time.Time
	acquiredAt         time.Time
	acquired           bool
	deliveredAt        time.Time
	delivered          bool
	failedAt           time.Time
	failed             bool
	rescheduledCount   int
	rescheduledAt      time.Time
	rescheduledPre     bool
}

// bundleRecord tracks one Bundle's acquisition/delivery/drop timestamps.
type bundleRecord struct {
	id          model.BundleID
	acquiredAt  time.Time
	hopCount    int
	delivered   bool
	deliveredAt time.Time
	dropped     bool
	droppedAt   time.Time
}

// Collector implements core.AnalyticsSink, recording every lifecycle
// event in memory (for the latency/count/ratio properties below) and
// against the Prometheus registry (for live dashboards).
type Collector struct {
	mu sync.Mutex

	warmup  time.Time
	cooldown time.Time

	requests map[model.RequestID]*requestRecord
	tasks    map[model.TaskID]*taskRecord
	bundles  map[model.BundleID]*bundleRecord

	metrics *Metrics
}

var _ core.AnalyticsSink = (*Collector)(nil)

// New returns a Collector whose active period is [warmup, cooldown): events
// outside that window are still recorded for lifecycle bookkeeping but
// excluded from the *InActivePeriod family of accessors, mirroring
// analytics.py's warmup/cooldown filter. A zero cooldown means "no upper
// bound".
func New(warmup, cooldown time.Time, metrics *Metrics) *Collector {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Collector{
		warmup:   warmup,
		cooldown: cooldown,
		requests: make(map[model.RequestID]*requestRecord),
		tasks:    make(map[model.TaskID]*taskRecord),
		bundles:  make(map[model.BundleID]*bundleRecord),
		metrics:  metrics,
	}
}

func (c *Collector) inActivePeriod(t time.Time) bool {
	if t.Before(c.warmup) {
		return false
	}
	if !c.cooldown.IsZero() && !t.Before(c.cooldown) {
		return false
	}
	return true
}

// RequestSubmitted records a newly submitted request.
func (c *Collector) RequestSubmitted(request *model.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests[request.UID] = &requestRecord{request: request, submittedAt: request.TimeCreated}
	c.metrics.RequestsSubmitted.Inc()
}

// RequestDuplicated records that a request was folded into an existing
// task rather than producing a new one (spec S4).
func (c *Collector) RequestDuplicated(requestID model.RequestID, taskID model.TaskID, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.requests[requestID]; ok {
		r.duplicated = true
		r.request.Accept(taskID)
	}
	c.metrics.RequestsDuplicated.Inc()
}

// TaskAdded records a newly scheduled task.
func (c *Collector) TaskAdded(task *model.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks[task.UID] = &taskRecord{uid: task.UID, addedAt: task.UpdatedAt, pickupTime: task.PickupTime}
	for _, rid := range task.RequestIDs {
		if r, ok := c.requests[rid]; ok {
			r.request.Accept(task.UID)
		}
	}
	c.metrics.TasksAdded.Inc()
}

// TaskRescheduled records a rescheduling event, distinguishing the
// pre-pickup case (task never acquired) from the post-pickup case
// (bundle already acquired, only the onward route changed).
func (c *Collector) TaskRescheduled(taskID model.TaskID, t time.Time, by model.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.tasks[taskID]
	if !ok {
		rec = &taskRecord{uid: taskID}
		c.tasks[taskID] = rec
	}
	rec.rescheduledCount++
	rec.rescheduledAt = t
	rec.rescheduledPre = !rec.acquired
	c.metrics.TasksRescheduled.Inc()
}

// TaskFailed records a task as permanently unservable.
func (c *Collector) TaskFailed(taskID model.TaskID, t time.Time, on model.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.tasks[taskID]
	if !ok {
		rec = &taskRecord{uid: taskID}
		c.tasks[taskID] = rec
	}
	rec.failed = true
	rec.failedAt = t
	c.metrics.TasksFailed.Inc()
}

// BundleAcquired records a bundle's acquisition off its target.
func (c *Collector) BundleAcquired(bundle *model.Bundle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bundles[bundle.ID] = &bundleRecord{id: bundle.ID, acquiredAt: bundle.CreatedAt}
	if rec, ok := c.tasks[bundle.TaskID]; ok {
		rec.acquired = true
		rec.acquiredAt = bundle.CreatedAt
	}
	c.metrics.BundlesAcquired.Inc()
	if c.inActivePeriod(bundle.CreatedAt) {
		if rec, ok := c.tasks[bundle.TaskID]; ok && !rec.addedAt.IsZero() {
			c.metrics.PickupLatency.Observe(bundle.CreatedAt.Sub(rec.addedAt).Seconds())
		}
	}
}

// BundleDelivered records a bundle's arrival at its destination.
func (c *Collector) BundleDelivered(bundle *model.Bundle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.bundles[bundle.ID]
	if !ok {
		rec = &bundleRecord{id: bundle.ID}
		c.bundles[bundle.ID] = rec
	}
	rec.delivered = true
	rec.deliveredAt = bundle.DeliveredAt
	rec.hopCount = bundle.HopCount

	if t, ok := c.tasks[bundle.TaskID]; ok {
		t.delivered = true
		t.deliveredAt = bundle.DeliveredAt
	}
	for rid, r := range c.requests {
		if r.request.AssignedTaskID == bundle.TaskID {
			r.delivered = true
			r.deliveredAt = bundle.DeliveredAt
			r.request.Delivered()
			_ = rid
		}
	}

	c.metrics.BundlesDelivered.Inc()
	if c.inActivePeriod(bundle.DeliveredAt) && !rec.acquiredAt.IsZero() {
		c.metrics.DeliveryLatency.Observe(bundle.DeliveredAt.Sub(rec.acquiredAt).Seconds())
	}
}

// BundleDropped records a bundle's loss, whatever the reason.
func (c *Collector) BundleDropped(bundle *model.Bundle, reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.bundles[bundle.ID]
	if !ok {
		rec = &bundleRecord{id: bundle.ID}
		c.bundles[bundle.ID] = rec
	}
	rec.dropped = true
	rec.droppedAt = bundle.DroppedAt
	c.metrics.BundlesDropped.Inc()
}

// --- count / ratio accessors (spec §8, analytics.py properties) ---

// RequestsSubmittedCount is the total number of requests ever submitted.
func (c *Collector) RequestsSubmittedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// RequestsDeliveredCount counts requests whose bundle reached its
// destination.
func (c *Collector) RequestsDeliveredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.requests {
		if r.delivered {
			n++
		}
	}
	return n
}

// RequestsFailedCount counts requests marked failed.
func (c *Collector) RequestsFailedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.requests {
		if r.request.Status == model.RequestFailed {
			n++
		}
	}
	return n
}

// RequestDeliveryRatio is RequestsDeliveredCount / RequestsSubmittedCount,
// or 0 when no requests have been submitted.
func (c *Collector) RequestDeliveryRatio() float64 {
	submitted := c.RequestsSubmittedCount()
	if submitted == 0 {
		return 0
	}
	return float64(c.RequestsDeliveredCount()) / float64(submitted)
}

// TasksProcessedCount is the total number of tasks ever added.
func (c *Collector) TasksProcessedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// TasksDeliveredCount counts tasks whose terminal status is delivered.
func (c *Collector) TasksDeliveredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tasks {
		if t.delivered {
			n++
		}
	}
	return n
}

// TasksFailedCount counts tasks whose terminal status is failed.
func (c *Collector) TasksFailedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tasks {
		if t.failed {
			n++
		}
	}
	return n
}

// TasksRescheduledCount counts tasks rescheduled at least once.
func (c *Collector) TasksRescheduledCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tasks {
		if t.rescheduledCount > 0 {
			n++
		}
	}
	return n
}

// TasksRescheduledPrePickupCount counts tasks rescheduled before their
// bundle was ever acquired (spec §4.7 "pre_pickup" mode).
func (c *Collector) TasksRescheduledPrePickupCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tasks {
		if t.rescheduledCount > 0 && t.rescheduledPre {
			n++
		}
	}
	return n
}

// TaskDeliveryRatio is TasksDeliveredCount / TasksProcessedCount.
func (c *Collector) TaskDeliveryRatio() float64 {
	total := c.TasksProcessedCount()
	if total == 0 {
		return 0
	}
	return float64(c.TasksDeliveredCount()) / float64(total)
}

// BundlesAcquiredCount is the total number of bundles ever acquired.
func (c *Collector) BundlesAcquiredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bundles)
}

// BundlesDeliveredCount counts bundles that reached their destination.
func (c *Collector) BundlesDeliveredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.bundles {
		if b.delivered {
			n++
		}
	}
	return n
}

// BundlesDroppedCount counts bundles that were lost.
func (c *Collector) BundlesDroppedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.bundles {
		if b.dropped {
			n++
		}
	}
	return n
}

// BundleDeliveryRatio is BundlesDeliveredCount / BundlesAcquiredCount.
func (c *Collector) BundleDeliveryRatio() float64 {
	total := c.BundlesAcquiredCount()
	if total == 0 {
		return 0
	}
	return float64(c.BundlesDeliveredCount()) / float64(total)
}

// BundleDropRatio is BundlesDroppedCount / BundlesAcquiredCount.
func (c *Collector) BundleDropRatio() float64 {
	total := c.BundlesAcquiredCount()
	if total == 0 {
		return 0
	}
	return float64(c.BundlesDroppedCount()) / float64(total)
}

// HopCountAverage is the mean hop count across delivered bundles.
func (c *Collector) HopCountAverage() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum, n float64
	for _, b := range c.bundles {
		if b.delivered {
			sum += float64(b.hopCount)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// DeliveryLatencyStats returns (mean, stdev) of delivery latency
// (acquisition to delivery) across delivered bundles in the active
// period, mirroring analytics.py's delivery_latency_ave/_stdev.
func (c *Collector) DeliveryLatencyStats() (mean, stdev float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var samples []float64
	for _, b := range c.bundles {
		if b.delivered && c.inActivePeriod(b.deliveredAt) && !b.acquiredAt.IsZero() {
			samples = append(samples, b.deliveredAt.Sub(b.acquiredAt).Seconds())
		}
	}
	return meanStdev(samples)
}

// PickupLatencyStats returns (mean, stdev) of pickup latency (task
// creation to bundle acquisition) in the active period.
func (c *Collector) PickupLatencyStats() (mean, stdev float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var samples []float64
	for _, t := range c.tasks {
		if t.acquired && c.inActivePeriod(t.acquiredAt) && !t.addedAt.IsZero() {
			samples = append(samples, t.acquiredAt.Sub(t.addedAt).Seconds())
		}
	}
	return meanStdev(samples)
}

// RequestLatencyStats returns (mean, stdev) of end-to-end request
// latency (submission to delivery) in the active period.
func (c *Collector) RequestLatencyStats() (mean, stdev float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var samples []float64
	for _, r := range c.requests {
		if r.delivered && c.inActivePeriod(r.deliveredAt) {
			samples = append(samples, r.deliveredAt.Sub(r.submittedAt).Seconds())
		}
	}
	return meanStdev(samples)
}

func meanStdev(samples []float64) (mean, stdev float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean = sum / float64(len(samples))
	if len(samples) == 1 {
		return mean, 0
	}
	var sq float64
	for _, s := range samples {
		d := s - mean
		sq += d * d
	}
	stdev = math.Sqrt(sq / float64(len(samples)-1))
	return mean, stdev
}
