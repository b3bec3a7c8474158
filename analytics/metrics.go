package analytics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the Prometheus counters/histograms backing the
// analytics sink's live dashboard, one gauge/counter/histogram per event
// of spec §6. Registration follows the idempotent
// register-or-reuse-existing idiom of
// internal/observability/scheduler_metrics.go.
type Metrics struct {
	RequestsSubmitted prometheus.Counter
	RequestsDuplicated prometheus.Counter
	TasksAdded         prometheus.Counter
	TasksRescheduled   prometheus.Counter
	TasksFailed        prometheus.Counter
	BundlesAcquired    prometheus.Counter
	BundlesDelivered   prometheus.Counter
	BundlesDropped     prometheus.Counter

	PickupLatency   prometheus.Histogram
	DeliveryLatency prometheus.Histogram
}

// NewMetrics registers the analytics counters/histograms against reg,
// defaulting to the global Prometheus registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{}

	m.RequestsSubmitted = mustRegisterCounter(reg, "cgs_requests_submitted_total", "Total requests submitted to the scheduler.")
	m.RequestsDuplicated = mustRegisterCounter(reg, "cgs_requests_duplicated_total", "Total requests folded into an existing task via request_duplication.")
	m.TasksAdded = mustRegisterCounter(reg, "cgs_tasks_added_total", "Total tasks scheduled.")
	m.TasksRescheduled = mustRegisterCounter(reg, "cgs_tasks_rescheduled_total", "Total task reschedules, pre- or post-pickup.")
	m.TasksFailed = mustRegisterCounter(reg, "cgs_tasks_failed_total", "Total tasks that ended unservable.")
	m.BundlesAcquired = mustRegisterCounter(reg, "cgs_bundles_acquired_total", "Total bundles acquired off their target.")
	m.BundlesDelivered = mustRegisterCounter(reg, "cgs_bundles_delivered_total", "Total bundles delivered to their destination.")
	m.BundlesDropped = mustRegisterCounter(reg, "cgs_bundles_dropped_total", "Total bundles dropped before delivery.")

	m.PickupLatency = mustRegisterHistogram(reg, "cgs_pickup_latency_seconds",
		"Seconds between task creation and bundle acquisition.",
		[]float64{1, 5, 10, 30, 60, 300, 900, 3600})
	m.DeliveryLatency = mustRegisterHistogram(reg, "cgs_delivery_latency_seconds",
		"Seconds between bundle acquisition and delivery.",
		[]float64{1, 5, 10, 30, 60, 300, 900, 3600, 14400})

	return m
}

func mustRegisterCounter(reg prometheus.Registerer, name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
		panic(fmt.Sprintf("analytics: register counter %s: %v", name, err))
	}
	return c
}

func mustRegisterHistogram(reg prometheus.Registerer, name, help string, buckets []float64) prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets})
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
		panic(fmt.Sprintf("analytics: register histogram %s: %v", name, err))
	}
	return h
}
