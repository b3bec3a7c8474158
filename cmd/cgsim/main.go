// Command cgsim is the demo harness for the Contact Graph Scheduling
// engine: it loads a contact plan and configuration, wires up the
// scheduler-capable node and its peers, drives a request generator
// modelled on original_source/src/main.py's requests_generator, and
// prints a final analytics summary. It plays the role the teacher's
// cmd/simulator/main.go plays for the constellation simulator: a thin
// wiring layer, not part of the engine itself.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/signalsfoundry/cgs-scheduler/analytics"
	"github.com/signalsfoundry/cgs-scheduler/config"
	"github.com/signalsfoundry/cgs-scheduler/core"
	"github.com/signalsfoundry/cgs-scheduler/internal/logging"
	"github.com/signalsfoundry/cgs-scheduler/internal/observability"
	"github.com/signalsfoundry/cgs-scheduler/model"
	"github.com/signalsfoundry/cgs-scheduler/timectrl"
)

func main() {
	app := &cli.App{
		Name:  "cgsim",
		Usage: "run a Contact Graph Scheduling simulation over a contact plan",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "contact-plan", Usage: "path to a contact plan JSON file (built-in demo scenario if omitted)"},
			&cli.StringFlag{Name: "config", Usage: "path to a config file (scheduler_mode, rescheduling, ...)"},
			&cli.DurationFlag{Name: "duration", Value: 20 * time.Minute, Usage: "simulation horizon"},
			&cli.Int64Flag{Name: "seed", Value: 1, Usage: "request/bundle generator PRNG seed"},
			&cli.Float64Flag{Name: "congestion", Value: 0.5, Usage: "target inflow/outflow ratio driving request inter-arrival time"},
			&cli.Float64Flag{Name: "outflow", Value: 2.0, Usage: "assumed long-term average delivery capacity (volume/sec), used with congestion to derive request inter-arrival time"},
			&cli.Float64Flag{Name: "request-size", Value: 2.5, Usage: "mean request data volume"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "cgsim:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx := context.Background()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	tracingCfg := observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	}
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	start := time.Unix(0, 0).UTC()
	duration := c.Duration("duration")
	end := start.Add(duration)

	var plan *core.ContactPlan
	var descriptors []*model.NodeDescriptor
	if path := c.String("contact-plan"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open contact plan: %w", err)
		}
		defer f.Close()
		var genID string
		plan, descriptors, genID, err = core.LoadContactPlan(f)
		if err != nil {
			return fmt.Errorf("load contact plan: %w", err)
		}
		log.Info(ctx, "contact plan loaded", logging.String("generation_id", genID), logging.Int("nodes", len(descriptors)))
	} else {
		plan, descriptors = builtinScenario(start, end)
		log.Info(ctx, "using built-in demo scenario")
	}

	metrics := analytics.NewMetrics(nil)
	collector := analytics.New(start.Add(cfg.Warmup), endOrZero(start, end, cfg.Cooldown), metrics)

	clock := timectrl.NewTimeController(start)
	network := core.NewNetwork(clock)

	objective, err := objectiveFromConfig(cfg.SchedulerMode)
	if err != nil {
		return err
	}
	rescheduling := reschedulingFromConfig(cfg.Rescheduling)

	nodes := make(map[model.NodeID]*core.Node, len(descriptors))
	var schedulerNode *core.Node
	for _, desc := range descriptors {
		taskTable := core.NewTaskTable()
		opts := []core.NodeOption{
			core.WithAnalytics(collector),
			core.WithLogger(log.With(logging.String("node", string(desc.UID)))),
		}
		if desc.SchedulerCapable {
			sched := core.NewScheduler(desc.UID, plan, taskTable, objective, cfg.RequestDuplication, cfg.KRoutesPerPair, log)
			opts = append(opts, core.WithScheduler(sched))
		}

		n := core.NewNode(desc, plan, taskTable, clock, network, cfg.MSREnabled, rescheduling, cfg.KRoutesPerPair,
			cfg.BundleAssignPeriod, cfg.OutboundPollPeriod, opts...)
		selfContacts := append(plan.OutgoingFrom(desc.UID, start), plan.TargetContactsFrom(desc.UID)...)
		n.SetSelfContacts(selfContacts)
		network.Register(n)
		nodes[desc.UID] = n
		if desc.SchedulerCapable {
			schedulerNode = n
		}
	}

	if schedulerNode == nil {
		return fmt.Errorf("cgsim: no scheduler-capable node in contact plan")
	}

	for _, n := range nodes {
		n.RunContactController()
		n.RunBundleAssignmentController()
	}

	rng := rand.New(rand.NewSource(c.Int64("seed")))
	sources := plan.TargetNodeIDs()
	sink := gatewayEID(descriptors)

	requestSize := c.Float64("request-size")
	interArrival := requestInterArrivalTime(duration, requestSize, c.Float64("outflow"), c.Float64("congestion"))
	scheduleRequestGenerator(clock, schedulerNode, sources, sink, end, interArrival, requestSize, rng)

	clock.RunUntil(end)

	printSummary(collector)
	return nil
}

func endOrZero(start, end time.Time, cooldown time.Duration) time.Time {
	if cooldown <= 0 {
		return time.Time{}
	}
	return end.Add(-cooldown)
}

// objectiveFromConfig maps a spec §6 scheduler_mode literal to the
// ObjectiveMode that implements it. naive and first both rank by
// earliest pickup; cgr and msr both rank by earliest delivery time (msr
// additionally expects the caller to have MSREnabled set from
// cfg.MSREnabled); cgr_resource additionally deducts committed residual
// volume. An unrecognised mode is a configuration error, not a silent
// default: config.Load already rejects it before this is ever called,
// so reaching the default case here means a mode was added to one
// vocabulary and not the other.
func objectiveFromConfig(m config.SchedulerMode) (core.ObjectiveMode, error) {
	switch m {
	case config.SchedulerModeNaive, config.SchedulerModeFirst:
		return core.ObjectiveFirst, nil
	case config.SchedulerModeCGR, config.SchedulerModeMSR:
		return core.ObjectiveCGR, nil
	case config.SchedulerModeCGRResourceAware:
		return core.ObjectiveResourceAware, nil
	default:
		return 0, fmt.Errorf("cgsim: unrecognised scheduler_mode %q", m)
	}
}

func reschedulingFromConfig(m config.ReschedulingMode) model.ReschedulingMode {
	switch m {
	case config.ReschedulingPrePickup:
		return model.ReschedulingPrePickupOnly
	case config.ReschedulingAny:
		return model.ReschedulingAny
	default:
		return model.ReschedulingOff
	}
}

// gatewayEID picks the destination endpoint requests are addressed to:
// the endpoint of the first node that is neither scheduler-capable nor
// forwarding-only, standing in for "the ground segment" (spec §9: several NodeIDs may share one EID).
func gatewayEID(descriptors []*model.NodeDescriptor) model.EID {
	for _, d := range descriptors {
		if d.SchedulerCapable || d.ForwardingOnly {
			continue
		}
		return d.Endpoint
	}
	return "gateway"
}

// requestInterArrivalTime reproduces original_source/src/main.py's
// get_request_inter_arrival_time: given the simulation horizon, a target
// level of congestion (ratio of inflow to outflow) and the assumed
// long-term average delivery capacity (outflow), returns the mean time
// to wait between request arrivals.
func requestInterArrivalTime(horizon time.Duration, size, outflow, congestion float64) time.Duration {
	seconds := (horizon.Seconds() * size) / (outflow * congestion)
	return time.Duration(seconds * float64(time.Second))
}

// scheduleRequestGenerator reproduces original_source/src/main.py's
// requests_generator: requests arrive with exponentially distributed
// inter-arrival times (expovariate(1/mean)), each naming a random target
// from sources, until the horizon ends.
func scheduleRequestGenerator(clock *timectrl.TimeController, scheduler *core.Node, sources []model.NodeID, sink model.EID, end time.Time, meanInterArrival time.Duration, meanSize float64, rng *rand.Rand) {
	if len(sources) == 0 {
		return
	}
	var tick func()
	tick = func() {
		now := clock.Now()
		if now.After(end) {
			return
		}
		src := sources[rng.Intn(len(sources))]
		deadline := now.Add(30 * time.Minute)
		size := decimal.NewFromFloat(meanSize * (0.5 + rng.Float64()))
		req := model.NewRequest(model.NewRequestID(), src, sink, size, 1, deadline, now)
		scheduler.RequestReceived(context.Background(), req, now)

		wait := time.Duration(rng.ExpFloat64() * float64(meanInterArrival))
		clock.Schedule(now.Add(wait), tick)
	}
	clock.Schedule(clock.Now(), tick)
}

func printSummary(c *analytics.Collector) {
	fmt.Printf("requests: submitted=%d delivered=%d failed=%d ratio=%.2f\n",
		c.RequestsSubmittedCount(), c.RequestsDeliveredCount(), c.RequestsFailedCount(), c.RequestDeliveryRatio())
	fmt.Printf("tasks: processed=%d delivered=%d failed=%d rescheduled=%d ratio=%.2f\n",
		c.TasksProcessedCount(), c.TasksDeliveredCount(), c.TasksFailedCount(), c.TasksRescheduledCount(), c.TaskDeliveryRatio())
	fmt.Printf("bundles: acquired=%d delivered=%d dropped=%d delivery_ratio=%.2f drop_ratio=%.2f avg_hops=%.2f\n",
		c.BundlesAcquiredCount(), c.BundlesDeliveredCount(), c.BundlesDroppedCount(), c.BundleDeliveryRatio(), c.BundleDropRatio(), c.HopCountAverage())

	mean, stdev := c.DeliveryLatencyStats()
	fmt.Printf("delivery latency (s): mean=%.2f stdev=%.2f\n", mean, stdev)
}
