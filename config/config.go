// Package config loads the engine's configuration surface (spec §6):
// scheduler mode, rescheduling policy, buffer sizing, assignment
// periods, and the analytics warmup/cooldown window. Values are bound
// from a config file, environment variables (prefixed CGS_), and
// defaults, in viper's standard override order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SchedulerMode selects the objective function the Scheduler uses to
// pick between feasible (target-contact, route) pairs (spec §4.4). The
// recognised values are exactly the spec §6 vocabulary; any other
// string is a configuration error, not a silent fallback.
type SchedulerMode string

const (
	// SchedulerModeNaive assigns the first feasible target contact
	// without ranking routes at all (spec §6); core.ObjectiveFirst
	// implements it, same as SchedulerModeFirst.
	SchedulerModeNaive SchedulerMode = "naive"
	// SchedulerModeFirst ranks by the earliest feasible pickup.
	SchedulerModeFirst SchedulerMode = "first"
	// SchedulerModeCGR ranks by earliest delivery time (CGR proper).
	SchedulerModeCGR SchedulerMode = "cgr"
	// SchedulerModeCGRResourceAware ranks by earliest delivery time
	// after deducting residual volume already committed to other tasks.
	SchedulerModeCGRResourceAware SchedulerMode = "cgr_resource"
	// SchedulerModeMSR is CGR with moderate source routing enabled
	// (MSREnabled); the objective itself is still CGR's earliest
	// delivery time, so it maps to the same ObjectiveMode as
	// SchedulerModeCGR and toggles MSR separately via msr_enabled.
	SchedulerModeMSR SchedulerMode = "msr"
)

// Recognised reports whether m is one of the spec §6 scheduler_mode
// literals.
func (m SchedulerMode) Recognised() bool {
	switch m {
	case SchedulerModeNaive, SchedulerModeFirst, SchedulerModeCGR, SchedulerModeCGRResourceAware, SchedulerModeMSR:
		return true
	default:
		return false
	}
}

// ReschedulingMode selects when a node re-invokes the scheduler after a
// missed pickup or failed forward (spec §4.7).
type ReschedulingMode string

const (
	ReschedulingOff       ReschedulingMode = "off"
	ReschedulingPrePickup ReschedulingMode = "pre_pickup"
	ReschedulingAny       ReschedulingMode = "any"
)

// Config is the typed form of the engine's configuration surface.
type Config struct {
	SchedulerMode           SchedulerMode    `mapstructure:"scheduler_mode"`
	RequestDuplication      bool             `mapstructure:"request_duplication"`
	Rescheduling            ReschedulingMode `mapstructure:"rescheduling"`
	MSREnabled              bool             `mapstructure:"msr_enabled"`
	KRoutesPerPair          int              `mapstructure:"k_routes_per_pair"`
	BundleAssignPeriod      time.Duration    `mapstructure:"bundle_assign_period"`
	OutboundPollPeriod      time.Duration    `mapstructure:"outbound_poll_period"`
	NodeBufferCapacity      float64          `mapstructure:"node_buffer_capacity"`
	SchedulerBufferCapacity float64          `mapstructure:"scheduler_buffer_capacity"`
	Warmup                  time.Duration    `mapstructure:"warmup"`
	Cooldown                time.Duration    `mapstructure:"cooldown"`

	PersistencePath string `mapstructure:"persistence_path"`

	Tracing TracingConfig `mapstructure:"tracing"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TracingConfig mirrors internal/observability.TracingConfig's shape so
// it can be bound directly from the same file/env surface.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig controls the structured logger (internal/logging).
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scheduler_mode", string(SchedulerModeCGR))
	v.SetDefault("request_duplication", true)
	v.SetDefault("rescheduling", string(ReschedulingPrePickup))
	v.SetDefault("msr_enabled", true)
	v.SetDefault("k_routes_per_pair", 3)
	v.SetDefault("bundle_assign_period", "10s")
	v.SetDefault("outbound_poll_period", "1s")
	v.SetDefault("node_buffer_capacity", 1_000_000.0)
	v.SetDefault("scheduler_buffer_capacity", 1_000_000.0)
	v.SetDefault("warmup", "0s")
	v.SetDefault("cooldown", "0s")
	v.SetDefault("persistence_path", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "cgs-scheduler")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads configuration from environment variables prefixed CGS_
// (e.g. CGS_SCHEDULER_MODE), the file at path (if non-empty), and
// defaults, in that override order (viper's precedence: environment over
// file over defaults), and unmarshals into a Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("cgs")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if !cfg.SchedulerMode.Recognised() {
		return nil, fmt.Errorf("config: scheduler_mode %q is not one of naive, first, cgr, cgr_resource, msr", cfg.SchedulerMode)
	}
	return &cfg, nil
}
