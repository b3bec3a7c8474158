package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, SchedulerModeCGR, cfg.SchedulerMode)
	require.True(t, cfg.RequestDuplication)
	require.Equal(t, ReschedulingPrePickup, cfg.Rescheduling)
	require.Equal(t, 3, cfg.KRoutesPerPair)
	require.Equal(t, 10*time.Second, cfg.BundleAssignPeriod)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CGS_SCHEDULER_MODE", "first")
	t.Setenv("CGS_K_ROUTES_PER_PAIR", "5")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, SchedulerMode("first"), cfg.SchedulerMode)
	require.Equal(t, 5, cfg.KRoutesPerPair)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/cgs.yaml"
	content := "scheduler_mode: cgr_resource\nmsr_enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, SchedulerModeCGRResourceAware, cfg.SchedulerMode)
	require.False(t, cfg.MSREnabled)
}

func TestLoadRejectsUnrecognisedSchedulerMode(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/cgs.yaml"
	content := "scheduler_mode: resource_aware\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSchedulerModeRecognised(t *testing.T) {
	for _, m := range []SchedulerMode{SchedulerModeNaive, SchedulerModeFirst, SchedulerModeCGR, SchedulerModeCGRResourceAware, SchedulerModeMSR} {
		require.True(t, m.Recognised(), "expected %q to be recognised", m)
	}
	require.False(t, SchedulerMode("resource_aware").Recognised())
	require.False(t, SchedulerMode("bogus").Recognised())
}
