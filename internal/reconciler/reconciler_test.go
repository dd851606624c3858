package reconciler_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/refreshd/internal/display"
	"codeberg.org/mutker/refreshd/internal/errors"
	"codeberg.org/mutker/refreshd/internal/logger"
	"codeberg.org/mutker/refreshd/internal/power"
	"codeberg.org/mutker/refreshd/internal/reconciler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	mutter   *fakeMutter
	power    *fakePower
	settings *fakeSettings
	history  *memoryHistory
	r        *reconciler.Reconciler
}

func newHarness(t *testing.T, state power.State, mutate ...func(*reconciler.Options)) *harness {
	t.Helper()

	h := &harness{
		mutter:   newFakeMutter(),
		power:    &fakePower{state: state},
		settings: &fakeSettings{ac: 144, battery: 60},
		history:  &memoryHistory{},
	}

	opts := reconciler.DefaultOptions("eDP-1")
	for _, m := range mutate {
		m(&opts)
	}

	h.r = reconciler.New(h.mutter, h.mutter, h.power, h.settings, opts, logger.Nop(),
		reconciler.WithHistory(h.history))

	return h
}

func TestUnknownPowerStateNeverFetches(t *testing.T) {
	h := newHarness(t, power.Unknown)

	res := h.r.Reconcile(context.Background(), "initial")

	assert.Equal(t, reconciler.OutcomeSkipped, res.Outcome)
	assert.Zero(t, h.mutter.fetchCount())
	assert.Empty(t, h.mutter.appliedLayouts())
}

func TestEmptyConnectorNeverFetches(t *testing.T) {
	h := newHarness(t, power.OnAC, func(o *reconciler.Options) { o.Connector = "" })

	res := h.r.Reconcile(context.Background(), "initial")

	assert.Equal(t, reconciler.OutcomeSkipped, res.Outcome)
	assert.Zero(t, h.mutter.fetchCount())
}

func TestBatteryAppliesBatteryRateAndKeepsOtherMonitors(t *testing.T) {
	h := newHarness(t, power.OnBattery)

	res := h.r.Reconcile(context.Background(), "power")

	require.Equal(t, reconciler.OutcomeApplied, res.Outcome, "err: %v", res.Err)
	assert.Equal(t, 60, res.TargetHz)
	assert.Equal(t, "1920x1080@60.000", res.ModeID)
	assert.Equal(t, uint32(7), res.Serial)
	assert.NotEmpty(t, res.ID)

	applied := h.mutter.appliedLayouts()
	require.Len(t, applied, 1)

	layout := applied[0]
	assert.Equal(t, uint32(7), layout.Serial)
	modeFor := func(c display.Connector) string {
		id, ok := layout.ModeFor(c)
		require.True(t, ok, "no member for %s", c)
		return id
	}
	assert.Equal(t, "1920x1080@60.000", modeFor("eDP-1"))
	assert.Equal(t, "2560x1440@59.951", modeFor("DP-1"))

	require.Len(t, layout.Monitors, 2)
	assert.Equal(t, 1.25, layout.Monitors[0].Scale)
	assert.True(t, layout.Monitors[0].Primary)
	assert.Equal(t, 1536, layout.Monitors[1].X)
	assert.False(t, layout.Monitors[1].Primary)
}

func TestACRateWithoutMatchingModeIsNotFound(t *testing.T) {
	h := newHarness(t, power.OnAC)

	res := h.r.Reconcile(context.Background(), "power")

	assert.Equal(t, reconciler.OutcomeNotFound, res.Outcome)
	assert.Equal(t, 144, res.TargetHz)
	nf, ok := display.AsNotFound(res.Err)
	require.True(t, ok)
	assert.Equal(t, display.NotFoundMode, nf.Kind)
	assert.Empty(t, h.mutter.appliedLayouts())
}

func TestStaleSerialIsRejectedAndNextTriggerSucceeds(t *testing.T) {
	h := newHarness(t, power.OnBattery)
	h.mutter.bumpAfter = 1

	first := h.r.Reconcile(context.Background(), "power")
	assert.Equal(t, reconciler.OutcomeStaleSerial, first.Outcome)
	assert.True(t, errors.HasCode(first.Err, display.ErrStaleSnapshot))
	assert.Empty(t, h.mutter.appliedLayouts())

	second := h.r.Reconcile(context.Background(), "sighup")
	require.Equal(t, reconciler.OutcomeApplied, second.Outcome)
	assert.Equal(t, uint32(8), second.Serial)

	applied := h.mutter.appliedLayouts()
	require.Len(t, applied, 1)
	assert.Equal(t, uint32(8), applied[0].Serial)
}

func TestFetchFailureAbandonsAttempt(t *testing.T) {
	h := newHarness(t, power.OnBattery)
	h.mutter.fetchErr = errors.New().New(display.ErrStateFetch)

	res := h.r.Reconcile(context.Background(), "power")

	assert.Equal(t, reconciler.OutcomeFetchFailed, res.Outcome)
	assert.Zero(t, res.TargetHz)
	assert.Empty(t, h.mutter.appliedLayouts())

	attempts := h.history.all()
	require.Len(t, attempts, 1)
	assert.Equal(t, string(display.ErrStateFetch), attempts[0].ErrorCode)
}

func TestApplyFailureIsReported(t *testing.T) {
	h := newHarness(t, power.OnBattery)
	h.mutter.applyErr = errors.New().New(display.ErrApplyFailed)

	res := h.r.Reconcile(context.Background(), "power")

	assert.Equal(t, reconciler.OutcomeApplyFailed, res.Outcome)
}

func TestCallTimeoutBoundsFetch(t *testing.T) {
	h := newHarness(t, power.OnBattery, func(o *reconciler.Options) { o.CallTimeout = 20 * time.Millisecond })
	h.mutter.block = true

	start := time.Now()
	res := h.r.Reconcile(context.Background(), "power")

	assert.Equal(t, reconciler.OutcomeFetchFailed, res.Outcome)
	assert.True(t, errors.HasCode(res.Err, display.ErrTimeout))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCurrentModeIsNotReapplied(t *testing.T) {
	h := newHarness(t, power.OnBattery)

	require.Equal(t, reconciler.OutcomeApplied, h.r.Reconcile(context.Background(), "power").Outcome)

	res := h.r.Reconcile(context.Background(), "settings")
	assert.Equal(t, reconciler.OutcomeUnchanged, res.Outcome)
	assert.Len(t, h.mutter.appliedLayouts(), 1)
}

func TestCurrentModeIsReappliedWhenSkipDisabled(t *testing.T) {
	h := newHarness(t, power.OnBattery, func(o *reconciler.Options) { o.SkipIfCurrent = false })

	h.r.Reconcile(context.Background(), "power")
	res := h.r.Reconcile(context.Background(), "settings")

	assert.Equal(t, reconciler.OutcomeApplied, res.Outcome)
	assert.Len(t, h.mutter.appliedLayouts(), 2)
}

func TestDesiredRateIsReadAfterFetch(t *testing.T) {
	h := newHarness(t, power.OnAC)
	h.mutter.onFetch = func() {
		h.settings.setBattery(120)
		h.power.set(power.OnBattery)
	}

	res := h.r.Reconcile(context.Background(), "power")

	assert.Equal(t, power.OnBattery, res.PowerState)
	assert.Equal(t, 120, res.TargetHz)
	assert.Equal(t, reconciler.OutcomeUnchanged, res.Outcome)
}

func TestTriggeredAttemptsAreAllRecorded(t *testing.T) {
	h := newHarness(t, power.OnBattery)

	for i := 0; i < 5; i++ {
		h.r.Trigger(context.Background(), "power")
	}
	h.r.Wait()

	attempts := h.history.all()
	require.Len(t, attempts, 5)

	outcomes := map[string]int{}
	for _, a := range attempts {
		outcomes[a.Outcome]++
	}
	assert.LessOrEqual(t, outcomes["applied"], 5)
	assert.GreaterOrEqual(t, outcomes["applied"], 1)
	assert.Len(t, h.mutter.appliedLayouts(), outcomes["applied"])
}
