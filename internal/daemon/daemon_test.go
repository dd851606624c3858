package daemon_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/refreshd/internal/daemon"
	"codeberg.org/mutker/refreshd/internal/display"
	"codeberg.org/mutker/refreshd/internal/logger"
	"codeberg.org/mutker/refreshd/internal/power"
	"codeberg.org/mutker/refreshd/internal/reconciler"
	"codeberg.org/mutker/refreshd/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWatcher struct {
	mu      sync.Mutex
	state   power.State
	changes chan struct{}
	ran     bool
	closed  bool
}

func (w *fakeWatcher) Current() power.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *fakeWatcher) Changes() <-chan struct{} { return w.changes }

func (w *fakeWatcher) Run(ctx context.Context) error {
	w.mu.Lock()
	w.ran = true
	w.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (w *fakeWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWatcher) flip(state power.State) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
	w.changes <- struct{}{}
}

type fakeSettings struct {
	mu        sync.Mutex
	ac        int
	battery   int
	callbacks map[string][]func()
}

func (s *fakeSettings) ACHz() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ac
}

func (s *fakeSettings) BatteryHz() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.battery
}

func (s *fakeSettings) OnChange(key string, cb func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callbacks == nil {
		s.callbacks = map[string][]func(){}
	}
	s.callbacks[key] = append(s.callbacks[key], cb)
}

func (s *fakeSettings) setAC(hz int) {
	s.mu.Lock()
	s.ac = hz
	cbs := append([]func(){}, s.callbacks[settings.KeyRefreshRateAC]...)
	s.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// fakeDisplay records the refresh rate of every applied eDP-1 mode.
type fakeDisplay struct {
	mu      sync.Mutex
	serial  uint32
	current string
	fetches int
	applied []string
	closed  bool
}

func (f *fakeDisplay) FetchSnapshot(context.Context) (*display.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++

	monitor := display.Monitor{
		Spec: display.MonitorSpec{Connector: "eDP-1"},
		Modes: []display.Mode{
			{ID: "60", Width: 1920, Height: 1080, RefreshRate: 60},
			{ID: "120", Width: 1920, Height: 1080, RefreshRate: 120},
		},
	}
	for i := range monitor.Modes {
		monitor.Modes[i].IsCurrent = monitor.Modes[i].ID == f.current
	}

	return &display.Snapshot{
		Serial:   f.serial,
		Monitors: []display.Monitor{monitor},
		LogicalMonitors: []display.LogicalMonitor{
			{Scale: 1, Primary: true, Monitors: []display.MonitorSpec{monitor.Spec}},
		},
	}, nil
}

func (f *fakeDisplay) Apply(_ context.Context, layout *display.Layout, _ display.ApplyMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, _ := layout.ModeFor("eDP-1")
	f.current = id
	f.applied = append(f.applied, id)
	f.serial++

	return nil
}

func (f *fakeDisplay) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeDisplay) appliedModes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

func TestDaemonFollowsPowerAndSettings(t *testing.T) {
	watcher := &fakeWatcher{state: power.OnAC, changes: make(chan struct{}, 1)}
	store := &fakeSettings{ac: 120, battery: 60}
	disp := &fakeDisplay{serial: 1, current: "60"}

	d := daemon.NewWithDependencies(daemon.Dependencies{
		Power:        watcher,
		PowerStarted: true,
		Settings:     store,
		Display:      disp,
	}, reconciler.DefaultOptions("eDP-1"), logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	waitForModes := func(want ...string) {
		t.Helper()
		require.Eventually(t, func() bool {
			return assert.ObjectsAreEqual(want, disp.appliedModes())
		}, 2*time.Second, 10*time.Millisecond, "applied modes: %v", disp.appliedModes())
	}

	// Initial attempt switches to the AC rate.
	waitForModes("120")

	watcher.flip(power.OnBattery)
	waitForModes("120", "60")

	watcher.flip(power.OnAC)
	waitForModes("120", "60", "120")

	store.setAC(60)
	waitForModes("120", "60", "120", "60")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	watcher.mu.Lock()
	assert.True(t, watcher.ran)
	watcher.mu.Unlock()

	require.NoError(t, d.Close())
	assert.True(t, watcher.closed)
	assert.True(t, disp.closed)
}

func TestDaemonRetriggerWithUnknownPowerDoesNothing(t *testing.T) {
	watcher := &fakeWatcher{state: power.Unknown, changes: make(chan struct{}, 1)}
	disp := &fakeDisplay{serial: 1}

	d := daemon.NewWithDependencies(daemon.Dependencies{
		Power:    watcher,
		Settings: &fakeSettings{ac: 120, battery: 60},
		Display:  disp,
	}, reconciler.DefaultOptions("eDP-1"), logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Retrigger()
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	disp.mu.Lock()
	assert.Zero(t, disp.fetches)
	disp.mu.Unlock()

	watcher.mu.Lock()
	assert.False(t, watcher.ran, "watcher that failed to start must not be pumped")
	watcher.mu.Unlock()
}
