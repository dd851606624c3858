package reconciler_test

import (
	"context"
	"sync"

	"codeberg.org/mutker/refreshd/internal/display"
	"codeberg.org/mutker/refreshd/internal/errors"
	"codeberg.org/mutker/refreshd/internal/history"
	"codeberg.org/mutker/refreshd/internal/power"
)

// fakeMutter hands out snapshots of one fixed topology and rejects applies
// whose serial is not the current one, like the real service.
type fakeMutter struct {
	mu        sync.Mutex
	serial    uint32
	current   map[display.Connector]string
	fetches   int
	applied   []*display.Layout
	fetchErr  error
	applyErr  error
	onFetch   func()
	bumpAfter int // bump the serial after this many fetches, 0 disables
	block     bool
}

func newFakeMutter() *fakeMutter {
	return &fakeMutter{
		serial: 7,
		current: map[display.Connector]string{
			"eDP-1": "1920x1080@120.000",
			"DP-1":  "2560x1440@59.951",
		},
	}
}

func (f *fakeMutter) FetchSnapshot(ctx context.Context) (*display.Snapshot, error) {
	f.mu.Lock()
	f.fetches++
	block, fetchErr, onFetch := f.block, f.fetchErr, f.onFetch
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, errors.New().Wrap(display.ErrTimeout, ctx.Err())
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if onFetch != nil {
		onFetch()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := f.snapshotLocked()
	if f.bumpAfter > 0 && f.fetches == f.bumpAfter {
		f.serial++
	}

	return snapshot, nil
}

func (f *fakeMutter) Apply(_ context.Context, layout *display.Layout, _ display.ApplyMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.applyErr != nil {
		return f.applyErr
	}
	if layout.Serial != f.serial {
		return errors.New().WithMessage(display.ErrStaleSnapshot, "The requested configuration is based on stale information")
	}

	f.applied = append(f.applied, layout)
	for _, lm := range layout.Monitors {
		for _, m := range lm.Members {
			f.current[m.Connector] = m.ModeID
		}
	}
	f.serial++

	return nil
}

func (f *fakeMutter) appliedLayouts() []*display.Layout {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*display.Layout(nil), f.applied...)
}

func (f *fakeMutter) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.fetches
}

func (f *fakeMutter) snapshotLocked() *display.Snapshot {
	mode := func(id string, w, h int, hz float64) display.Mode {
		return display.Mode{ID: id, Width: w, Height: h, RefreshRate: hz}
	}

	edp := display.Monitor{
		Spec: display.MonitorSpec{Connector: "eDP-1", Vendor: "BOE", Product: "0x0bca", Serial: "0x00000000"},
		Modes: []display.Mode{
			mode("1920x1080@60.000", 1920, 1080, 60.0),
			mode("1920x1080@120.000", 1920, 1080, 120.0),
		},
		IsBuiltin: true,
	}
	dp := display.Monitor{
		Spec: display.MonitorSpec{Connector: "DP-1", Vendor: "DEL", Product: "DELL S2721DGF", Serial: "7XQ"},
		Modes: []display.Mode{
			mode("2560x1440@143.912", 2560, 1440, 143.912),
			mode("2560x1440@59.951", 2560, 1440, 59.951),
		},
	}
	for _, m := range []*display.Monitor{&edp, &dp} {
		for i := range m.Modes {
			m.Modes[i].IsCurrent = f.current[m.Spec.Connector] == m.Modes[i].ID
		}
	}

	return &display.Snapshot{
		Serial:   f.serial,
		Monitors: []display.Monitor{edp, dp},
		LogicalMonitors: []display.LogicalMonitor{
			{X: 0, Y: 0, Scale: 1.25, Primary: true, Monitors: []display.MonitorSpec{edp.Spec}},
			{X: 1536, Y: 0, Scale: 1, Transform: 0, Monitors: []display.MonitorSpec{dp.Spec}},
		},
	}
}

type fakePower struct {
	mu    sync.Mutex
	state power.State
}

func (p *fakePower) Current() power.State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

func (p *fakePower) Changes() <-chan struct{} { return nil }

func (p *fakePower) set(state power.State) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

type fakeSettings struct {
	mu      sync.Mutex
	ac      int
	battery int
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

func (*fakeSettings) OnChange(string, func()) {}

func (s *fakeSettings) setBattery(hz int) {
	s.mu.Lock()
	s.battery = hz
	s.mu.Unlock()
}

type memoryHistory struct {
	mu       sync.Mutex
	attempts []history.Attempt
}

func (h *memoryHistory) Record(_ context.Context, a *history.Attempt) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.attempts = append(h.attempts, *a)

	return nil
}

func (*memoryHistory) Close() error { return nil }

func (h *memoryHistory) all() []history.Attempt {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]history.Attempt(nil), h.attempts...)
}
