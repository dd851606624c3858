package display_test

import "codeberg.org/mutker/refreshd/internal/display"

// laptopWithExternal returns a snapshot of a 120Hz laptop panel (eDP-1)
// next to an external 144Hz monitor (DP-1) running at 60Hz.
func laptopWithExternal() *display.Snapshot {
	return &display.Snapshot{
		Serial: 7,
		Monitors: []display.Monitor{
			{
				Spec:      display.MonitorSpec{Connector: "eDP-1", Vendor: "BOE", Product: "0x0bca", Serial: "0x00000000"},
				IsBuiltin: true,
				Modes: []display.Mode{
					{ID: "m1", Width: 1920, Height: 1080, RefreshRate: 60.0},
					{ID: "m2", Width: 1920, Height: 1080, RefreshRate: 120.0, IsCurrent: true},
				},
			},
			{
				Spec: display.MonitorSpec{Connector: "DP-1", Vendor: "DEL", Product: "DELL S2721DGF", Serial: "ABC123"},
				Modes: []display.Mode{
					{ID: "2560x1440@143.912", Width: 2560, Height: 1440, RefreshRate: 143.912},
					{ID: "2560x1440@59.951", Width: 2560, Height: 1440, RefreshRate: 59.951, IsCurrent: true},
				},
			},
		},
		LogicalMonitors: []display.LogicalMonitor{
			{
				X: 0, Y: 0, Scale: 1.25, Transform: 0, Primary: true,
				Monitors: []display.MonitorSpec{{Connector: "eDP-1"}},
			},
			{
				X: 1536, Y: 0, Scale: 1, Transform: 1, Primary: false,
				Monitors: []display.MonitorSpec{{Connector: "DP-1"}},
			},
		},
	}
}
