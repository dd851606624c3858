package display

import "github.com/godbus/dbus/v5"

// D-Bus shapes of org.gnome.Mutter.DisplayConfig. Field order matters:
// godbus maps struct fields to tuple members positionally.

// (ssss)
type wireMonitorSpec struct {
	Connector string
	Vendor    string
	Product   string
	Serial    string
}

// (siiddada{sv})
type wireMode struct {
	ID              string
	Width           int32
	Height          int32
	RefreshRate     float64
	PreferredScale  float64
	SupportedScales []float64
	Properties      map[string]dbus.Variant
}

// ((ssss)a(siiddada{sv})a{sv})
type wireMonitor struct {
	Spec       wireMonitorSpec
	Modes      []wireMode
	Properties map[string]dbus.Variant
}

// (iiduba(ssss)a{sv})
type wireLogicalMonitor struct {
	X          int32
	Y          int32
	Scale      float64
	Transform  uint32
	Primary    bool
	Monitors   []wireMonitorSpec
	Properties map[string]dbus.Variant
}

// (ssa{sv})
type wireApplyMember struct {
	Connector  string
	ModeID     string
	Properties map[string]dbus.Variant
}

// (iiduba(ssa{sv}))
type wireApplyLogical struct {
	X         int32
	Y         int32
	Scale     float64
	Transform uint32
	Primary   bool
	Monitors  []wireApplyMember
}

func decodeState(serial uint32, monitors []wireMonitor, logical []wireLogicalMonitor) *Snapshot {
	snapshot := &Snapshot{
		Serial:          serial,
		Monitors:        make([]Monitor, 0, len(monitors)),
		LogicalMonitors: make([]LogicalMonitor, 0, len(logical)),
	}

	for _, wm := range monitors {
		monitor := Monitor{
			Spec:        decodeSpec(wm.Spec),
			Modes:       make([]Mode, 0, len(wm.Modes)),
			DisplayName: variantString(wm.Properties, "display-name"),
			IsBuiltin:   variantBool(wm.Properties, "is-builtin"),
		}
		for _, mode := range wm.Modes {
			monitor.Modes = append(monitor.Modes, Mode{
				ID:              mode.ID,
				Width:           int(mode.Width),
				Height:          int(mode.Height),
				RefreshRate:     mode.RefreshRate,
				PreferredScale:  mode.PreferredScale,
				SupportedScales: mode.SupportedScales,
				IsCurrent:       variantBool(mode.Properties, "is-current"),
				IsPreferred:     variantBool(mode.Properties, "is-preferred"),
			})
		}
		snapshot.Monitors = append(snapshot.Monitors, monitor)
	}

	for _, wl := range logical {
		lm := LogicalMonitor{
			X:         int(wl.X),
			Y:         int(wl.Y),
			Scale:     wl.Scale,
			Transform: wl.Transform,
			Primary:   wl.Primary,
			Monitors:  make([]MonitorSpec, 0, len(wl.Monitors)),
		}
		for _, spec := range wl.Monitors {
			lm.Monitors = append(lm.Monitors, decodeSpec(spec))
		}
		snapshot.LogicalMonitors = append(snapshot.LogicalMonitors, lm)
	}

	return snapshot
}

func decodeSpec(spec wireMonitorSpec) MonitorSpec {
	return MonitorSpec{
		Connector: Connector(spec.Connector),
		Vendor:    spec.Vendor,
		Product:   spec.Product,
		Serial:    spec.Serial,
	}
}

func encodeLayout(layout *Layout) []wireApplyLogical {
	out := make([]wireApplyLogical, 0, len(layout.Monitors))
	for _, lm := range layout.Monitors {
		wl := wireApplyLogical{
			X:         int32(lm.X),
			Y:         int32(lm.Y),
			Scale:     lm.Scale,
			Transform: lm.Transform,
			Primary:   lm.Primary,
			Monitors:  make([]wireApplyMember, 0, len(lm.Members)),
		}
		for _, member := range lm.Members {
			wl.Monitors = append(wl.Monitors, wireApplyMember{
				Connector:  string(member.Connector),
				ModeID:     member.ModeID,
				Properties: map[string]dbus.Variant{},
			})
		}
		out = append(out, wl)
	}

	return out
}

func variantBool(props map[string]dbus.Variant, key string) bool {
	if v, ok := props[key]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}

	return false
}

func variantString(props map[string]dbus.Variant, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}

	return ""
}
