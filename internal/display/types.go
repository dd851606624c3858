package display

import "math"

// Connector identifies a physical output port, e.g. "eDP-1".
type Connector string

// MonitorSpec identifies a monitor within a snapshot.
type MonitorSpec struct {
	Connector Connector
	Vendor    string
	Product   string
	Serial    string
}

// Mode is one video mode a monitor supports. IDs are only unique within
// the snapshot they were read from.
type Mode struct {
	ID              string
	Width           int
	Height          int
	RefreshRate     float64
	PreferredScale  float64
	SupportedScales []float64
	IsCurrent       bool
	IsPreferred     bool
}

// RoundedRate returns the refresh rate rounded to the nearest Hz.
func (m Mode) RoundedRate() int {
	return int(math.Round(m.RefreshRate))
}

type Monitor struct {
	Spec        MonitorSpec
	Modes       []Mode
	DisplayName string
	IsBuiltin   bool
}

// CurrentMode returns the mode flagged as current. When no mode carries the
// flag it falls back to the first mode and reports ok=false.
func (m *Monitor) CurrentMode() (Mode, bool) {
	for _, mode := range m.Modes {
		if mode.IsCurrent {
			return mode, true
		}
	}
	if len(m.Modes) > 0 {
		return m.Modes[0], false
	}

	return Mode{}, false
}

// HasMode reports whether id is one of the monitor's modes.
func (m *Monitor) HasMode(id string) bool {
	for _, mode := range m.Modes {
		if mode.ID == id {
			return true
		}
	}

	return false
}

// LogicalMonitor is a display area in the global layout. More than one
// member means the monitors mirror each other.
type LogicalMonitor struct {
	X         int
	Y         int
	Scale     float64
	Transform uint32
	Primary   bool
	Monitors  []MonitorSpec
}

// Contains reports whether connector is a member of the logical monitor.
func (lm *LogicalMonitor) Contains(connector Connector) bool {
	for _, spec := range lm.Monitors {
		if spec.Connector == connector {
			return true
		}
	}

	return false
}

// Snapshot is an immutable view of the display topology at Serial.
type Snapshot struct {
	Serial          uint32
	Monitors        []Monitor
	LogicalMonitors []LogicalMonitor
}

// Monitor returns the monitor attached to connector, or nil.
func (s *Snapshot) Monitor(connector Connector) *Monitor {
	for i := range s.Monitors {
		if s.Monitors[i].Spec.Connector == connector {
			return &s.Monitors[i]
		}
	}

	return nil
}

type LayoutMember struct {
	Connector Connector
	ModeID    string
}

type LayoutMonitor struct {
	X         int
	Y         int
	Scale     float64
	Transform uint32
	Primary   bool
	Members   []LayoutMember
}

// Layout is a complete logical-monitor configuration derived from the
// snapshot with the same Serial.
type Layout struct {
	Serial   uint32
	Monitors []LayoutMonitor

	// Guessed lists connectors whose current mode was not flagged in the
	// snapshot, so the first listed mode was kept instead.
	Guessed []Connector
}

// ModeFor returns the mode id submitted for connector.
func (l *Layout) ModeFor(connector Connector) (string, bool) {
	for _, lm := range l.Monitors {
		for _, member := range lm.Members {
			if member.Connector == connector {
				return member.ModeID, true
			}
		}
	}

	return "", false
}
