package display

import "context"

// StateClient fetches the current monitor topology from the display service.
type StateClient interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}

// ConfigClient submits a logical-monitor layout to the display service.
// The layout's serial must come from the snapshot it was built from.
type ConfigClient interface {
	Apply(ctx context.Context, layout *Layout, method ApplyMethod) error
}

// Service is implemented by clients that do both.
type Service interface {
	StateClient
	ConfigClient
	Close() error
}

// ApplyMethod is the method argument of ApplyMonitorsConfig.
type ApplyMethod uint32

const (
	// MethodVerify only checks that the layout is feasible.
	MethodVerify ApplyMethod = 0
	// MethodTemporary applies the layout without persisting it.
	MethodTemporary ApplyMethod = 1
	// MethodPersistent applies the layout and stores it.
	MethodPersistent ApplyMethod = 2
)

func (m ApplyMethod) String() string {
	switch m {
	case MethodVerify:
		return "verify"
	case MethodTemporary:
		return "temporary"
	case MethodPersistent:
		return "persistent"
	default:
		return "unknown"
	}
}

// ParseApplyMethod maps a configured method name to an ApplyMethod.
func ParseApplyMethod(name string) (ApplyMethod, bool) {
	switch name {
	case "verify":
		return MethodVerify, true
	case "temporary", "":
		return MethodTemporary, true
	case "persistent":
		return MethodPersistent, true
	default:
		return MethodTemporary, false
	}
}
