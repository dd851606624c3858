package power

// Source exposes the AC/battery state. Changes delivers a notification
// without payload whenever the state changes; receivers re-read Current.
type Source interface {
	Current() State
	Changes() <-chan struct{}
}

// State is the power supply state as far as refreshd knows it.
type State int

const (
	Unknown State = iota
	OnAC
	OnBattery
)

func (s State) String() string {
	switch s {
	case OnAC:
		return "ac"
	case OnBattery:
		return "battery"
	default:
		return "unknown"
	}
}

// FromOnBattery converts UPower's OnBattery property.
func FromOnBattery(onBattery bool) State {
	if onBattery {
		return OnBattery
	}

	return OnAC
}
