package settings

// Keys of the settings file.
const (
	KeyRefreshRateAC      = "refresh-rate-ac"
	KeyRefreshRateBattery = "refresh-rate-battery"
)

const (
	MinRefreshRate = 30
	MaxRefreshRate = 240

	DefaultRefreshRateAC      = 120
	DefaultRefreshRateBattery = 60
)

// Source exposes the configured refresh rates and change notifications.
type Source interface {
	ACHz() int
	BatteryHz() int
	OnChange(key string, callback func())
}

// RefreshRates holds the two configured rates in Hz.
type RefreshRates struct {
	AC      int
	Battery int
}

// Clamp bounds hz to [MinRefreshRate, MaxRefreshRate] and reports whether
// it had to change the value.
func Clamp(hz int) (int, bool) {
	switch {
	case hz < MinRefreshRate:
		return MinRefreshRate, true
	case hz > MaxRefreshRate:
		return MaxRefreshRate, true
	default:
		return hz, false
	}
}

// IsKey reports whether key is one of the refresh rate keys.
func IsKey(key string) bool {
	return key == KeyRefreshRateAC || key == KeyRefreshRateBattery
}
