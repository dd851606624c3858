package exporter

import "time"

// Recorder receives reconciliation observations. Implementations must be
// safe for concurrent use.
type Recorder interface {
	ObserveAttempt(outcome string, d time.Duration)
	SetTargetRate(hz int)
	SetPowerState(state string)
}

// NoopRecorder is used when no metrics address is configured.
type NoopRecorder struct{}

func (NoopRecorder) ObserveAttempt(string, time.Duration) {}
func (NoopRecorder) SetTargetRate(int)                    {}
func (NoopRecorder) SetPowerState(string)                 {}
