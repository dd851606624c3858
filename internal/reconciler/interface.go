package reconciler

import (
	"time"

	"codeberg.org/mutker/refreshd/internal/display"
	"codeberg.org/mutker/refreshd/internal/power"
)

// Outcome is how a reconciliation attempt ended.
type Outcome string

const (
	// OutcomeApplied means the layout was accepted by the display service.
	OutcomeApplied Outcome = "applied"
	// OutcomeUnchanged means the selected mode was already current.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeSkipped means the attempt stopped at the idle guard.
	OutcomeSkipped     Outcome = "skipped"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeApplyFailed Outcome = "apply_failed"
	// OutcomeStaleSerial means another configuration change won the race.
	OutcomeStaleSerial Outcome = "stale_serial"
)

// Result describes one finished attempt.
type Result struct {
	ID         string
	Cause      string
	PowerState power.State
	Connector  display.Connector
	TargetHz   int
	ModeID     string
	Serial     uint32
	Guessed    []display.Connector
	Outcome    Outcome
	Err        error
	Duration   time.Duration
}

// Options tunes a Reconciler.
type Options struct {
	Connector     display.Connector
	Method        display.ApplyMethod
	CallTimeout   time.Duration
	SkipIfCurrent bool
}

const DefaultCallTimeout = 5 * time.Second

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions(connector display.Connector) Options {
	return Options{
		Connector:     connector,
		Method:        display.MethodTemporary,
		CallTimeout:   DefaultCallTimeout,
		SkipIfCurrent: true,
	}
}
