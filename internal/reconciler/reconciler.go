package reconciler

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/refreshd/internal/display"
	"codeberg.org/mutker/refreshd/internal/errors"
	"codeberg.org/mutker/refreshd/internal/exporter"
	"codeberg.org/mutker/refreshd/internal/history"
	"codeberg.org/mutker/refreshd/internal/logger"
	"codeberg.org/mutker/refreshd/internal/power"
	"codeberg.org/mutker/refreshd/internal/settings"
	"github.com/google/uuid"
)

const component = "reconciler"

// Reconciler drives the display towards the refresh rate that matches the
// current power state. Attempts are independent: nothing is locked between
// them and the display service's serial check decides which apply wins.
type Reconciler struct {
	state    display.StateClient
	config   display.ConfigClient
	power    power.Source
	settings settings.Source
	opts     Options
	history  history.Recorder
	metrics  exporter.Recorder
	logger   logger.Logger
	wg       sync.WaitGroup
}

// Option configures optional collaborators.
type Option func(*Reconciler)

// WithHistory records every attempt.
func WithHistory(rec history.Recorder) Option {
	return func(r *Reconciler) {
		if rec != nil {
			r.history = rec
		}
	}
}

// WithMetrics reports every attempt.
func WithMetrics(rec exporter.Recorder) Option {
	return func(r *Reconciler) {
		if rec != nil {
			r.metrics = rec
		}
	}
}

func New(
	state display.StateClient,
	config display.ConfigClient,
	source power.Source,
	rates settings.Source,
	opts Options,
	log logger.Logger,
	options ...Option,
) *Reconciler {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}

	r := &Reconciler{
		state:    state,
		config:   config,
		power:    source,
		settings: rates,
		opts:     opts,
		history:  history.Noop(),
		metrics:  exporter.NoopRecorder{},
		logger:   log,
	}
	for _, opt := range options {
		opt(r)
	}

	return r
}

// Trigger starts a new attempt in its own goroutine and returns immediately.
func (r *Reconciler) Trigger(ctx context.Context, cause string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Reconcile(ctx, cause)
	}()
}

// Wait blocks until every attempt started by Trigger has finished.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Reconcile runs one attempt synchronously.
func (r *Reconciler) Reconcile(ctx context.Context, cause string) (res Result) {
	res = Result{
		ID:        uuid.NewString(),
		Cause:     cause,
		Connector: r.opts.Connector,
	}
	start := time.Now()
	log := r.logger.With("attempt", res.ID)

	defer func() {
		res.Duration = time.Since(start)
		r.finish(ctx, log, &res)
	}()

	res.PowerState = r.power.Current()
	if res.PowerState == power.Unknown || res.Connector == "" {
		res.Outcome = OutcomeSkipped
		log.Debug().
			Str("cause", cause).
			Str("power_state", res.PowerState.String()).
			Str("connector", string(res.Connector)).
			Msg("Power state or connector unknown, nothing to do")
		return res
	}

	log.Debug().
		Str("cause", cause).
		Str("power_state", res.PowerState.String()).
		Str("connector", string(res.Connector)).
		Msg("Reconciling refresh rate")

	snapshot, err := r.fetch(ctx)
	if err != nil {
		res.Outcome, res.Err = OutcomeFetchFailed, err
		return res
	}
	res.Serial = snapshot.Serial

	// Read after the fetch so a settings change racing a power change is seen.
	res.PowerState = r.power.Current()
	res.TargetHz = r.desiredHz(res.PowerState)

	mode, err := display.SelectMode(snapshot, res.Connector, res.TargetHz)
	if err != nil {
		res.Outcome, res.Err = OutcomeNotFound, err
		return res
	}
	res.ModeID = mode.ID

	layout, err := display.BuildLayout(snapshot, res.Connector, mode)
	if err != nil {
		res.Outcome, res.Err = OutcomeNotFound, err
		if !errors.HasCode(err, display.ErrNotFound) {
			res.Outcome = OutcomeApplyFailed
		}
		return res
	}
	res.Guessed = layout.Guessed

	if len(layout.Guessed) > 0 {
		guessed := make([]string, 0, len(layout.Guessed))
		for _, c := range layout.Guessed {
			guessed = append(guessed, string(c))
		}
		log.Warn().
			Strs("connectors", guessed).
			Msg("No current mode reported, keeping the first listed mode")
	}

	if r.opts.SkipIfCurrent && mode.IsCurrent {
		res.Outcome = OutcomeUnchanged
		return res
	}

	if err := r.apply(ctx, layout); err != nil {
		res.Err = err
		res.Outcome = OutcomeApplyFailed
		if errors.HasCode(err, display.ErrStaleSnapshot) {
			res.Outcome = OutcomeStaleSerial
		}
		return res
	}

	res.Outcome = OutcomeApplied

	return res
}

func (r *Reconciler) fetch(ctx context.Context) (*display.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()

	return r.state.FetchSnapshot(ctx)
}

func (r *Reconciler) apply(ctx context.Context, layout *display.Layout) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()

	return r.config.Apply(ctx, layout, r.opts.Method)
}

func (r *Reconciler) desiredHz(state power.State) int {
	if state == power.OnBattery {
		return r.settings.BatteryHz()
	}

	return r.settings.ACHz()
}

func (r *Reconciler) finish(ctx context.Context, log logger.Logger, res *Result) {
	r.report(log, res)

	r.metrics.ObserveAttempt(string(res.Outcome), res.Duration)
	r.metrics.SetPowerState(res.PowerState.String())
	if res.Outcome == OutcomeApplied || res.Outcome == OutcomeUnchanged {
		r.metrics.SetTargetRate(res.TargetHz)
	}

	attempt := &history.Attempt{
		ID:         res.ID,
		Timestamp:  time.Now(),
		Trigger:    res.Cause,
		PowerState: res.PowerState.String(),
		Connector:  string(res.Connector),
		TargetHz:   res.TargetHz,
		ModeID:     res.ModeID,
		Serial:     res.Serial,
		Outcome:    string(res.Outcome),
		Duration:   res.Duration,
		Guessed:    len(res.Guessed) > 0,
	}
	if res.Err != nil {
		attempt.ErrorCode = string(errors.CodeOf(res.Err))
	}

	// Shutdown cancels ctx, the record is still written.
	if err := r.history.Record(context.WithoutCancel(ctx), attempt); err != nil {
		log.Warn().Err(err).Msg("Failed to record attempt")
	}
}

func (r *Reconciler) report(log logger.Logger, res *Result) {
	switch res.Outcome {
	case OutcomeApplied:
		log.Info().
			Str("connector", string(res.Connector)).
			Int("target_hz", res.TargetHz).
			Str("mode", res.ModeID).
			Uint32("serial", res.Serial).
			Dur("duration", res.Duration).
			Msg("Refresh rate applied")
	case OutcomeUnchanged:
		log.Debug().
			Str("connector", string(res.Connector)).
			Int("target_hz", res.TargetHz).
			Msg("Refresh rate already current")
	case OutcomeSkipped:
		return
	case OutcomeNotFound:
		event := log.Warn().
			Str("connector", string(res.Connector)).
			Int("target_hz", res.TargetHz)
		if nf, ok := display.AsNotFound(res.Err); ok {
			event = event.Str("missing", string(nf.Kind))
		}
		event.Msg("No matching mode, leaving display unchanged")
	case OutcomeStaleSerial:
		log.Warn().
			Str("connector", string(res.Connector)).
			Int("target_hz", res.TargetHz).
			Uint32("serial", res.Serial).
			Msg("Display configuration changed during the attempt, next event will retry")
	default:
		log.ErrorWithContext(asError(res.Err), component, operationOf(res.Outcome)).
			Str("connector", string(res.Connector)).
			Int("target_hz", res.TargetHz).
			Uint32("serial", res.Serial).
			Msg("Reconciliation failed")
	}
}

func operationOf(outcome Outcome) string {
	if outcome == OutcomeFetchFailed {
		return "fetch_state"
	}

	return "apply_config"
}

func asError(err error) errors.Error {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	return errors.New().Wrap(errors.ErrInternal, err)
}
