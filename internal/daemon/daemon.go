package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/refreshd/internal/config"
	"codeberg.org/mutker/refreshd/internal/display"
	"codeberg.org/mutker/refreshd/internal/errors"
	"codeberg.org/mutker/refreshd/internal/exporter"
	"codeberg.org/mutker/refreshd/internal/history"
	"codeberg.org/mutker/refreshd/internal/logger"
	"codeberg.org/mutker/refreshd/internal/power"
	"codeberg.org/mutker/refreshd/internal/reconciler"
	"codeberg.org/mutker/refreshd/internal/settings"
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Trigger causes recorded with each attempt.
const (
	CauseInitial  = "initial"
	CausePower    = "power"
	CauseSettings = "settings"
	CauseSignal   = "sighup"
)

// PowerWatcher is a power.Source with a signal pump.
type PowerWatcher interface {
	power.Source
	Run(ctx context.Context) error
	Close() error
}

// Dependencies are the collaborators a Daemon owns. Nil History, Metrics
// and Exporter disable those features.
type Dependencies struct {
	Power        PowerWatcher
	PowerStarted bool
	Settings     settings.Source
	Display      display.Service
	History      history.Recorder
	Metrics      exporter.Recorder
	Exporter     *exporter.Server
}

// Daemon owns every subscription and client for the lifetime of the
// process and tears them down in Close.
type Daemon struct {
	deps       Dependencies
	reconciler *reconciler.Reconciler
	logger     logger.Logger
	settings   chan struct{}
	retrigger  chan struct{}
}

// New connects to the session and system buses and opens the settings
// file, history database and metrics listener as configured.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*Daemon, error) {
	errFactory := errors.New()

	var deps Dependencies
	cleanup := func() {
		closeAll(log, deps)
	}

	watcher := power.NewWatcher(log.With("component", "power"))
	watcher.SetCallTimeout(cfg.CallTimeout)
	if err := watcher.Start(ctx); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			log.ErrorWithContext(appErr, "power", "start").Msg("UPower unavailable, refresh rate will not follow the power state")
		}
	} else {
		deps.PowerStarted = true
	}
	deps.Power = watcher

	store, err := settings.Open(cfg.SettingsFile, log.With("component", "settings"))
	if err != nil {
		cleanup()
		return nil, err
	}
	store.Watch()
	deps.Settings = store

	mutter, err := display.ConnectMutter(log.With("component", "display"))
	if err != nil {
		cleanup()
		return nil, err
	}
	deps.Display = mutter

	historyCfg := history.DefaultConfig(cfg.HistoryDB)
	historyCfg.Enabled = cfg.History
	recorder, err := history.NewService(historyCfg, log.With("component", "history"))
	if err != nil {
		cleanup()
		return nil, err
	}
	deps.History = recorder

	if cfg.MetricsAddr != "" {
		reg := prom.NewRegistry()
		deps.Metrics = exporter.NewPrometheusRecorder(reg)
		srv, err := exporter.Listen(cfg.MetricsAddr, reg, log.With("component", "exporter"))
		if err != nil {
			cleanup()
			return nil, err
		}
		deps.Exporter = srv
	}

	method, ok := display.ParseApplyMethod(cfg.ApplyMethod)
	if !ok {
		cleanup()
		return nil, errFactory.WithData(errors.ErrInvalidConfig, cfg.ApplyMethod)
	}

	connector := display.ResolveConnector(ctx, cfg.Connector, cfg.ConnectorCommand, log)

	opts := reconciler.Options{
		Connector:     connector,
		Method:        method,
		CallTimeout:   cfg.CallTimeout,
		SkipIfCurrent: cfg.SkipIfCurrent,
	}

	return NewWithDependencies(deps, opts, log), nil
}

// NewWithDependencies builds a Daemon from already opened collaborators.
func NewWithDependencies(deps Dependencies, opts reconciler.Options, log logger.Logger) *Daemon {
	if deps.History == nil {
		deps.History = history.Noop()
	}
	if deps.Metrics == nil {
		deps.Metrics = exporter.NoopRecorder{}
	}

	d := &Daemon{
		deps:      deps,
		logger:    log,
		settings:  make(chan struct{}, 1),
		retrigger: make(chan struct{}, 1),
	}
	d.reconciler = reconciler.New(
		deps.Display,
		deps.Display,
		deps.Power,
		deps.Settings,
		opts,
		log.With("component", "reconciler"),
		reconciler.WithHistory(deps.History),
		reconciler.WithMetrics(deps.Metrics),
	)

	notify := func() { signalOnce(d.settings) }
	deps.Settings.OnChange(settings.KeyRefreshRateAC, notify)
	deps.Settings.OnChange(settings.KeyRefreshRateBattery, notify)

	return d
}

// Retrigger asks for a new attempt, like SIGHUP does.
func (d *Daemon) Retrigger() {
	signalOnce(d.retrigger)
}

// Run starts an initial attempt and then one attempt per power change,
// settings change or retrigger until ctx is cancelled. In-flight attempts
// are awaited before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if d.deps.PowerStarted {
		g.Go(func() error {
			return d.deps.Power.Run(gctx)
		})
	}
	if d.deps.Exporter != nil {
		g.Go(func() error {
			return d.deps.Exporter.Serve(gctx)
		})
	}
	g.Go(func() error {
		d.loop(gctx)
		return nil
	})

	err := g.Wait()
	d.reconciler.Wait()

	return err
}

func (d *Daemon) loop(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	d.logger.Info().Msg("Daemon started")
	d.reconciler.Trigger(ctx, CauseInitial)

	for {
		select {
		case <-ctx.Done():
			d.logger.Debug().Msg("Daemon loop stopped")
			return
		case <-d.deps.Power.Changes():
			d.logger.Debug().Str("state", d.deps.Power.Current().String()).Msg("Power state changed")
			d.reconciler.Trigger(ctx, CausePower)
		case <-d.settings:
			d.logger.Debug().Msg("Refresh rate settings changed")
			d.reconciler.Trigger(ctx, CauseSettings)
		case <-hup:
			d.logger.Info().Msg("Received SIGHUP, reconciling")
			d.reconciler.Trigger(ctx, CauseSignal)
		case <-d.retrigger:
			d.reconciler.Trigger(ctx, CauseSignal)
		}
	}
}

// Close releases every subscription and client. Call it after Run returns.
func (d *Daemon) Close() error {
	d.reconciler.Wait()
	return closeAll(d.logger, d.deps)
}

func closeAll(log logger.Logger, deps Dependencies) error {
	var first error
	keep := func(what string, err error) {
		if err == nil {
			return
		}
		log.Warn().Err(err).Str("resource", what).Msg("Failed to close")
		if first == nil {
			first = err
		}
	}

	if deps.Power != nil {
		keep("power", deps.Power.Close())
	}
	if deps.Display != nil {
		keep("display", deps.Display.Close())
	}
	if deps.History != nil {
		keep("history", deps.History.Close())
	}
	if deps.Exporter != nil {
		keep("exporter", deps.Exporter.Close())
	}

	return first
}

func signalOnce(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
