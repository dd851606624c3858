package power

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/refreshd/internal/errors"
	"codeberg.org/mutker/refreshd/internal/logger"
	"github.com/godbus/dbus/v5"
)

const (
	upowerDest      = "org.freedesktop.UPower"
	upowerPath      = "/org/freedesktop/UPower"
	upowerInterface = "org.freedesktop.UPower"

	propertiesInterface = "org.freedesktop.DBus.Properties"
	propertiesChanged   = propertiesInterface + ".PropertiesChanged"
	propertiesGet       = propertiesInterface + ".Get"

	onBatteryProperty = "OnBattery"

	signalBuffer = 8

	// DefaultCallTimeout bounds each property read.
	DefaultCallTimeout = 5 * time.Second
)

var _ Source = (*Watcher)(nil)

// Watcher follows UPower's OnBattery property on the system bus. If the bus
// cannot be reached the state stays Unknown; there is no reconnect.
type Watcher struct {
	logger  logger.Logger
	conn    *dbus.Conn
	obj     dbus.BusObject
	signals chan *dbus.Signal
	changes chan struct{}
	matches []dbus.MatchOption
	timeout time.Duration

	mu     sync.RWMutex
	state  State
	closed bool
}

func NewWatcher(log logger.Logger) *Watcher {
	return &Watcher{
		logger:  log,
		changes: make(chan struct{}, 1),
		timeout: DefaultCallTimeout,
	}
}

// SetCallTimeout changes the bound on each property read. Non-positive
// values keep the default.
func (w *Watcher) SetCallTimeout(d time.Duration) {
	if d > 0 {
		w.timeout = d
	}
}

// Start connects to the system bus, reads the initial state and subscribes
// to property changes. Call Run to process notifications.
func (w *Watcher) Start(ctx context.Context) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return errors.New().Wrap(ErrConnection, err)
	}

	return w.attach(ctx, conn)
}

func (w *Watcher) attach(ctx context.Context, conn *dbus.Conn) error {
	errFactory := errors.New()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errFactory.New(ErrAlreadyClosed)
	}
	w.conn = conn
	w.obj = conn.Object(upowerDest, dbus.ObjectPath(upowerPath))
	w.mu.Unlock()

	w.matches = []dbus.MatchOption{
		dbus.WithMatchObjectPath(dbus.ObjectPath(upowerPath)),
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, upowerInterface),
	}
	if err := conn.AddMatchSignal(w.matches...); err != nil {
		w.matches = nil
		return errFactory.Wrap(ErrSubscribe, err)
	}

	w.signals = make(chan *dbus.Signal, signalBuffer)
	conn.Signal(w.signals)

	if err := w.refresh(ctx); err != nil {
		// Keep the subscription; a later PropertiesChanged still updates us.
		w.logger.Warn().Err(err).Msg("Failed to read initial power state")
	}

	w.logger.Info().Str("state", w.Current().String()).Msg("Watching UPower")

	return nil
}

// Run forwards property changes until ctx is done or the connection closes.
func (w *Watcher) Run(ctx context.Context) error {
	if w.signals == nil {
		return errors.New().New(ErrNotStarted)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-w.signals:
			if !ok {
				return nil
			}
			w.handleSignal(ctx, sig)
		}
	}
}

func (w *Watcher) Current() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close drops the subscription and the bus connection.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.conn == nil {
		return nil
	}

	if w.matches != nil {
		if err := w.conn.RemoveMatchSignal(w.matches...); err != nil {
			w.logger.Debug().Err(err).Msg("Failed to remove UPower match rule")
		}
	}
	if w.signals != nil {
		w.conn.RemoveSignal(w.signals)
	}

	if err := w.conn.Close(); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}

func (w *Watcher) refresh(ctx context.Context) error {
	errFactory := errors.New()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	call := w.obj.CallWithContext(ctx, propertiesGet, 0, upowerInterface, onBatteryProperty)
	if call.Err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errFactory.Wrap(ErrTimeout, ctxErr).WithMessage("reading OnBattery timed out")
		}
		return errFactory.Wrap(ErrReadProperty, call.Err)
	}

	var variant dbus.Variant
	if err := call.Store(&variant); err != nil {
		return errFactory.Wrap(ErrReadProperty, err)
	}

	onBattery, ok := variant.Value().(bool)
	if !ok {
		return errFactory.WithData(ErrReadProperty, variant.Signature().String())
	}

	w.set(FromOnBattery(onBattery))

	return nil
}

func (w *Watcher) handleSignal(ctx context.Context, sig *dbus.Signal) {
	if sig == nil || sig.Name != propertiesChanged || len(sig.Body) < 2 {
		return
	}
	if iface, ok := sig.Body[0].(string); !ok || iface != upowerInterface {
		return
	}

	if changed, ok := sig.Body[1].(map[string]dbus.Variant); ok {
		if v, ok := changed[onBatteryProperty]; ok {
			if onBattery, ok := v.Value().(bool); ok {
				w.set(FromOnBattery(onBattery))
				return
			}
		}
	}

	if len(sig.Body) > 2 {
		if invalidated, ok := sig.Body[2].([]string); ok {
			for _, name := range invalidated {
				if name == onBatteryProperty {
					if err := w.refresh(ctx); err != nil {
						w.logger.Warn().Err(err).Msg("Failed to re-read power state")
					}
					return
				}
			}
		}
	}
}

func (w *Watcher) set(state State) {
	w.mu.Lock()
	previous := w.state
	w.state = state
	w.mu.Unlock()

	if previous == state {
		return
	}

	w.logger.Info().
		Str("from", previous.String()).
		Str("to", state.String()).
		Msg("Power state changed")

	// One pending notification is enough; receivers re-read Current.
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
