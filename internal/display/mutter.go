package display

import (
	"context"
	"strings"

	"codeberg.org/mutker/refreshd/internal/errors"
	"codeberg.org/mutker/refreshd/internal/logger"
	"github.com/godbus/dbus/v5"
)

const (
	mutterDest      = "org.gnome.Mutter.DisplayConfig"
	mutterPath      = "/org/gnome/Mutter/DisplayConfig"
	mutterInterface = "org.gnome.Mutter.DisplayConfig"

	methodGetCurrentState     = mutterInterface + ".GetCurrentState"
	methodApplyMonitorsConfig = mutterInterface + ".ApplyMonitorsConfig"

	dbusAccessDenied = "org.freedesktop.DBus.Error.AccessDenied"
)

var _ Service = (*Mutter)(nil)

// Mutter talks to GNOME's display configuration service on the session bus.
type Mutter struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger logger.Logger
	owned  bool
}

// ConnectMutter opens a private session bus connection for the client.
func ConnectMutter(log logger.Logger) (*Mutter, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.New().Wrap(ErrConnection, err)
	}

	m := NewMutter(conn, log)
	m.owned = true

	return m, nil
}

// NewMutter wraps an existing bus connection. Close does not close conn.
func NewMutter(conn *dbus.Conn, log logger.Logger) *Mutter {
	return &Mutter{
		conn:   conn,
		obj:    conn.Object(mutterDest, dbus.ObjectPath(mutterPath)),
		logger: log,
	}
}

// FetchSnapshot calls GetCurrentState and decodes the reply.
func (m *Mutter) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	errFactory := errors.New()

	var (
		serial     uint32
		monitors   []wireMonitor
		logical    []wireLogicalMonitor
		properties map[string]dbus.Variant
	)

	call := m.obj.CallWithContext(ctx, methodGetCurrentState, 0)
	if call.Err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errFactory.Wrap(ErrTimeout, ctxErr).WithMessage("GetCurrentState timed out")
		}
		return nil, errFactory.Wrap(ErrStateFetch, call.Err)
	}

	if err := call.Store(&serial, &monitors, &logical, &properties); err != nil {
		return nil, errFactory.Wrap(ErrDecodeState, err)
	}

	snapshot := decodeState(serial, monitors, logical)

	m.logger.Debug().
		Uint32("serial", snapshot.Serial).
		Int("monitors", len(snapshot.Monitors)).
		Int("logical_monitors", len(snapshot.LogicalMonitors)).
		Msg("Fetched display state")

	return snapshot, nil
}

// Apply calls ApplyMonitorsConfig with the layout's serial. A serial that no
// longer matches Mutter's state yields a stale_snapshot error.
func (m *Mutter) Apply(ctx context.Context, layout *Layout, method ApplyMethod) error {
	errFactory := errors.New()

	call := m.obj.CallWithContext(ctx, methodApplyMonitorsConfig, 0,
		layout.Serial,
		uint32(method),
		encodeLayout(layout),
		map[string]dbus.Variant{},
	)
	if call.Err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errFactory.Wrap(ErrTimeout, ctxErr).WithMessage("ApplyMonitorsConfig timed out")
		}
		if isStaleSerial(call.Err) {
			return errFactory.Wrap(ErrStaleSnapshot, call.Err)
		}
		return errFactory.Wrap(ErrApplyFailed, call.Err)
	}

	m.logger.Debug().
		Uint32("serial", layout.Serial).
		Str("method", method.String()).
		Msg("Applied monitors config")

	return nil
}

func (m *Mutter) Close() error {
	if !m.owned || m.conn == nil {
		return nil
	}

	return m.conn.Close()
}

// isStaleSerial recognises Mutter's rejection of an outdated serial, which
// is reported as AccessDenied mentioning stale information.
func isStaleSerial(err error) bool {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return dbusErr.Name == dbusAccessDenied && mentionsStale(dbusErr.Error())
	}
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) {
		return dbusErrPtr.Name == dbusAccessDenied && mentionsStale(dbusErrPtr.Error())
	}

	return false
}

func mentionsStale(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "stale")
}
