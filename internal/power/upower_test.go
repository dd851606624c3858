package power

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/refreshd/internal/errors"
	"codeberg.org/mutker/refreshd/internal/logger"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func propertiesSignal(iface string, changed map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Path: upowerPath,
		Name: propertiesChanged,
		Body: []interface{}{iface, changed, []string{}},
	}
}

func TestInitialStateUnknown(t *testing.T) {
	w := NewWatcher(logger.Nop())
	assert.Equal(t, Unknown, w.Current())
}

func TestHandleSignalUpdatesState(t *testing.T) {
	w := NewWatcher(logger.Nop())

	w.handleSignal(context.Background(), propertiesSignal(upowerInterface, map[string]dbus.Variant{
		onBatteryProperty: dbus.MakeVariant(true),
	}))
	assert.Equal(t, OnBattery, w.Current())

	select {
	case <-w.Changes():
	default:
		t.Fatal("expected a change notification")
	}

	w.handleSignal(context.Background(), propertiesSignal(upowerInterface, map[string]dbus.Variant{
		onBatteryProperty: dbus.MakeVariant(false),
	}))
	assert.Equal(t, OnAC, w.Current())
}

func TestHandleSignalIgnoresUnrelated(t *testing.T) {
	w := NewWatcher(logger.Nop())

	w.handleSignal(context.Background(), propertiesSignal(upowerInterface, map[string]dbus.Variant{
		"LidIsClosed": dbus.MakeVariant(true),
	}))
	w.handleSignal(context.Background(), propertiesSignal("org.freedesktop.UPower.Device", map[string]dbus.Variant{
		onBatteryProperty: dbus.MakeVariant(true),
	}))
	w.handleSignal(context.Background(), &dbus.Signal{Name: "org.freedesktop.UPower.DeviceAdded"})
	w.handleSignal(context.Background(), nil)

	assert.Equal(t, Unknown, w.Current())
	select {
	case <-w.Changes():
		t.Fatal("unexpected change notification")
	default:
	}
}

func TestNotificationsCoalesce(t *testing.T) {
	w := NewWatcher(logger.Nop())

	for _, onBattery := range []bool{true, false, true} {
		w.handleSignal(context.Background(), propertiesSignal(upowerInterface, map[string]dbus.Variant{
			onBatteryProperty: dbus.MakeVariant(onBattery),
		}))
	}

	<-w.Changes()
	select {
	case <-w.Changes():
		t.Fatal("expected a single pending notification")
	default:
	}
	assert.Equal(t, OnBattery, w.Current())
}

func TestSameValueDoesNotNotify(t *testing.T) {
	w := NewWatcher(logger.Nop())
	w.set(OnAC)
	<-w.Changes()

	w.set(OnAC)
	select {
	case <-w.Changes():
		t.Fatal("unexpected change notification")
	default:
	}
}

func TestRunRequiresStart(t *testing.T) {
	w := NewWatcher(logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.Error(t, w.Run(ctx))
	require.NoError(t, w.Close())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "ac", OnAC.String())
	assert.Equal(t, "battery", OnBattery.String())
	assert.Equal(t, OnBattery, FromOnBattery(true))
	assert.Equal(t, OnAC, FromOnBattery(false))
}

// stubObject answers Properties.Get, or blocks until the caller gives up.
type stubObject struct {
	dbus.BusObject
	block     bool
	onBattery bool
	method    string
}

func (o *stubObject) CallWithContext(ctx context.Context, method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	o.method = method
	if o.block {
		<-ctx.Done()
		return &dbus.Call{Err: ctx.Err()}
	}

	return &dbus.Call{Body: []interface{}{dbus.MakeVariant(o.onBattery)}, Args: args}
}

func TestRefreshReadsOnBattery(t *testing.T) {
	w := NewWatcher(logger.Nop())
	obj := &stubObject{onBattery: true}
	w.obj = obj

	require.NoError(t, w.refresh(context.Background()))
	assert.Equal(t, propertiesGet, obj.method)
	assert.Equal(t, OnBattery, w.Current())
}

func TestRefreshGivesUpAfterTimeout(t *testing.T) {
	w := NewWatcher(logger.Nop())
	w.SetCallTimeout(20 * time.Millisecond)
	w.obj = &stubObject{block: true}

	start := time.Now()
	err := w.refresh(context.Background())

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrTimeout))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, Unknown, w.Current())
}

func TestInvalidatedSignalDoesNotStallOnHungService(t *testing.T) {
	w := NewWatcher(logger.Nop())
	w.SetCallTimeout(20 * time.Millisecond)
	w.obj = &stubObject{block: true}

	done := make(chan struct{})
	go func() {
		w.handleSignal(context.Background(), &dbus.Signal{
			Path: upowerPath,
			Name: propertiesChanged,
			Body: []interface{}{upowerInterface, map[string]dbus.Variant{}, []string{onBatteryProperty}},
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("signal handling blocked on the property read")
	}
}
