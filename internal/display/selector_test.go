package display_test

import (
	"testing"

	"codeberg.org/mutker/refreshd/internal/display"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectModeMatchesRate(t *testing.T) {
	mode, err := display.SelectMode(laptopWithExternal(), "eDP-1", 120)
	require.NoError(t, err)
	assert.Equal(t, "m2", mode.ID)
}

func TestSelectModeNoMatchingRate(t *testing.T) {
	_, err := display.SelectMode(laptopWithExternal(), "eDP-1", 90)
	require.Error(t, err)

	nf, ok := display.AsNotFound(err)
	require.True(t, ok)
	assert.Equal(t, display.NotFoundMode, nf.Kind)
	assert.Equal(t, 90, nf.RateHz)
}

func TestSelectModeMissingMonitor(t *testing.T) {
	_, err := display.SelectMode(laptopWithExternal(), "HDMI-1", 60)

	nf, ok := display.AsNotFound(err)
	require.True(t, ok)
	assert.Equal(t, display.NotFoundMonitor, nf.Kind)
	assert.Equal(t, display.Connector("HDMI-1"), nf.Connector)
}

func TestSelectModeRoundsRate(t *testing.T) {
	mode, err := display.SelectMode(laptopWithExternal(), "DP-1", 144)
	require.NoError(t, err)
	assert.Equal(t, "2560x1440@143.912", mode.ID)

	mode, err = display.SelectMode(laptopWithExternal(), "DP-1", 60)
	require.NoError(t, err)
	assert.Equal(t, "2560x1440@59.951", mode.ID)
}

func TestSelectModeFirstMatchWins(t *testing.T) {
	snapshot := &display.Snapshot{
		Monitors: []display.Monitor{{
			Spec: display.MonitorSpec{Connector: "eDP-1"},
			Modes: []display.Mode{
				{ID: "2880x1800@60", Width: 2880, Height: 1800, RefreshRate: 60.001},
				{ID: "1920x1200@60", Width: 1920, Height: 1200, RefreshRate: 59.95},
			},
		}},
	}

	mode, err := display.SelectMode(snapshot, "eDP-1", 60)
	require.NoError(t, err)
	assert.Equal(t, "2880x1800@60", mode.ID)
}

func TestSelectModeNeverReturnsOtherRate(t *testing.T) {
	snapshot := laptopWithExternal()
	for _, connector := range []display.Connector{"eDP-1", "DP-1", "HDMI-1"} {
		for hz := 30; hz <= 240; hz++ {
			mode, err := display.SelectMode(snapshot, connector, hz)
			if err != nil {
				_, ok := display.AsNotFound(err)
				assert.True(t, ok, "unexpected error for %s@%d: %v", connector, hz, err)
				continue
			}
			assert.Equal(t, hz, mode.RoundedRate(), "%s@%d", connector, hz)
		}
	}
}

func TestSelectModeIsDeterministic(t *testing.T) {
	snapshot := laptopWithExternal()
	before := laptopWithExternal()

	first, err1 := display.SelectMode(snapshot, "eDP-1", 60)
	second, err2 := display.SelectMode(snapshot, "eDP-1", 60)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
	assert.Equal(t, before, snapshot, "snapshot must not be modified")
}
