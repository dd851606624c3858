package settings

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"codeberg.org/mutker/refreshd/internal/errors"
	"codeberg.org/mutker/refreshd/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

var _ Source = (*Store)(nil)

// Store keeps the refresh rate settings in a TOML file and notifies
// callbacks when a key's value changes on disk or through Set.
type Store struct {
	path   string
	logger logger.Logger
	v      *viper.Viper

	mu        sync.RWMutex
	rates     RefreshRates
	callbacks map[string][]func()
	watching  bool
}

// Open loads the settings file at path, creating it with defaults when it
// does not exist.
func Open(path string, log logger.Logger) (*Store, error) {
	errFactory := errors.New()

	if err := ensureFile(path); err != nil {
		return nil, errFactory.Wrap(errors.ErrInitFailed, err)
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	s := &Store{
		path:      path,
		logger:    log,
		v:         v,
		callbacks: make(map[string][]func()),
	}
	s.rates = s.load(v)

	log.Debug().
		Str("path", path).
		Int(KeyRefreshRateAC, s.rates.AC).
		Int(KeyRefreshRateBattery, s.rates.Battery).
		Msg("Settings loaded")

	return s, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault(KeyRefreshRateAC, DefaultRefreshRateAC)
	v.SetDefault(KeyRefreshRateBattery, DefaultRefreshRateBattery)

	return v
}

func ensureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return err
	}

	v := newViper(path)
	v.Set(KeyRefreshRateAC, DefaultRefreshRateAC)
	v.Set(KeyRefreshRateBattery, DefaultRefreshRateBattery)
	if err := v.WriteConfigAs(path); err != nil {
		return err
	}

	return os.Chmod(path, defaultFilePerm)
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) ACHz() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rates.AC
}

func (s *Store) BatteryHz() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rates.Battery
}

func (s *Store) Rates() RefreshRates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rates
}

// OnChange registers callback for changes of key.
func (s *Store) OnChange(key string, callback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callbacks[key] = append(s.callbacks[key], callback)
}

// Watch starts following the settings file for external edits.
func (s *Store) Watch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watching {
		return
	}

	// viper re-reads the file before invoking the callback
	s.v.OnConfigChange(func(e fsnotify.Event) {
		s.logger.Debug().Str("op", e.Op.String()).Str("file", e.Name).Msg("Settings file changed")
		if !s.v.InConfig(KeyRefreshRateAC) && !s.v.InConfig(KeyRefreshRateBattery) {
			// Truncated or half-written file; wait for the next event.
			s.logger.Debug().Str("file", e.Name).Msg("Settings file has no refresh rate keys, ignoring")
			return
		}
		s.update(s.load(s.v))
	})
	s.v.WatchConfig()
	s.watching = true
}

// Set validates hz, writes it to the settings file and notifies callbacks.
func (s *Store) Set(key string, hz int) error {
	errFactory := errors.New()

	if !IsKey(key) {
		return errFactory.WithData(errors.ErrInvalidArgument, key)
	}
	if clamped, changed := Clamp(hz); changed {
		return errFactory.WithData(errors.ErrInvalidSettings, struct {
			Key   string
			Value int
			Min   int
			Max   int
		}{key, hz, MinRefreshRate, MaxRefreshRate}).WithMessage(
			"refresh rate out of range, nearest allowed is " + strconv.Itoa(clamped))
	}

	// A separate viper instance keeps the write away from the watcher's reads.
	w := newViper(s.path)
	if err := w.ReadInConfig(); err != nil {
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}
	w.Set(key, hz)
	if err := writeAtomic(w, s.path); err != nil {
		return errFactory.Wrap(errors.ErrOperationFailed, err)
	}

	next := s.Rates()
	if key == KeyRefreshRateAC {
		next.AC = hz
	} else {
		next.Battery = hz
	}
	s.update(next)

	return nil
}

// writeAtomic writes v next to path and renames it into place, so readers
// never observe a truncated file.
func writeAtomic(v *viper.Viper, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}

	if err := v.WriteConfigAs(name); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, defaultFilePerm); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}

	return nil
}

func (s *Store) load(v *viper.Viper) RefreshRates {
	return RefreshRates{
		AC:      s.clamped(KeyRefreshRateAC, v.GetInt(KeyRefreshRateAC)),
		Battery: s.clamped(KeyRefreshRateBattery, v.GetInt(KeyRefreshRateBattery)),
	}
}

func (s *Store) clamped(key string, hz int) int {
	clamped, changed := Clamp(hz)
	if changed {
		s.logger.Warn().
			Str("error_code", string(errors.ErrInvalidSettings)).
			Str("key", key).
			Int("value", hz).
			Int("clamped", clamped).
			Msg("Refresh rate setting out of range")
	}

	return clamped
}

func (s *Store) update(next RefreshRates) {
	s.mu.Lock()
	previous := s.rates
	s.rates = next

	var fire []func()
	if previous.AC != next.AC {
		fire = append(fire, s.callbacks[KeyRefreshRateAC]...)
	}
	if previous.Battery != next.Battery {
		fire = append(fire, s.callbacks[KeyRefreshRateBattery]...)
	}
	s.mu.Unlock()

	for _, callback := range fire {
		callback()
	}
}
