package power

import "codeberg.org/mutker/refreshd/internal/errors"

const (
	ErrConnection    = errors.ErrConnection
	ErrTimeout       = errors.ErrTimeout
	ErrReadProperty  = errors.ErrorCode("power_read_property_failed")
	ErrSubscribe     = errors.ErrorCode("power_subscribe_failed")
	ErrNotStarted    = errors.ErrorCode("power_watcher_not_started")
	ErrAlreadyClosed = errors.ErrorCode("power_watcher_closed")
)
