package display

import (
	"fmt"

	"codeberg.org/mutker/refreshd/internal/errors"
)

const (
	ErrConnection    = errors.ErrConnection
	ErrStateFetch    = errors.ErrStateFetch
	ErrStaleSnapshot = errors.ErrStaleSnapshot
	ErrNotFound      = errors.ErrNotFound
	ErrApplyFailed   = errors.ErrApplyFailed
	ErrTimeout       = errors.ErrTimeout

	ErrDecodeState   = errors.ErrorCode("display_decode_state_failed")
	ErrInvalidLayout = errors.ErrorCode("display_invalid_layout")
)

// NotFoundKind names what could not be found during selection.
type NotFoundKind string

const (
	NotFoundMonitor        NotFoundKind = "monitor"
	NotFoundMode           NotFoundKind = "mode"
	NotFoundLogicalMonitor NotFoundKind = "logical monitor"
)

// NotFound is the data carried by not_found errors.
type NotFound struct {
	Kind      NotFoundKind
	Connector Connector
	RateHz    int
}

func (n NotFound) String() string {
	if n.Kind == NotFoundMode {
		return fmt.Sprintf("no %dHz mode on %s", n.RateHz, n.Connector)
	}

	return fmt.Sprintf("%s %s", n.Kind, n.Connector)
}

func newNotFound(kind NotFoundKind, connector Connector, hz int) error {
	return errors.New().WithData(ErrNotFound, NotFound{Kind: kind, Connector: connector, RateHz: hz})
}

// AsNotFound extracts the NotFound details from err.
func AsNotFound(err error) (NotFound, bool) {
	var appErr errors.Error
	if !errors.As(err, &appErr) || appErr.Code() != ErrNotFound {
		return NotFound{}, false
	}
	nf, ok := appErr.GetData().(NotFound)

	return nf, ok
}
