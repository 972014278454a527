package rangefile

import (
	"errors"
	"fmt"
)

// operations reported in TransportError.Op
const (
	OpProbeSize = "probe-size"
	OpGetRange  = "get-range"
)

var (
	// ErrInvalidRange is returned for negative, inverted or past-EOF ranges.
	ErrInvalidRange = errors.New("rangefile: invalid range")
	// ErrClosed is returned by operations on a closed File.
	ErrClosed = errors.New("rangefile: file closed")
)

// TransportError is returned when the size probe or a range fetch fails,
// either because the remote answered with an unexpected status or because
// the request itself could not be completed.
type TransportError struct {
	Op         string // OpProbeSize or OpGetRange
	Locator    string
	StatusCode int    // 0 if no response was received
	Status     string // status line or remote error code
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.Status != "":
		return fmt.Sprintf("rangefile: %s %s: %s: %s", e.Op, e.Locator, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("rangefile: %s %s: %s", e.Op, e.Locator, e.Err)
	default:
		return fmt.Sprintf("rangefile: %s %s: unexpected status %s", e.Op, e.Locator, e.Status)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RangeNotCachedError is returned when reading an offset that was never
// successfully loaded. Seeing it means LoadRange was not called (or did not
// succeed) before the read.
type RangeNotCachedError struct {
	Offset int64
}

func (e *RangeNotCachedError) Error() string {
	return fmt.Sprintf("rangefile: offset %d is not cached", e.Offset)
}

// UnsupportedLocatorError is returned when no reader variant accepts a source.
type UnsupportedLocatorError struct {
	Locator any
}

func (e *UnsupportedLocatorError) Error() string {
	switch v := e.Locator.(type) {
	case string:
		return fmt.Sprintf("rangefile: unsupported locator %q", v)
	default:
		return fmt.Sprintf("rangefile: unsupported source of type %T", v)
	}
}
