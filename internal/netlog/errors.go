package netlog

import "errors"

var (
	// ErrUnknownLevel is returned when parsing an unrecognised level name.
	ErrUnknownLevel = errors.New("netlog: unknown level")

	// ErrSinkClosed is returned when writing to a closed sink.
	ErrSinkClosed = errors.New("netlog: sink closed")
)
