package shill

import "errors"

var (
	// ErrNotStarted is returned when requests are made before Start.
	ErrNotStarted = errors.New("shill: provider not started")

	// ErrBusUnavailable wraps failures to reach the system bus.
	ErrBusUnavailable = errors.New("shill: system bus unavailable")

	// ErrUnexpectedSignal is logged for PropertyChanged signals with an
	// unexpected body.
	ErrUnexpectedSignal = errors.New("shill: unexpected signal body")
)
