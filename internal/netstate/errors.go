package netstate

import "errors"

var (
	// ErrDispatcherStopped is returned when posting to a dispatcher whose
	// run loop has exited.
	ErrDispatcherStopped = errors.New("netstate: dispatcher stopped")

	// ErrUnknownManagedType is returned when parsing an unrecognised kind.
	ErrUnknownManagedType = errors.New("netstate: unknown managed type")

	ErrUnknownTechnologyState = errors.New("netstate: unknown technology state")
)
