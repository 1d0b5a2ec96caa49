package bridgeproc

import "errors"

var (
	// ErrMissingCommand is returned by New without a bridge command.
	ErrMissingCommand = errors.New("bridgeproc: bridge command is required")

	// ErrAlreadyRunning is returned by Start while the bridge is supervised.
	ErrAlreadyRunning = errors.New("bridgeproc: bridge already running")

	// ErrStartFailed wraps a failure to launch the bridge.
	ErrStartFailed = errors.New("bridgeproc: bridge failed to start")

	// ErrUnexpectedExit is recorded when the bridge exits cleanly without
	// being asked to.
	ErrUnexpectedExit = errors.New("bridgeproc: bridge exited unexpectedly")

	// ErrNotRunning is returned by HealthCheck when the bridge is down.
	ErrNotRunning = errors.New("bridgeproc: bridge not running")
)
