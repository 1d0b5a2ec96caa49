package mqttbridge

import "errors"

var (
	// ErrMissingClient is returned by NewProvider without an MQTT client.
	ErrMissingClient = errors.New("mqttbridge: MQTT client is required")

	// ErrMissingSource is returned by NewProvider without a source name.
	ErrMissingSource = errors.New("mqttbridge: source is required")

	// ErrNotStarted is returned when a message arrives before Start.
	ErrNotStarted = errors.New("mqttbridge: provider not started")

	// ErrInvalidMessage wraps payloads that cannot be decoded or applied.
	ErrInvalidMessage = errors.New("mqttbridge: invalid message")

	// ErrCommandFailed is passed to error callbacks for failed acks.
	ErrCommandFailed = errors.New("mqttbridge: command failed")
)
