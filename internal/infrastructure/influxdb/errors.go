package influxdb

import "errors"

var (
	ErrDisabled         = errors.New("influxdb: disabled")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrUnhealthy        = errors.New("influxdb: server reports unhealthy")
	ErrNotConnected     = errors.New("influxdb: client closed")

	// ErrWriteFailed wraps errors reported by the batched write API.
	ErrWriteFailed = errors.New("influxdb: batch write failed")
)
