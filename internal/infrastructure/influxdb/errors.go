package influxdb

import "errors"

// Sentinel errors, matched with errors.Is.
var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when the config section has
	// enabled: false; callers should skip telemetry rather than fail.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
