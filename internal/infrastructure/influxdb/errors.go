package influxdb

import "errors"

// Traffic export errors. Check them with errors.Is.
var (
	// ErrDisabled is returned by Dial when export is switched off.
	ErrDisabled = errors.New("traffic export: disabled")

	// ErrUnreachable means the server did not answer the startup ping.
	ErrUnreachable = errors.New("traffic export: server unreachable")

	// ErrUnhealthy marks a reading that was dropped because the server
	// failed its health check.
	ErrUnhealthy = errors.New("traffic export: server unhealthy")

	// ErrRejected wraps batch failures reported by the async writer.
	ErrRejected = errors.New("traffic export: batch rejected")

	// ErrStopped is returned for an exporter that was closed or never
	// dialled.
	ErrStopped = errors.New("traffic export: stopped")
)
