package monitor

import "errors"

var (
	// ErrAlreadyRunning is returned when Run is called on a Manager that is
	// already running.
	ErrAlreadyRunning = errors.New("monitor: manager already running")

	// ErrConnectionClosed is reported as the disconnect reason when a
	// session goes away without giving one.
	ErrConnectionClosed = errors.New("monitor: connection closed by session")
)
