package mqtt

import "errors"

// Domain-specific errors for the paho adapter.
// Connection and subscription failures are additionally wrapped with the
// session error taxonomy (session.ErrConnect, session.ErrProtocol,
// session.ErrSubscribe), which is what callers should test with errors.Is().
var (
	// ErrInvalidEndpoint is returned by Dial when the target cannot be
	// turned into a broker URL.
	ErrInvalidEndpoint = errors.New("mqtt: invalid broker endpoint")

	// ErrAlreadyConnected is returned when Connect is called twice on the
	// same session.
	ErrAlreadyConnected = errors.New("mqtt: session already connected")

	// ErrSubscriptionRejected is returned when the broker answers a
	// SUBSCRIBE with the failure return code 0x80.
	ErrSubscriptionRejected = errors.New("mqtt: subscription rejected by broker")

	// ErrTimeout is returned when an operation is abandoned before the
	// broker answered.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
