package session

import "errors"

// Error taxonomy for session operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnect is returned when the broker cannot be reached or the
	// transport connection is refused or dropped during setup.
	ErrConnect = errors.New("session: connect failed")

	// ErrProtocol is returned when the transport connected but the broker
	// rejected the protocol handshake (CONNACK refusal).
	ErrProtocol = errors.New("session: handshake rejected")

	// ErrSubscribe is returned when the broker rejects or fails to
	// acknowledge a subscription.
	ErrSubscribe = errors.New("session: subscribe failed")

	// ErrClosed is returned when an operation is attempted on a closed session.
	ErrClosed = errors.New("session: closed")
)

// IsRetryable reports whether err is a connection-phase failure that the
// reconnect loop should absorb.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConnect) || errors.Is(err, ErrProtocol)
}
