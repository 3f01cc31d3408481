package session

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Target identifies the broker endpoint. It is built once from
// configuration and never mutated.
type Target struct {
	Scheme string
	Host   string
	Port   int
}

// URL renders the target as scheme://host:port.
func (t Target) URL() string {
	return fmt.Sprintf("%s://%s", t.Scheme, net.JoinHostPort(t.Host, strconv.Itoa(t.Port)))
}

// String implements fmt.Stringer.
func (t Target) String() string {
	return t.URL()
}

// Message is one inbound PUBLISH as delivered by the session.
//
// MessageID is only meaningful for QoS 1 and 2.
type Message struct {
	Topic     string
	Payload   []byte
	QoS       byte
	Duplicate bool
	Retained  bool
	MessageID uint16
}

// Listener receives asynchronous events from a Session.
//
// Implementations must not block: OnInboundMessage is invoked from the
// session's delivery goroutine and delays every message behind it.
type Listener interface {
	OnInboundMessage(msg Message)
	OnDisconnected(reason error)
}

// Session is one connection to the broker.
type Session interface {
	// SetWindowSize bounds in-flight outbound publish-class operations.
	// It must be called before Connect.
	SetWindowSize(n int)

	// SetListener registers the event sink. It must be called before Connect.
	SetListener(l Listener)

	// Connect performs the transport connection and protocol handshake.
	Connect(ctx context.Context, clientID string, keepAlive time.Duration) error

	// Subscribe issues one subscription and returns the granted QoS.
	Subscribe(ctx context.Context, filter string, qos byte) (byte, error)

	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Dialer produces a fresh Session for each connection cycle.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Session, error)
}
