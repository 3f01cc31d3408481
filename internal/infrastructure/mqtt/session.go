package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mqttmon/internal/infrastructure/config"
	"github.com/nerrad567/mqttmon/internal/session"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// Dialer builds paho-backed sessions. It implements session.Dialer.
//
// Thread Safety:
//   - Dial is safe for concurrent use; every call returns an independent session.
type Dialer struct {
	cfg    config.MQTTConfig
	logger Logger

	// newClient constructs the paho client; replaced in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
}

// NewDialer creates a Dialer using the credentials, timeouts and TLS
// settings from cfg.
//
// Parameters:
//   - cfg: MQTT configuration from the config file
//
// Returns:
//   - *Dialer: Dialer ready to produce sessions
func NewDialer(cfg config.MQTTConfig) *Dialer {
	return &Dialer{
		cfg:       cfg,
		logger:    noopLogger{},
		newClient: pahomqtt.NewClient,
	}
}

// SetLogger sets a logger for session diagnostics.
func (d *Dialer) SetLogger(logger Logger) {
	d.logger = logger
}

// Dial validates target and returns a session that is not yet connected.
// No network traffic happens until Session.Connect.
//
// Parameters:
//   - ctx: Context for cancellation
//   - target: Broker endpoint
//
// Returns:
//   - session.Session: Fresh, unconnected session
//   - error: Wrapping session.ErrConnect if target is unusable
func (d *Dialer) Dial(ctx context.Context, target session.Target) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrConnect, err)
	}

	switch target.Scheme {
	case "tcp", "ssl", "ws", "wss":
	default:
		return nil, fmt.Errorf("%w: %w: unsupported scheme %q", session.ErrConnect, ErrInvalidEndpoint, target.Scheme)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("%w: %w: empty host", session.ErrConnect, ErrInvalidEndpoint)
	}
	if target.Port < 1 || target.Port > 65535 {
		return nil, fmt.Errorf("%w: %w: port %d out of range", session.ErrConnect, ErrInvalidEndpoint, target.Port)
	}

	return &Session{
		target:    target,
		cfg:       d.cfg,
		logger:    d.logger,
		newClient: d.newClient,
		window:    defaultWindowSize,
	}, nil
}

// Session is one paho client connection. It implements session.Session.
//
// A Session is single-use: once closed or disconnected it is discarded
// and the next connection cycle dials a new one.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Listener callbacks run on paho's goroutines.
type Session struct {
	target    session.Target
	cfg       config.MQTTConfig
	logger    Logger
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	mu       sync.RWMutex
	window   int
	listener session.Listener
	client   pahomqtt.Client
	closed   bool
}

// SetWindowSize bounds in-flight outbound publish operations.
// It takes effect on the next Connect.
func (s *Session) SetWindowSize(n int) {
	s.mu.Lock()
	s.window = n
	s.mu.Unlock()
}

// SetListener registers the sink for inbound messages and disconnects.
func (s *Session) SetListener(l session.Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

// Connect opens the transport and performs the MQTT handshake.
//
// Parameters:
//   - ctx: Context for cancellation; abandons the attempt when done
//   - clientID: Client identifier presented to the broker
//   - keepAlive: Protocol keep-alive interval
//
// Returns:
//   - error: session.ErrProtocol if the broker refused the CONNECT,
//     session.ErrConnect for every other failure
func (s *Session) Connect(ctx context.Context, clientID string, keepAlive time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return session.ErrClosed
	}
	if s.client != nil {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}

	opts := buildClientOptions(s.cfg, connectParams{
		target:    s.target,
		clientID:  clientID,
		keepAlive: keepAlive,
		window:    s.window,
	})
	opts.SetDefaultPublishHandler(s.handleMessage)
	opts.SetConnectionLostHandler(s.handleConnectionLost)

	client := s.newClient(opts)
	s.client = client
	s.mu.Unlock()

	token := client.Connect()
	select {
	case <-ctx.Done():
		client.Disconnect(0)
		return fmt.Errorf("%w: %w", session.ErrConnect, ctx.Err())
	case <-token.Done():
	}

	if err := token.Error(); err != nil {
		var code byte
		if rc, ok := token.(interface{ ReturnCode() byte }); ok {
			code = rc.ReturnCode()
		}
		return classifyConnectError(err, code)
	}

	s.logger.Debug("mqtt session established", "broker", s.target.URL(), "client_id", clientID)
	return nil
}

// Close disconnects from the broker. Calling it more than once, or on a
// session that never connected, is not an error.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	client := s.client
	s.mu.Unlock()

	if client != nil && client.IsConnectionOpen() {
		client.Disconnect(defaultDisconnectQuiesce)
	}
	return nil
}

// isConnected reports whether the underlying client has an open connection.
func (s *Session) isConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed && s.client != nil && s.client.IsConnectionOpen()
}

func (s *Session) getListener() session.Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener
}

// handleMessage converts a paho message and hands it to the listener.
// A panicking listener is logged and the delivery goroutine survives.
func (s *Session) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	listener := s.getListener()
	if listener == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("MQTT listener panic recovered",
				"topic", msg.Topic(),
				"panic", r,
			)
		}
	}()

	listener.OnInboundMessage(session.Message{
		Topic:     msg.Topic(),
		Payload:   msg.Payload(),
		QoS:       msg.Qos(),
		Duplicate: msg.Duplicate(),
		Retained:  msg.Retained(),
		MessageID: msg.MessageID(),
	})
}

// handleConnectionLost is called by paho when an established connection drops.
func (s *Session) handleConnectionLost(_ pahomqtt.Client, err error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return
	}

	if listener := s.getListener(); listener != nil {
		listener.OnDisconnected(fmt.Errorf("connection lost: %w", err))
	}
}

var (
	_ session.Dialer  = (*Dialer)(nil)
	_ session.Session = (*Session)(nil)
)
