package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/mqttmon/internal/session"
)

// Connection defaults.
const (
	// DefaultClientID identifies the monitor to the broker.
	DefaultClientID = "mqtt-monitor"

	// DefaultKeepAlive is the protocol keep-alive interval.
	DefaultKeepAlive = 60 * time.Second

	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 60 * time.Second
)

// ManagerConfig is the immutable configuration of a Manager.
type ManagerConfig struct {
	Target    session.Target
	ClientID  string
	KeepAlive time.Duration

	// InitialDelay and MaxDelay bound the retry backoff ceiling.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       JitterMode
}

// Manager keeps one session to the broker alive for as long as Run is
// running.
//
// Thread Safety:
//   - Run must be called at most once at a time.
//   - State, Stats and the setters are safe for concurrent use.
type Manager struct {
	cfg     ManagerConfig
	dialer  session.Dialer
	handler *SubscriptionHandler
	backoff *Backoff
	stats   *Stats
	logger  Logger

	mu      sync.RWMutex
	state   State
	sess    session.Session
	onState func(from, to State)

	// lost carries disconnect reasons from the attached session.
	lost    chan error
	running atomic.Bool

	// wait blocks for a retry delay; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewManager creates a Manager in the Disconnected state. Zero values in
// cfg are replaced by the defaults.
func NewManager(cfg ManagerConfig, dialer session.Dialer, handler *SubscriptionHandler) *Manager {
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.Jitter == "" {
		cfg.Jitter = JitterFull
	}

	stats := &Stats{}
	handler.setStats(stats)

	return &Manager{
		cfg:     cfg,
		dialer:  dialer,
		handler: handler,
		backoff: NewBackoff(cfg.InitialDelay, cfg.MaxDelay, cfg.Jitter),
		stats:   stats,
		logger:  noopLogger{},
		state:   StateDisconnected,
		lost:    make(chan error, 1),
		wait:    sleepContext,
	}
}

// SetLogger sets the logger for status lines.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetOnStateChange registers a callback invoked after every state
// transition. It runs on the manager goroutine and must not block.
func (m *Manager) SetOnStateChange(callback func(from, to State)) {
	m.mu.Lock()
	m.onState = callback
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Stats returns a snapshot of the traffic counters.
func (m *Manager) Stats() Snapshot {
	return m.stats.Snapshot()
}

// Target returns the broker endpoint this manager connects to.
func (m *Manager) Target() session.Target {
	return m.cfg.Target
}

// ClientID returns the client identifier presented on every connection.
func (m *Manager) ClientID() string {
	return m.cfg.ClientID
}

// Run connects to the broker and keeps reconnecting until ctx is
// cancelled. Connect and handshake failures (session.IsRetryable) are
// retried with backoff; any other error closes the session and is
// returned. On cancellation the active session is closed and Run returns
// nil.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	m.logger.Info("connection manager started",
		"broker", m.cfg.Target.URL(),
		"client_id", m.cfg.ClientID,
	)

	for {
		if ctx.Err() != nil {
			return m.shutdown()
		}

		if err := m.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return m.shutdown()
			}
			if !session.IsRetryable(err) {
				m.stats.failures.Add(1)
				m.logger.Error("connection attempt failed permanently",
					"broker", m.cfg.Target.URL(),
					"error", err,
				)
				_ = m.shutdown()
				return fmt.Errorf("connecting to %s: %w", m.cfg.Target.URL(), err)
			}
			if waitErr := m.retryAfter(ctx, err); waitErr != nil {
				return m.shutdown()
			}
			continue
		}

		// Only failed attempts accumulate backoff.
		m.backoff.Reset()

		m.subscribe(ctx)

		reason := m.awaitDisconnect(ctx)
		if ctx.Err() != nil {
			return m.shutdown()
		}

		m.setState(StateConnecting)
		m.closeSession()
		m.stats.disconnects.Add(1)
		m.logger.Warn("connection lost, reconnecting",
			"broker", m.cfg.Target.URL(),
			"reason", reason,
		)
	}
}

// connect dials a new session, attaches the handler and performs the
// handshake. On failure no session is left behind.
func (m *Manager) connect(ctx context.Context) error {
	m.setState(StateConnecting)
	m.drainLost()

	attempt := m.stats.attempts.Add(1)
	m.logger.Info("connecting", "broker", m.cfg.Target.URL(), "attempt", attempt)

	sess, err := m.dialer.Dial(ctx, m.cfg.Target)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.sess = sess
	m.mu.Unlock()

	m.handler.Attach(sess, m.notifyLost)

	if err := sess.Connect(ctx, m.cfg.ClientID, m.cfg.KeepAlive); err != nil {
		m.closeSession()
		return err
	}

	m.logger.Info("connected", "broker", m.cfg.Target.URL(), "client_id", m.cfg.ClientID)
	return nil
}

// retryAfter records a failed attempt and waits the next backoff delay.
func (m *Manager) retryAfter(ctx context.Context, cause error) error {
	m.stats.failures.Add(1)
	m.setState(StateFailed)

	delay, ceiling := m.backoff.Next()
	m.logger.Warn("connection attempt failed",
		"broker", m.cfg.Target.URL(),
		"error", cause,
		"retry_in", delay.Round(time.Millisecond).String(),
		"backoff_ceiling", ceiling.String(),
	)

	return m.wait(ctx, delay)
}

// subscribe runs the post-connect subscription. A rejected subscription
// keeps the session open in the Subscribing state.
func (m *Manager) subscribe(ctx context.Context) {
	m.setState(StateSubscribing)

	if _, err := m.handler.OnConnected(ctx); err != nil {
		m.logger.Warn("connected without an active subscription", "error", err)
		return
	}

	m.setState(StateSubscribed)
}

// awaitDisconnect blocks until the session reports a disconnect or ctx is
// cancelled.
func (m *Manager) awaitDisconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case reason := <-m.lost:
		return reason
	}
}

// notifyLost is the onLost callback handed to the SubscriptionHandler.
func (m *Manager) notifyLost(reason error) {
	if reason == nil {
		reason = ErrConnectionClosed
	}
	select {
	case m.lost <- reason:
	default:
	}
}

// drainLost discards notifications left over from a previous session.
func (m *Manager) drainLost() {
	for {
		select {
		case <-m.lost:
		default:
			return
		}
	}
}

// closeSession detaches the handler and closes the owned session, if any.
func (m *Manager) closeSession() {
	m.handler.Detach()

	m.mu.Lock()
	sess := m.sess
	m.sess = nil
	m.mu.Unlock()

	if sess == nil {
		return
	}
	if err := sess.Close(); err != nil {
		m.logger.Debug("closing session", "error", err)
	}
}

// shutdown closes the active session and parks the manager.
func (m *Manager) shutdown() error {
	m.closeSession()
	m.setState(StateDisconnected)
	m.logger.Info("connection manager stopped", "broker", m.cfg.Target.URL())
	return nil
}

func (m *Manager) setState(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	callback := m.onState
	m.mu.Unlock()

	if from == to {
		return
	}
	m.logger.Debug("state changed", "from", from, "to", to)
	if callback != nil {
		callback(from, to)
	}
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
