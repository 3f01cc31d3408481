package monitor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/nerrad567/mqttmon/internal/display"
	"github.com/nerrad567/mqttmon/internal/session"
)

// Subscription defaults.
const (
	// AllTopics is the multi-level wildcard matching every topic.
	AllTopics = "#"

	// DefaultQoS requests exactly-once delivery.
	DefaultQoS byte = 2

	// DefaultWindowSize bounds in-flight outbound publish operations.
	DefaultWindowSize = 3
)

// SubscriptionConfig describes the one subscription issued per session.
type SubscriptionConfig struct {
	Topic      string
	QoS        byte
	WindowSize int
}

// DefaultSubscriptionConfig subscribes to every topic at QoS 2.
func DefaultSubscriptionConfig() SubscriptionConfig {
	return SubscriptionConfig{
		Topic:      AllTopics,
		QoS:        DefaultQoS,
		WindowSize: DefaultWindowSize,
	}
}

// SubscriptionHandler sets up each new session and turns its inbound
// messages into terminal output.
//
// Thread Safety:
//   - Attach, Detach and OnConnected are called from the manager goroutine.
//   - Listener callbacks may arrive on the session's own goroutines.
type SubscriptionHandler struct {
	cfg       SubscriptionConfig
	formatter *display.Formatter
	logger    Logger
	stats     *Stats

	out   io.Writer
	outMu sync.Mutex

	mu      sync.Mutex
	current *binding
}

// binding ties listener callbacks to exactly one session. Once released it
// ignores everything the session reports.
type binding struct {
	handler  *SubscriptionHandler
	sess     session.Session
	onLost   func(reason error)
	released atomic.Bool
}

// NewSubscriptionHandler creates a handler writing formatted messages to out.
// A nil formatter is replaced by a colorless one.
func NewSubscriptionHandler(cfg SubscriptionConfig, formatter *display.Formatter, out io.Writer) *SubscriptionHandler {
	if cfg.Topic == "" {
		cfg.Topic = AllTopics
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if formatter == nil {
		formatter = display.NewFormatter(false)
	}
	return &SubscriptionHandler{
		cfg:       cfg,
		formatter: formatter,
		out:       out,
		logger:    noopLogger{},
		stats:     &Stats{},
	}
}

// SetLogger sets the logger for status lines.
func (h *SubscriptionHandler) SetLogger(logger Logger) {
	h.logger = logger
}

// setStats shares the manager's counters with the handler.
func (h *SubscriptionHandler) setStats(stats *Stats) {
	h.stats = stats
}

// Attach prepares a freshly dialed session: it sets the outbound window
// and registers the listener. onLost is invoked at most once, when this
// session reports a disconnect while still attached.
func (h *SubscriptionHandler) Attach(sess session.Session, onLost func(reason error)) {
	b := &binding{handler: h, sess: sess, onLost: onLost}

	h.mu.Lock()
	if h.current != nil {
		h.current.released.Store(true)
	}
	h.current = b
	h.mu.Unlock()

	sess.SetWindowSize(h.cfg.WindowSize)
	sess.SetListener(b)
}

// Detach releases the current session. Events it reports afterwards are
// dropped.
func (h *SubscriptionHandler) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		h.current.released.Store(true)
		h.current = nil
	}
}

// OnConnected issues the subscription on the attached session and returns
// the granted QoS. A failure is logged and returned; the session is left
// open.
func (h *SubscriptionHandler) OnConnected(ctx context.Context) (byte, error) {
	h.mu.Lock()
	b := h.current
	h.mu.Unlock()
	if b == nil || b.released.Load() {
		return 0, fmt.Errorf("%w: no session attached", session.ErrClosed)
	}

	h.logger.Info("subscribing", "topic", h.cfg.Topic, "qos", h.cfg.QoS)

	granted, err := b.sess.Subscribe(ctx, h.cfg.Topic, h.cfg.QoS)
	if err != nil {
		h.stats.subscribeFails.Add(1)
		h.logger.Error("subscription failed", "topic", h.cfg.Topic, "error", err)
		return 0, err
	}

	h.stats.subscribed.Add(1)
	h.logger.Info("subscription granted", "topic", h.cfg.Topic, "granted_qos", granted)
	return granted, nil
}

// release detaches b if it is still current. It reports whether b was
// current.
func (h *SubscriptionHandler) release(b *binding) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != b || b.released.Load() {
		return false
	}
	b.released.Store(true)
	h.current = nil
	return true
}

// display formats msg and writes it with a single write call.
func (h *SubscriptionHandler) display(msg session.Message) {
	text := h.render(msg)
	h.stats.recordMessage(len(msg.Payload), utf8.Valid(msg.Payload))

	h.outMu.Lock()
	_, err := io.WriteString(h.out, text)
	h.outMu.Unlock()
	if err != nil {
		h.logger.Debug("writing message failed", "topic", msg.Topic, "error", err)
	}
}

// renderFailure is written in place of a message the formatter could not
// render. It is plain text so it cannot fail itself.
const renderFailure = display.DecodeErrorPlaceholder + "\n"

// render never panics; a formatter panic degrades to renderFailure.
func (h *SubscriptionHandler) render(msg session.Message) (text string) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("formatting panic recovered", "topic", msg.Topic, "panic", r)
			text = renderFailure
		}
	}()
	return h.formatter.FormatMessage(msg)
}

// OnInboundMessage implements session.Listener.
func (b *binding) OnInboundMessage(msg session.Message) {
	if b.released.Load() {
		return
	}
	b.handler.display(msg)
}

// OnDisconnected implements session.Listener.
func (b *binding) OnDisconnected(reason error) {
	if !b.handler.release(b) {
		return
	}
	if b.onLost != nil {
		b.onLost(reason)
	}
}
