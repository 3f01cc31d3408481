package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/mqttmon/internal/session"
)

// attempt scripts the outcome of one Dial call and the session it yields.
type attempt struct {
	dialErr      error
	connectErr   error
	subscribeErr error
	granted      byte
}

// fakeDialer hands out fakeSessions following a script. Once the script is
// exhausted every attempt succeeds with QoS 2 granted.
type fakeDialer struct {
	mu       sync.Mutex
	script   []attempt
	dials    int
	sessions []*fakeSession
	open     int
	maxOpen  int

	// subscribed receives each session after its Subscribe call.
	subscribed chan *fakeSession
}

func newFakeDialer(script ...attempt) *fakeDialer {
	return &fakeDialer{
		script:     script,
		subscribed: make(chan *fakeSession, 32),
	}
}

func (d *fakeDialer) Dial(ctx context.Context, _ session.Target) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	next := attempt{granted: 2}
	if len(d.script) > 0 {
		next = d.script[0]
		d.script = d.script[1:]
	}
	if next.dialErr != nil {
		return nil, next.dialErr
	}

	s := &fakeSession{dialer: d, plan: next}
	d.sessions = append(d.sessions, s)
	d.open++
	if d.open > d.maxOpen {
		d.maxOpen = d.open
	}
	return s, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) sessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *fakeDialer) peakOpen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxOpen
}

// nextSubscribed waits for the next session to reach Subscribe.
func (d *fakeDialer) nextSubscribed(t *testing.T) *fakeSession {
	t.Helper()
	select {
	case s := <-d.subscribed:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a subscribed session")
		return nil
	}
}

type fakeSession struct {
	dialer *fakeDialer
	plan   attempt

	mu        sync.Mutex
	window    int
	listener  session.Listener
	clientID  string
	keepAlive time.Duration
	filter    string
	qos       byte
	closed    bool
	closes    int
}

func (s *fakeSession) SetWindowSize(n int) {
	s.mu.Lock()
	s.window = n
	s.mu.Unlock()
}

func (s *fakeSession) SetListener(l session.Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

func (s *fakeSession) Connect(_ context.Context, clientID string, keepAlive time.Duration) error {
	s.mu.Lock()
	s.clientID = clientID
	s.keepAlive = keepAlive
	s.mu.Unlock()
	return s.plan.connectErr
}

func (s *fakeSession) Subscribe(_ context.Context, filter string, qos byte) (byte, error) {
	s.mu.Lock()
	s.filter = filter
	s.qos = qos
	s.mu.Unlock()

	defer func() { s.dialer.subscribed <- s }()

	if s.plan.subscribeErr != nil {
		return 0, s.plan.subscribeErr
	}
	return s.plan.granted, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closes++
	wasClosed := s.closed
	s.closed = true
	s.mu.Unlock()

	if !wasClosed {
		s.dialer.mu.Lock()
		s.dialer.open--
		s.dialer.mu.Unlock()
	}
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) currentListener() session.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}

// disconnect simulates the broker dropping the connection.
func (s *fakeSession) disconnect(reason error) {
	if l := s.currentListener(); l != nil {
		l.OnDisconnected(reason)
	}
}

// deliver simulates an inbound PUBLISH.
func (s *fakeSession) deliver(msg session.Message) {
	if l := s.currentListener(); l != nil {
		l.OnInboundMessage(msg)
	}
}

// waitRecorder replaces Manager.wait and records requested delays
// without sleeping.
type waitRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (w *waitRecorder) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.delays = append(w.delays, d)
	w.mu.Unlock()
	return ctx.Err()
}

func (w *waitRecorder) recorded() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.delays...)
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
