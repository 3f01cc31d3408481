package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mqttmon/internal/infrastructure/config"
	"github.com/nerrad567/mqttmon/internal/session"
)

// fakeToken is a paho token completed by the test.
type fakeToken struct {
	pahomqtt.Token
	done chan struct{}
	err  error
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

type fakeConnectToken struct {
	*fakeToken
	code byte
}

func (t *fakeConnectToken) ReturnCode() byte { return t.code }

type fakeSubscribeToken struct {
	*fakeToken
	result map[string]byte
}

func (t *fakeSubscribeToken) Result() map[string]byte { return t.result }

// fakeClient records what the session asks of paho.
type fakeClient struct {
	pahomqtt.Client

	mu           sync.Mutex
	opts         *pahomqtt.ClientOptions
	connectToken pahomqtt.Token
	subToken     pahomqtt.Token
	open         bool
	disconnects  int
	subscribed   []string
}

func (c *fakeClient) Connect() pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectToken == nil {
		c.open = true
		return newFakeToken(nil, true)
	}
	return c.connectToken
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.disconnects++
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) Subscribe(topic string, _ byte, _ pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, topic)
	return c.subToken
}

func (c *fakeClient) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// fakeMessage is an inbound paho PUBLISH.
type fakeMessage struct {
	pahomqtt.Message
	topic    string
	payload  []byte
	qos      byte
	dup      bool
	retained bool
	id       uint16
}

func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Qos() byte         { return m.qos }
func (m *fakeMessage) Duplicate() bool   { return m.dup }
func (m *fakeMessage) Retained() bool    { return m.retained }
func (m *fakeMessage) MessageID() uint16 { return m.id }

// recordingListener collects session events.
type recordingListener struct {
	mu       sync.Mutex
	messages []session.Message
	reasons  []error
	panicOn  string
}

func (l *recordingListener) OnInboundMessage(msg session.Message) {
	if l.panicOn != "" && msg.Topic == l.panicOn {
		panic("listener exploded")
	}
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
}

func (l *recordingListener) OnDisconnected(reason error) {
	l.mu.Lock()
	l.reasons = append(l.reasons, reason)
	l.mu.Unlock()
}

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	cfg := config.Default().MQTT
	cfg.Broker.Host = "127.0.0.1"
	cfg.Broker.ClientID = "mqttmon-test"
	return cfg
}

// newFakeSession dials a session whose paho client is fake.
func newFakeSession(t *testing.T, client *fakeClient) *Session {
	t.Helper()

	d := NewDialer(testConfig())
	d.newClient = func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
		client.mu.Lock()
		client.opts = opts
		client.mu.Unlock()
		return client
	}

	sess, err := d.Dial(context.Background(), session.Target{Scheme: "tcp", Host: "127.0.0.1", Port: 1883})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	return sess.(*Session)
}
