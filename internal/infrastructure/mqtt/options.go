package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/mqttmon/internal/infrastructure/config"
	"github.com/nerrad567/mqttmon/internal/session"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds one connection attempt when the
	// configuration leaves it unset.
	defaultConnectTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultWindowSize matches the monitor's subscription default.
	defaultWindowSize = 3

	// subscribeFailure is the SUBACK return code for a refused filter.
	subscribeFailure = 0x80

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// connectParams are the per-attempt values that are not part of the
// static configuration.
type connectParams struct {
	target    session.Target
	clientID  string
	keepAlive time.Duration
	window    int
}

// buildClientOptions creates paho MQTT options for one connection attempt.
//
// This configures:
//   - Broker URL (tcp, ssl, ws or wss)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Clean session mode
//   - No automatic reconnection (the monitor owns the retry loop)
//   - In-order delivery and the outbound in-flight window
//   - TLS configuration for ssl and wss
func buildClientOptions(cfg config.MQTTConfig, p connectParams) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(p.target.URL())
	opts.SetClientID(p.clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session - no broker-side state survives a reconnect
	opts.SetCleanSession(true)
	opts.SetResumeSubs(false)

	// Reconnection is driven from outside so every attempt gets a fresh session
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	timeout := cfg.GetConnectTimeout()
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	opts.SetConnectTimeout(timeout)
	opts.SetKeepAlive(p.keepAlive)

	window := p.window
	if window <= 0 {
		window = defaultWindowSize
	}
	// paho has no outbound receive-maximum window; this only bounds the
	// in-flight publishes resumed from the store after a reconnect.
	opts.SetMaxResumePubInFlight(window)

	// One delivery goroutine keeps display order equal to arrival order
	opts.SetOrderMatters(true)

	if p.target.Scheme == "ssl" || p.target.Scheme == "wss" {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
			ServerName: p.target.Host,
		})
	}

	return opts
}

// refusals are the CONNACK return codes a broker sends when it accepted
// the transport but refused the handshake.
var refusals = []error{
	packets.ErrorRefusedBadProtocolVersion,
	packets.ErrorRefusedIDRejected,
	packets.ErrorRefusedServerUnavailable,
	packets.ErrorRefusedBadUsernameOrPassword,
	packets.ErrorRefusedNotAuthorised,
}

// classifyConnectError maps a failed CONNECT to the session taxonomy.
// returnCode is the CONNACK code when one was received.
func classifyConnectError(err error, returnCode byte) error {
	if returnCode >= packets.ErrRefusedBadProtocolVersion && returnCode <= packets.ErrRefusedNotAuthorised {
		return wrapConnectError(session.ErrProtocol, err, returnCode)
	}
	for _, refusal := range refusals {
		if errors.Is(err, refusal) {
			return wrapConnectError(session.ErrProtocol, err, returnCode)
		}
	}
	return wrapConnectError(session.ErrConnect, err, returnCode)
}

func wrapConnectError(kind, err error, returnCode byte) error {
	if err == nil {
		err = packets.ConnErrors[returnCode]
	}
	if err == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, err)
}
