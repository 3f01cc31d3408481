// Package mqtt adapts paho.mqtt.golang to the session contract used by the
// monitor.
//
// This package manages:
//   - One paho client per connection cycle (Dialer/Session)
//   - Classification of CONNECT failures (transport vs. handshake refusal)
//   - Subscriptions and their granted QoS
//   - In-order delivery of inbound messages to a session.Listener
//   - Disconnect notification
//
// # Architecture
//
// paho's own reconnect machinery is switched off. The monitor's
// connection manager decides when to retry and always dials a brand new
// Session, so no client state leaks from one connection into the next.
//
//	ConnectionManager → Dialer.Dial → Session.Connect → Session.Subscribe
//	                                        ↓
//	                          Listener.OnInboundMessage / OnDisconnected
//
// # Security Considerations
//
//   - ssl:// and wss:// brokers use TLS 1.2 or newer
//   - Credentials come from the config file or MQTTMON_MQTT_USERNAME / MQTTMON_MQTT_PASSWORD
//   - Passwords are never logged
//
// # Usage
//
//	dialer := mqtt.NewDialer(cfg.MQTT)
//	sess, err := dialer.Dial(ctx, cfg.MQTT.BrokerTarget())
//	if err != nil {
//	    return err
//	}
//	sess.SetWindowSize(3)
//	sess.SetListener(listener)
//	if err := sess.Connect(ctx, "mqtt-monitor", time.Minute); err != nil {
//	    return err // errors.Is(err, session.ErrConnect) or session.ErrProtocol
//	}
//	defer sess.Close()
//	granted, err := sess.Subscribe(ctx, "#", 2)
package mqtt
