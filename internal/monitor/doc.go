// Package monitor keeps an MQTT monitor connected to its broker.
//
// This package manages:
//   - The connection state machine and its retry policy (Manager)
//   - Session setup and the all-topics subscription (SubscriptionHandler)
//   - Rendering of inbound messages to the operator's terminal
//   - Traffic counters (Stats)
//
// # Architecture
//
//	Manager ── Dial ──▶ session.Session ◀── Attach ── SubscriptionHandler
//	   ▲                     │                              │
//	   └──── onLost ◀────────┴── OnDisconnected             └─▶ display.Formatter ─▶ stdout
//
// Manager.Run is the only long-lived goroutine. It owns exactly one
// Session at a time and waits, in order, for the dial, the handshake, the
// subscription grant, and finally the disconnect notification. Failed
// connection attempts back off exponentially with jitter; a connection
// that reached the broker resets the backoff, so the first retry after a
// dropped connection waits the initial delay.
//
// # Failure Handling
//
//   - Dial and handshake failures are retried forever.
//   - A rejected subscription is logged and the session is kept open.
//   - Undecodable payloads are replaced by a placeholder line.
//
// # Usage
//
//	handler := monitor.NewSubscriptionHandler(subCfg, display.NewFormatter(true), os.Stdout)
//	manager := monitor.NewManager(mgrCfg, mqtt.NewDialer(cfg.MQTT), handler)
//	manager.SetLogger(log)
//	if err := manager.Run(ctx); err != nil {
//	    return err
//	}
package monitor
