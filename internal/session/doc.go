// Package session defines the contract between the connection manager and
// the transport library that speaks MQTT on the wire.
//
// The manager never touches a concrete client. It asks a Dialer for a new
// Session per connection cycle, performs the protocol handshake through it,
// subscribes, and learns about inbound messages and connection loss through
// a Listener registered on that Session.
//
// # Lifecycle
//
//	sess, err := dialer.Dial(ctx, target)      // ErrConnect
//	sess.SetWindowSize(3)
//	sess.SetListener(listener)
//	err = sess.Connect(ctx, clientID, 60*time.Second) // ErrConnect | ErrProtocol
//	granted, err := sess.Subscribe(ctx, "#", 2)       // ErrSubscribe
//	...
//	sess.Close()
//
// A Session is single-use. Once it has reported OnDisconnected or has been
// closed it must be discarded; reconnecting means dialing a new one.
package session
