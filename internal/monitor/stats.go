package monitor

import "sync/atomic"

// Stats counts traffic and connection events. The zero value is ready to
// use and all methods are safe for concurrent use.
type Stats struct {
	messages       atomic.Uint64
	payloadBytes   atomic.Uint64
	decodeFailures atomic.Uint64
	attempts       atomic.Uint64
	failures       atomic.Uint64
	disconnects    atomic.Uint64
	subscribed     atomic.Uint64
	subscribeFails atomic.Uint64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Messages           uint64
	PayloadBytes       uint64
	DecodeFailures     uint64
	ConnectAttempts    uint64
	FailedAttempts     uint64
	Disconnects        uint64
	Subscriptions      uint64
	SubscriptionErrors uint64
}

// Snapshot copies the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Messages:           s.messages.Load(),
		PayloadBytes:       s.payloadBytes.Load(),
		DecodeFailures:     s.decodeFailures.Load(),
		ConnectAttempts:    s.attempts.Load(),
		FailedAttempts:     s.failures.Load(),
		Disconnects:        s.disconnects.Load(),
		Subscriptions:      s.subscribed.Load(),
		SubscriptionErrors: s.subscribeFails.Load(),
	}
}

func (s *Stats) recordMessage(size int, decoded bool) {
	s.messages.Add(1)
	s.payloadBytes.Add(uint64(size)) // #nosec G115 -- len() is never negative
	if !decoded {
		s.decodeFailures.Add(1)
	}
}
