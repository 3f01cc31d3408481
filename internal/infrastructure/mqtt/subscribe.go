package mqtt

import (
	"context"
	"fmt"

	"github.com/nerrad567/mqttmon/internal/session"
)

// Subscribe issues one subscription and waits for the SUBACK.
//
// Inbound messages matching filter are delivered to the listener
// registered with SetListener, in arrival order.
//
// Parameters:
//   - ctx: Context for cancellation
//   - filter: Topic filter, wildcards allowed
//   - qos: Maximum QoS level requested (0, 1, or 2)
//
// Returns:
//   - byte: QoS granted by the broker
//   - error: Wrapping session.ErrSubscribe on failure or rejection
func (s *Session) Subscribe(ctx context.Context, filter string, qos byte) (byte, error) {
	if err := session.ValidateFilter(filter); err != nil {
		return 0, fmt.Errorf("%w: %w", session.ErrSubscribe, err)
	}
	if qos > 2 {
		return 0, fmt.Errorf("%w: invalid QoS %d", session.ErrSubscribe, qos)
	}

	// A SUBSCRIBE on a dropped connection would sit in paho's queue.
	if !s.isConnected() {
		return 0, fmt.Errorf("%w: %w", session.ErrSubscribe, session.ErrClosed)
	}
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	token := client.Subscribe(filter, qos, s.handleMessage)
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %w: %w", session.ErrSubscribe, ErrTimeout, ctx.Err())
	case <-token.Done():
	}

	if err := token.Error(); err != nil {
		return 0, fmt.Errorf("%w: %w", session.ErrSubscribe, err)
	}

	granted := qos
	if result, ok := token.(interface{ Result() map[string]byte }); ok {
		if code, found := result.Result()[filter]; found {
			granted = code
		}
	}
	if granted == subscribeFailure {
		return 0, fmt.Errorf("%w: %w: %s", session.ErrSubscribe, ErrSubscriptionRejected, filter)
	}

	return granted, nil
}
