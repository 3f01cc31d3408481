package monitor

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// JitterMode selects how a retry delay is drawn below its ceiling.
type JitterMode string

const (
	// JitterFull draws uniformly from [0, ceiling].
	JitterFull JitterMode = "full"

	// JitterEqual draws uniformly from [ceiling/2, ceiling].
	JitterEqual JitterMode = "equal"

	// JitterNone always waits the ceiling.
	JitterNone JitterMode = "none"
)

// ParseJitterMode converts a configuration string into a JitterMode.
func ParseJitterMode(s string) (JitterMode, error) {
	switch JitterMode(s) {
	case JitterFull, JitterEqual, JitterNone:
		return JitterMode(s), nil
	case "":
		return JitterFull, nil
	default:
		return "", fmt.Errorf("unknown jitter mode %q", s)
	}
}

// Backoff is the retry policy for failed connection attempts.
//
// The ceiling doubles from the initial delay up to the maximum; the actual
// delay is drawn below the ceiling according to the jitter mode. Ceilings
// never decrease until Reset is called.
type Backoff struct {
	schedule *backoff.ExponentialBackOff
	jitter   JitterMode
	random   func() float64
}

// NewBackoff creates a policy starting at initial and capped at maxDelay.
func NewBackoff(initial, maxDelay time.Duration, jitter JitterMode) *Backoff {
	if initial <= 0 {
		initial = defaultInitialDelay
	}
	if maxDelay < initial {
		maxDelay = initial
	}

	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = initial
	schedule.MaxInterval = maxDelay
	schedule.Multiplier = 2
	schedule.RandomizationFactor = 0
	schedule.Reset()

	return &Backoff{
		schedule: schedule,
		jitter:   jitter,
		random:   rand.Float64,
	}
}

// Next returns the delay to wait before the next attempt together with the
// ceiling it was drawn from, and advances the schedule.
func (b *Backoff) Next() (delay, ceiling time.Duration) {
	ceiling = b.schedule.NextBackOff()
	if ceiling == backoff.Stop || ceiling > b.schedule.MaxInterval {
		ceiling = b.schedule.MaxInterval
	}

	switch b.jitter {
	case JitterNone:
		return ceiling, ceiling
	case JitterEqual:
		half := ceiling / 2
		return half + time.Duration(b.random()*float64(ceiling-half)), ceiling
	default:
		return time.Duration(b.random() * float64(ceiling)), ceiling
	}
}

// Reset returns the schedule to the initial delay.
func (b *Backoff) Reset() {
	b.schedule.Reset()
}
