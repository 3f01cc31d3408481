package monitor

import (
	"testing"
	"time"
)

func TestBackoff_CeilingDoublesToCap(t *testing.T) {
	b := NewBackoff(time.Second, 30*time.Second, JitterNone)

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		delay, ceiling := b.Next()
		if ceiling != w {
			t.Errorf("attempt %d: ceiling = %v, want %v", i+1, ceiling, w)
		}
		if delay != ceiling {
			t.Errorf("attempt %d: delay = %v, want ceiling with no jitter", i+1, delay)
		}
	}
}

func TestBackoff_ResetReturnsToInitial(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute, JitterNone)
	b.Next()
	b.Next()
	b.Next()

	b.Reset()
	if delay, ceiling := b.Next(); delay != time.Second || ceiling != time.Second {
		t.Errorf("after Reset: delay = %v, ceiling = %v, want 1s, 1s", delay, ceiling)
	}
}

func TestBackoff_CeilingNonDecreasingWithJitter(t *testing.T) {
	for _, mode := range []JitterMode{JitterFull, JitterEqual} {
		t.Run(string(mode), func(t *testing.T) {
			b := NewBackoff(time.Second, time.Minute, mode)
			var prev time.Duration
			for i := 0; i < 20; i++ {
				delay, ceiling := b.Next()
				if ceiling < prev {
					t.Fatalf("attempt %d: ceiling %v decreased from %v", i+1, ceiling, prev)
				}
				if delay < 0 || delay > ceiling {
					t.Fatalf("attempt %d: delay %v outside [0, %v]", i+1, delay, ceiling)
				}
				if mode == JitterEqual && delay < ceiling/2 {
					t.Fatalf("attempt %d: equal jitter delay %v below half of %v", i+1, delay, ceiling)
				}
				prev = ceiling
			}
		})
	}
}

func TestBackoff_JitterUsesRandomSource(t *testing.T) {
	tests := []struct {
		mode   JitterMode
		random float64
		want   time.Duration
	}{
		{JitterFull, 0, 0},
		{JitterFull, 0.5, 500 * time.Millisecond},
		{JitterEqual, 0, 500 * time.Millisecond},
		{JitterEqual, 0.5, 750 * time.Millisecond},
		{JitterNone, 0.5, time.Second},
	}

	for _, tt := range tests {
		b := NewBackoff(time.Second, time.Minute, tt.mode)
		b.random = func() float64 { return tt.random }
		if delay, _ := b.Next(); delay != tt.want {
			t.Errorf("%s with random %.1f: delay = %v, want %v", tt.mode, tt.random, delay, tt.want)
		}
	}
}

func TestBackoff_InvalidBounds(t *testing.T) {
	b := NewBackoff(0, 0, JitterNone)
	delay, ceiling := b.Next()
	if delay != defaultInitialDelay || ceiling != defaultInitialDelay {
		t.Errorf("Next() = (%v, %v), want initial default", delay, ceiling)
	}
	if _, ceiling := b.Next(); ceiling != defaultInitialDelay {
		t.Errorf("ceiling above max = %v", ceiling)
	}
}

func TestParseJitterMode(t *testing.T) {
	tests := []struct {
		input   string
		want    JitterMode
		wantErr bool
	}{
		{"full", JitterFull, false},
		{"equal", JitterEqual, false},
		{"none", JitterNone, false},
		{"", JitterFull, false},
		{"decorrelated", "", true},
	}

	for _, tt := range tests {
		got, err := ParseJitterMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseJitterMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseJitterMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestState_hasSession(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateDisconnected, false},
		{StateConnecting, true},
		{StateSubscribing, true},
		{StateSubscribed, true},
		{StateFailed, false},
	}
	for _, tt := range tests {
		if got := tt.state.hasSession(); got != tt.want {
			t.Errorf("%v.hasSession() = %v, want %v", tt.state, got, tt.want)
		}
	}
}
