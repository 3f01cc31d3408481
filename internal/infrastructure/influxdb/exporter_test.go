package influxdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// fakeServer answers pings with a switchable result.
type fakeServer struct {
	mu      sync.Mutex
	healthy bool
	err     error
	pings   int
}

func (s *fakeServer) Ping(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings++
	return s.healthy, s.err
}

func (s *fakeServer) set(healthy bool, err error) {
	s.mu.Lock()
	s.healthy, s.err = healthy, err
	s.mu.Unlock()
}

// fakeWriter records points instead of batching them.
type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	w.points = append(w.points, p)
	w.mu.Unlock()
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	w.flushes++
	w.mu.Unlock()
}

func (w *fakeWriter) counts() (points, flushes int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.points), w.flushes
}

func testTags() map[string]string {
	return map[string]string{
		"broker":    "tcp://localhost:1883",
		"client_id": "mqtt-monitor",
	}
}

func staticSample() TrafficSample {
	return TrafficSample{State: "subscribed", Messages: 1}
}

// runUntil runs e until cond holds, then cancels and waits for Run.
func runUntil(t *testing.T, e *Exporter, cond func() bool) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx, testTags(), staticSample)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestTrafficSample_Point(t *testing.T) {
	sample := TrafficSample{
		State:              "subscribed",
		Messages:           5,
		PayloadBytes:       120,
		DecodeFailures:     1,
		ConnectAttempts:    3,
		FailedAttempts:     2,
		Disconnects:        1,
		Subscriptions:      1,
		SubscriptionErrors: 0,
	}

	point := sample.point(testTags(), time.Unix(1700000000, 0))

	if point.Name() != TrafficMeasurement {
		t.Errorf("Name() = %q, want %q", point.Name(), TrafficMeasurement)
	}
	line := write.PointToLineProtocol(point, time.Second)
	for _, want := range []string{
		"mqttmon_traffic,",
		"client_id=mqtt-monitor",
		`state="subscribed"`,
		"messages=5u",
		"payload_bytes=120u",
		"decode_failures=1u",
		"connect_attempts=3u",
		"failed_attempts=2u",
		"disconnects=1u",
		"subscription_errors=0u",
		" 1700000000",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
}

func TestExporter_WritesWhileHealthy(t *testing.T) {
	server := &fakeServer{healthy: true}
	writer := &fakeWriter{}
	e := newExporter(server, writer, 5*time.Millisecond)

	runUntil(t, e, func() bool {
		written, _ := e.Counts()
		return written >= 3
	})

	written, skipped := e.Counts()
	if written < 4 {
		t.Errorf("written = %d, want at least 3 ticks plus a final reading", written)
	}
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	points, flushes := writer.counts()
	if uint64(points) != written {
		t.Errorf("points = %d, want %d", points, written)
	}
	if flushes != 1 {
		t.Errorf("flushes = %d, want 1", flushes)
	}
}

func TestExporter_DropsReadingsWhileUnhealthy(t *testing.T) {
	server := &fakeServer{healthy: false}
	writer := &fakeWriter{}
	e := newExporter(server, writer, 5*time.Millisecond)

	var mu sync.Mutex
	var reported []error
	e.OnError(func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	})

	runUntil(t, e, func() bool {
		_, skipped := e.Counts()
		return skipped >= 3
	})

	written, skipped := e.Counts()
	if written != 0 {
		t.Errorf("written = %d, want 0", written)
	}
	if points, _ := writer.counts(); points != 0 {
		t.Errorf("points = %d, want none while unhealthy", points)
	}
	mu.Lock()
	defer mu.Unlock()
	if uint64(len(reported)) != skipped {
		t.Errorf("reported %d errors for %d dropped readings", len(reported), skipped)
	}
	for _, err := range reported {
		if !errors.Is(err, ErrUnhealthy) {
			t.Errorf("callback error = %v, want ErrUnhealthy", err)
		}
	}
}

func TestExporter_ResumesAfterOutage(t *testing.T) {
	server := &fakeServer{}
	writer := &fakeWriter{}
	e := newExporter(server, writer, time.Minute)
	ctx := context.Background()

	server.set(false, errors.New("connection refused"))
	e.export(ctx, testTags(), staticSample())

	server.set(true, nil)
	e.export(ctx, testTags(), staticSample())

	written, skipped := e.Counts()
	if written != 1 || skipped != 1 {
		t.Errorf("Counts() = (%d, %d), want (1, 1)", written, skipped)
	}
	if server.pings != 2 {
		t.Errorf("pings = %d, want one per reading", server.pings)
	}
}

func TestExporter_FinalReadingAfterCancel(t *testing.T) {
	server := &fakeServer{healthy: true}
	writer := &fakeWriter{}
	e := newExporter(server, writer, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Run(ctx, testTags(), staticSample)

	if written, _ := e.Counts(); written != 1 {
		t.Errorf("written = %d, want the final reading", written)
	}
	if _, flushes := writer.counts(); flushes != 1 {
		t.Errorf("flushes = %d, want 1", flushes)
	}
}

func TestExporter_Close(t *testing.T) {
	server := &fakeServer{healthy: true}
	writer := &fakeWriter{}
	e := newExporter(server, writer, time.Minute)
	var released int
	e.release = func() { released++ }

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if released != 1 {
		t.Errorf("released %d times, want 1", released)
	}

	if err := e.Healthy(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Healthy() after Close = %v, want ErrStopped", err)
	}
	e.export(context.Background(), testTags(), staticSample())
	if written, skipped := e.Counts(); written != 0 || skipped != 1 {
		t.Errorf("Counts() after Close = (%d, %d), want (0, 1)", written, skipped)
	}
}

func TestExporter_ZeroValueIsStopped(t *testing.T) {
	e := &Exporter{}

	if err := e.Healthy(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Healthy() = %v, want ErrStopped", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestExporter_ForwardsRejectedBatches(t *testing.T) {
	e := newExporter(&fakeServer{healthy: true}, &fakeWriter{}, time.Minute)

	var got []error
	e.OnError(func(err error) { got = append(got, err) })

	errs := make(chan error, 1)
	errs <- errors.New("422 unprocessable entity")
	close(errs)
	e.forwardRejections(errs)

	if len(got) != 1 || !errors.Is(got[0], ErrRejected) {
		t.Errorf("reported = %v, want one ErrRejected", got)
	}
}
