package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/mqttmon/internal/infrastructure/config"
)

const (
	dialTimeout     = 10 * time.Second
	pingTimeout     = 5 * time.Second
	defaultInterval = 10 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

var errNotReady = errors.New("ping reported not ready")

// pinger is the health endpoint of the server.
type pinger interface {
	Ping(ctx context.Context) (bool, error)
}

// pointWriter is the batching half of api.WriteAPI.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Exporter writes periodic TrafficSample points to one bucket.
//
// Every reading is preceded by a ping; readings taken while the server is
// unhealthy are dropped and counted rather than queued.
//
// Thread Safety:
//   - Run must be called at most once.
//   - OnError, Healthy, Counts and Close are safe for concurrent use.
type Exporter struct {
	server   pinger
	writes   pointWriter
	release  func()
	interval time.Duration

	mu      sync.RWMutex
	stopped bool
	onError func(error)

	written atomic.Uint64
	skipped atomic.Uint64
}

// Dial connects to the InfluxDB server described by cfg and returns an
// exporter for its bucket. The server must answer a ping within ctx and
// the dial timeout.
func Dial(ctx context.Context, cfg config.InfluxDBConfig) (*Exporter, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batch, flush := uint(defaultBatchSize), defaultFlushInterval
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize) // #nosec G115 -- positive
	}
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	opts := influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())) // #nosec G115 -- positive

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := checkHealth(dialCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, cfg.URL, err)
	}

	writes := client.WriteAPI(cfg.Org, cfg.Bucket)
	e := newExporter(client, writes, cfg.GetReportInterval())
	e.release = client.Close
	go e.forwardRejections(writes.Errors())

	return e, nil
}

func newExporter(server pinger, writes pointWriter, interval time.Duration) *Exporter {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Exporter{
		server:   server,
		writes:   writes,
		interval: interval,
	}
}

// OnError registers the callback receiving dropped readings (ErrUnhealthy)
// and async batch failures (ErrRejected). It may run on any goroutine.
func (e *Exporter) OnError(callback func(error)) {
	e.mu.Lock()
	e.onError = callback
	e.mu.Unlock()
}

// Healthy pings the server.
func (e *Exporter) Healthy(ctx context.Context) error {
	e.mu.RLock()
	server, stopped := e.server, e.stopped
	e.mu.RUnlock()
	if stopped || server == nil {
		return ErrStopped
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return checkHealth(pingCtx, server)
}

// Run takes a reading every interval until ctx is cancelled, then exports
// one final reading and flushes the batch.
func (e *Exporter) Run(ctx context.Context, tags map[string]string, sample func() TrafficSample) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// The final reading outlives ctx by at most one ping.
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), pingTimeout)
			e.export(final, tags, sample())
			cancel()
			e.flush()
			return
		case <-ticker.C:
			e.export(ctx, tags, sample())
		}
	}
}

// Counts returns how many readings were written and how many were dropped.
func (e *Exporter) Counts() (written, skipped uint64) {
	return e.written.Load(), e.skipped.Load()
}

// Close flushes pending points and releases the client. Further readings
// are dropped with ErrStopped. Close is idempotent.
func (e *Exporter) Close() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	if e.writes != nil {
		e.writes.Flush()
	}
	if e.release != nil {
		e.release()
	}
	return nil
}

// export writes one reading if the server passes its health check.
func (e *Exporter) export(ctx context.Context, tags map[string]string, s TrafficSample) {
	if err := e.Healthy(ctx); err != nil {
		e.skipped.Add(1)
		e.report(fmt.Errorf("%w: reading dropped: %w", ErrUnhealthy, err))
		return
	}
	e.writes.WritePoint(s.point(tags, time.Now()))
	e.written.Add(1)
}

func (e *Exporter) flush() {
	e.mu.RLock()
	stopped := e.stopped
	e.mu.RUnlock()
	if !stopped && e.writes != nil {
		e.writes.Flush()
	}
}

func (e *Exporter) forwardRejections(errs <-chan error) {
	for err := range errs {
		e.report(fmt.Errorf("%w: %w", ErrRejected, err))
	}
}

func (e *Exporter) report(err error) {
	e.mu.RLock()
	callback := e.onError
	e.mu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

func checkHealth(ctx context.Context, server pinger) error {
	healthy, err := server.Ping(ctx)
	if err != nil {
		return err
	}
	if !healthy {
		return errNotReady
	}
	return nil
}
