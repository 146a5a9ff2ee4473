package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/revlens/revlens/adapters/metrics"
	"github.com/revlens/revlens/domain/usage"
	"github.com/revlens/revlens/ports"
)

// BufferedRecorder buffers usage events and writes them to the store in
// batches. Events stay in the buffer when a write fails and are retried on
// the next flush; only when the buffer outgrows maxBuffer during a store
// outage are the oldest events shed, and the shed count is surfaced as a
// metric.
type BufferedRecorder struct {
	store         ports.UsageStore
	metrics       *metrics.Collector
	logger        zerolog.Logger
	batchSize     int
	maxBuffer     int
	flushInterval time.Duration

	mu     sync.Mutex
	buffer []usage.Event

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewBufferedRecorder creates a recorder and starts its flush loop.
func NewBufferedRecorder(store ports.UsageStore, m *metrics.Collector, logger zerolog.Logger, batchSize, maxBuffer int, flushInterval time.Duration) *BufferedRecorder {
	if batchSize == 0 {
		batchSize = 100
	}
	if maxBuffer < batchSize {
		maxBuffer = 4096
	}
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}

	r := &BufferedRecorder{
		store:         store,
		metrics:       m,
		logger:        logger.With().Str("service", "recorder").Logger(),
		buffer:        make([]usage.Event, 0, batchSize),
		batchSize:     batchSize,
		maxBuffer:     maxBuffer,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}

	r.wg.Add(1)
	go r.flushLoop()

	return r
}

// Record queues a usage event for persistence.
func (r *BufferedRecorder) Record(e usage.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, e)

	if len(r.buffer) >= r.batchSize {
		r.flushLocked(context.Background())
	}
	if overflow := len(r.buffer) - r.maxBuffer; overflow > 0 {
		// The store has been failing long enough to fill the buffer.
		// Shed the oldest events so memory stays bounded.
		r.buffer = r.buffer[overflow:]
		r.metrics.EventsDropped.Add(float64(overflow))
		r.logger.Warn().Int("dropped", overflow).Msg("ingest buffer full, oldest events dropped")
	}
	r.metrics.BufferedEvents.Set(float64(len(r.buffer)))
}

// Flush forces immediate persistence of queued events.
func (r *BufferedRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked(ctx)
}

func (r *BufferedRecorder) flushLocked(ctx context.Context) error {
	if len(r.buffer) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := r.store.RecordBatch(ctx, r.buffer); err != nil {
		// Keep the events; the next flush retries the whole buffer. The
		// store skips IDs it already has, so partial writes do not double.
		r.logger.Error().Err(err).Int("events", len(r.buffer)).Msg("usage batch write failed, will retry")
		return err
	}

	r.buffer = r.buffer[:0]
	r.metrics.BufferedEvents.Set(0)
	return nil
}

func (r *BufferedRecorder) flushLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Flush(context.Background())
		case <-r.stopCh:
			return
		}
	}
}

// Close stops the recorder and flushes remaining events.
func (r *BufferedRecorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r.mu.Lock()
		defer r.mu.Unlock()
		err = r.flushLocked(ctx)
	})
	return err
}

// Ensure interface compliance.
var _ ports.EventRecorder = (*BufferedRecorder)(nil)
