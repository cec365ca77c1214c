// Package collector buffers analytics events off the request path and hands
// them to a publisher in batches.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/metrics"
)

// BatchCollector flushes when a batch fills or the interval passes,
// whichever comes first. The buffer is bounded: Track never blocks and
// drops events once maxBuffer are waiting.
type BatchCollector struct {
	publisher     kafka.Publisher
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	maxBuffer     int
	flushInterval time.Duration
	flushCh       chan struct{}
	dropped       atomic.Int64
	metrics       *metrics.Metrics
	logger        *slog.Logger
	done          chan struct{}
}

func NewBatchCollector(publisher kafka.Publisher, batchSize int, flushInterval time.Duration) *BatchCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchCollector{
		publisher:     publisher,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		maxBuffer:     batchSize * 10,
		flushInterval: flushInterval,
		flushCh:       make(chan struct{}, 1),
		logger:        logger.WithComponent("analytics-collector"),
		done:          make(chan struct{}),
	}
}

// WithMetrics counts dropped events on m.
func (bc *BatchCollector) WithMetrics(m *metrics.Metrics) *BatchCollector {
	bc.metrics = m
	return bc
}

// Start runs the flush loop until ctx is cancelled, then flushes whatever
// is left with a short deadline.
func (bc *BatchCollector) Start(ctx context.Context) {
	go func() {
		defer close(bc.done)
		ticker := time.NewTicker(bc.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bc.flush(ctx)
			case <-bc.flushCh:
				bc.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				bc.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	bc.logger.Info("collector started",
		"batch_size", bc.batchSize,
		"flush_interval", bc.flushInterval,
	)
}

// Track queues an event keyed by key.
func (bc *BatchCollector) Track(key string, value any) {
	bc.mu.Lock()
	if len(bc.buffer) >= bc.maxBuffer {
		bc.mu.Unlock()
		if bc.metrics != nil {
			bc.metrics.AnalyticsEventsDropped.Inc()
		}
		if bc.dropped.Add(1) == 1 {
			bc.logger.Warn("analytics buffer full, dropping events")
		}
		return
	}
	bc.buffer = append(bc.buffer, kafka.Event{Key: key, Value: value})
	full := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()

	if full {
		select {
		case bc.flushCh <- struct{}{}:
		default:
		}
	}
}

// Close waits for the loop started by Start to exit.
func (bc *BatchCollector) Close() {
	<-bc.done
}

// BufferLen is the number of events waiting for the next flush.
func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

// Dropped is the number of events discarded since the collector started.
func (bc *BatchCollector) Dropped() int64 {
	return bc.dropped.Load()
}

// Flush publishes everything buffered now.
func (bc *BatchCollector) Flush(ctx context.Context) {
	bc.flush(ctx)
}

func (bc *BatchCollector) flush(ctx context.Context) {
	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return
	}
	batch := bc.buffer
	bc.buffer = make([]kafka.Event, 0, bc.batchSize)
	bc.mu.Unlock()

	if err := bc.publisher.PublishBatch(ctx, batch); err != nil {
		bc.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)
		bc.mu.Lock()
		bc.buffer = append(batch, bc.buffer...)
		if len(bc.buffer) > bc.maxBuffer {
			dropped := len(bc.buffer) - bc.maxBuffer
			bc.buffer = bc.buffer[:bc.maxBuffer]
			bc.dropped.Add(int64(dropped))
			bc.logger.Warn("buffer overflow, events dropped", "dropped", dropped)
		}
		bc.mu.Unlock()
		return
	}
	bc.logger.Debug("batch flushed", "events", len(batch))
}
