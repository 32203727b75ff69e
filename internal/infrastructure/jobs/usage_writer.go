package jobs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"nexuspay.backend/internal/domain/entities"
	"nexuspay.backend/internal/domain/repositories"
	"nexuspay.backend/pkg/logger"
)

const (
	usageQueueSize     = 1024
	usageBatchSize     = 100
	usageFlushInterval = 5 * time.Second
)

var usageDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "nexuspay_api_key_usage_dropped_total",
	Help: "Usage records dropped because the write queue was full",
})

// UsageWriter batches API-key usage records into the database. Recording is
// non-blocking with a bounded queue: under sustained overload the oldest
// queued record is dropped and counted, never the request latency.
type UsageWriter struct {
	repo  repositories.APIKeyUsageRepository
	queue chan *entities.APIKeyUsage
	stop  chan struct{}
}

func NewUsageWriter(repo repositories.APIKeyUsageRepository) *UsageWriter {
	return &UsageWriter{
		repo:  repo,
		queue: make(chan *entities.APIKeyUsage, usageQueueSize),
		stop:  make(chan struct{}),
	}
}

// Record enqueues a usage row without blocking the caller
func (w *UsageWriter) Record(usage *entities.APIKeyUsage) {
	select {
	case w.queue <- usage:
		return
	default:
	}

	// Queue full: drop the oldest record to make room for the newest.
	select {
	case <-w.queue:
		usageDropped.Inc()
	default:
	}
	select {
	case w.queue <- usage:
	default:
		usageDropped.Inc()
	}
}

func (w *UsageWriter) Start(ctx context.Context) {
	logger.Info(ctx, "starting usage writer",
		zap.Int("queue", usageQueueSize), zap.Int("batch", usageBatchSize))

	ticker := time.NewTicker(usageFlushInterval)
	defer ticker.Stop()

	batch := make([]*entities.APIKeyUsage, 0, usageBatchSize)
	for {
		select {
		case <-ctx.Done():
			w.drain(batch)
			return
		case <-w.stop:
			w.drain(batch)
			return
		case usage := <-w.queue:
			batch = append(batch, usage)
			if len(batch) >= usageBatchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (w *UsageWriter) Stop() {
	close(w.stop)
}

func (w *UsageWriter) flush(ctx context.Context, batch []*entities.APIKeyUsage) {
	if err := w.repo.CreateBatch(ctx, batch); err != nil {
		logger.Error(ctx, "usage flush failed", zap.Int("rows", len(batch)), zap.Error(err))
	}
}

// drain writes everything still queued on shutdown, detached from the
// request context
func (w *UsageWriter) drain(batch []*entities.APIKeyUsage) {
	for {
		select {
		case usage := <-w.queue:
			batch = append(batch, usage)
		default:
			if len(batch) > 0 {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				w.flush(ctx, batch)
				cancel()
			}
			return
		}
	}
}
