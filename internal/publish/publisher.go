package publish

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldrover/rovermon/pkg/models"
	"github.com/google/uuid"
)

// MetricsPutter is the metrics API surface the publisher needs.
type MetricsPutter interface {
	PutMetricData(ctx context.Context, data []models.MetricDatum) error
}

// LogsPutter is the logs API surface the publisher needs.
type LogsPutter interface {
	PutLogEvents(ctx context.Context, records []models.LogRecord) error
}

// BatchSpool persists batches that could not be sent. Satisfied by the
// storage spool.
type BatchSpool interface {
	Add(batch models.Batch) error
	Drain() ([]models.Batch, error)
}

// EventRecorder records publisher events.
type EventRecorder interface {
	LogEvent(eventType string, data map[string]any) error
}

// Publisher queues telemetry in memory and flushes it to the backend on an
// interval, or as soon as a full batch is pending. Batches that fail to
// send are handed to the spool; spooled batches are replayed once the
// backend recovers.
type Publisher struct {
	metrics MetricsPutter
	logs    LogsPutter
	spool   BatchSpool
	events  EventRecorder

	enabled     bool
	spoolAlways bool
	interval    time.Duration
	kick        chan struct{}

	mu             sync.Mutex
	pendingMetrics []models.MetricDatum
	pendingLogs    []models.LogRecord
	failStreak     int
}

// PublisherConfig configures a Publisher. Spool and Events may be nil.
type PublisherConfig struct {
	Metrics MetricsPutter
	Logs    LogsPutter
	Spool   BatchSpool
	Events  EventRecorder
	// Enabled turns actual backend puts on. When false the publisher only
	// spools (if SpoolAlways) or discards.
	Enabled     bool
	SpoolAlways bool
	Interval    time.Duration
}

// NewPublisher creates a Publisher from the given configuration.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.Enabled && (cfg.Metrics == nil || cfg.Logs == nil) {
		return nil, fmt.Errorf("publisher requires metrics and logs clients when enabled")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Publisher{
		metrics:     cfg.Metrics,
		logs:        cfg.Logs,
		spool:       cfg.Spool,
		events:      cfg.Events,
		enabled:     cfg.Enabled,
		spoolAlways: cfg.SpoolAlways,
		interval:    interval,
		kick:        make(chan struct{}, 1),
	}, nil
}

// PutMetrics queues metric data for the next flush. A full batch wakes the
// flush loop immediately instead of waiting out the interval.
func (p *Publisher) PutMetrics(data []models.MetricDatum) {
	if len(data) == 0 {
		return
	}
	p.mu.Lock()
	p.pendingMetrics = append(p.pendingMetrics, data...)
	full := len(p.pendingMetrics) >= MaxMetricBatch
	p.mu.Unlock()
	if full {
		p.signalFlush()
	}
}

// PutLog queues a log record for the next flush. A full batch wakes the
// flush loop immediately instead of waiting out the interval.
func (p *Publisher) PutLog(record models.LogRecord) {
	p.mu.Lock()
	p.pendingLogs = append(p.pendingLogs, record)
	full := len(p.pendingLogs) >= MaxLogBatch
	p.mu.Unlock()
	if full {
		p.signalFlush()
	}
}

// signalFlush wakes the Run loop without blocking the caller.
func (p *Publisher) signalFlush() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// FailStreak returns the number of consecutive failed flushes.
func (p *Publisher) FailStreak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failStreak
}

// Run flushes on the configured interval, and immediately whenever a full
// batch accumulates, until the context is cancelled; it then performs a
// final flush with a short grace period.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			graceCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			p.Flush(graceCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			p.Flush(ctx)
		case <-p.kick:
			p.Flush(ctx)
		}
	}
}

// Flush drains the pending queues and sends them as batches, then replays
// any spooled batches when the backend looks healthy.
func (p *Publisher) Flush(ctx context.Context) {
	p.mu.Lock()
	metrics := p.pendingMetrics
	logs := p.pendingLogs
	p.pendingMetrics = nil
	p.pendingLogs = nil
	p.mu.Unlock()

	now := time.Now().UTC()
	var batches []models.Batch
	if len(metrics) > 0 {
		batches = append(batches, models.Batch{
			ID:      uuid.NewString(),
			Kind:    models.BatchKindMetrics,
			Time:    now,
			Metrics: metrics,
		})
	}
	if len(logs) > 0 {
		batches = append(batches, models.Batch{
			ID:   uuid.NewString(),
			Kind: models.BatchKindLogs,
			Time: now,
			Logs: logs,
		})
	}

	healthy := true
	for _, batch := range batches {
		if !p.enabled {
			if p.spoolAlways {
				p.addToSpool(batch)
			}
			continue
		}
		if err := p.sendBatch(ctx, batch); err != nil {
			healthy = false
			p.recordFailure(batch, err)
		} else {
			p.recordSuccess(batch)
		}
	}

	if p.enabled && healthy {
		p.drainSpool(ctx)
	}
}

func (p *Publisher) sendBatch(ctx context.Context, batch models.Batch) error {
	switch batch.Kind {
	case models.BatchKindMetrics:
		return p.metrics.PutMetricData(ctx, batch.Metrics)
	case models.BatchKindLogs:
		return p.logs.PutLogEvents(ctx, batch.Logs)
	default:
		return fmt.Errorf("unknown batch kind %q", batch.Kind)
	}
}

// drainSpool replays spooled batches in order. A batch that fails again is
// re-spooled along with the untried remainder so nothing is lost.
func (p *Publisher) drainSpool(ctx context.Context) {
	if p.spool == nil {
		return
	}
	batches, err := p.spool.Drain()
	if err != nil {
		p.logEvent("spool.drain_failed", map[string]any{"error": err.Error()})
		return
	}

	for i, batch := range batches {
		if err := p.sendBatch(ctx, batch); err != nil {
			for _, remaining := range batches[i:] {
				p.addToSpool(remaining)
			}
			p.logEvent("publish.failed", map[string]any{
				"batch_id": batch.ID,
				"kind":     batch.Kind,
				"error":    err.Error(),
				"replay":   true,
			})
			return
		}
		p.logEvent("batch.published", map[string]any{
			"batch_id": batch.ID,
			"kind":     batch.Kind,
			"replay":   true,
		})
	}
}

func (p *Publisher) recordFailure(batch models.Batch, err error) {
	p.mu.Lock()
	p.failStreak++
	streak := p.failStreak
	p.mu.Unlock()

	p.addToSpool(batch)
	p.logEvent("publish.failed", map[string]any{
		"batch_id": batch.ID,
		"kind":     batch.Kind,
		"error":    err.Error(),
		"streak":   streak,
	})
}

func (p *Publisher) recordSuccess(batch models.Batch) {
	p.mu.Lock()
	p.failStreak = 0
	p.mu.Unlock()

	size := len(batch.Metrics)
	if batch.Kind == models.BatchKindLogs {
		size = len(batch.Logs)
	}
	p.logEvent("batch.published", map[string]any{
		"batch_id": batch.ID,
		"kind":     batch.Kind,
		"size":     size,
	})
}

func (p *Publisher) addToSpool(batch models.Batch) {
	if p.spool == nil {
		return
	}
	if err := p.spool.Add(batch); err != nil {
		p.logEvent("spool.write_failed", map[string]any{"batch_id": batch.ID, "error": err.Error()})
		return
	}
	p.logEvent("batch.spooled", map[string]any{"batch_id": batch.ID, "kind": batch.Kind})
}

func (p *Publisher) logEvent(eventType string, data map[string]any) {
	if p.events == nil {
		return
	}
	_ = p.events.LogEvent(eventType, data)
}
