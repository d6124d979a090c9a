package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldrover/rovermon/pkg/models"
)

// MetricSink accepts metric data for publication. Satisfied by the publisher.
type MetricSink interface {
	PutMetrics(data []models.MetricDatum)
}

// LogSink accepts operational log records for publication.
type LogSink interface {
	PutLog(record models.LogRecord)
}

// SnapshotWriter persists the latest sample cycle.
type SnapshotWriter interface {
	Write(snapshot models.Snapshot) error
}

// EventRecorder records agent events. Satisfied by an adapter over the
// observability event log.
type EventRecorder interface {
	LogEvent(eventType string, data map[string]any) error
}

// Sampler runs the periodic sample cycle: it collects every registered
// metric, forwards the data to the publisher, writes a log record and the
// latest snapshot, and records an event.
type Sampler struct {
	runID      string
	robotName  string
	interval   time.Duration
	collectors []Collector
	source     StateSource
	goals      GoalProvider

	metrics   MetricSink
	logs      LogSink
	snapshots SnapshotWriter
	events    EventRecorder
}

// SamplerConfig configures a Sampler. Metrics, Logs, Snapshots, and Events
// may each be nil, disabling that output.
type SamplerConfig struct {
	RunID      string
	RobotName  string
	Interval   time.Duration
	Collectors []Collector
	Source     StateSource
	Goals      GoalProvider
	Metrics    MetricSink
	Logs       LogSink
	Snapshots  SnapshotWriter
	Events     EventRecorder
}

// NewSampler creates a Sampler from the given configuration.
func NewSampler(cfg SamplerConfig) (*Sampler, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("sampler interval must be positive, got %s", cfg.Interval)
	}
	if len(cfg.Collectors) == 0 {
		return nil, fmt.Errorf("sampler requires at least one collector")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("sampler requires a state source")
	}
	return &Sampler{
		runID:      cfg.RunID,
		robotName:  cfg.RobotName,
		interval:   cfg.Interval,
		collectors: cfg.Collectors,
		source:     cfg.Source,
		goals:      cfg.Goals,
		metrics:    cfg.Metrics,
		logs:       cfg.Logs,
		snapshots:  cfg.Snapshots,
		events:     cfg.Events,
	}, nil
}

// Run executes sample cycles at the configured interval until the context
// is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

// sample runs one collection cycle. Collectors that are not ready are
// skipped silently; other collector errors are logged as warnings. Nothing
// is published when no collector produced data.
func (s *Sampler) sample(ctx context.Context) {
	now := time.Now().UTC()
	data := make([]models.MetricDatum, 0, len(s.collectors))

	for _, collector := range s.collectors {
		datum, err := collector.Collect(ctx)
		if err != nil {
			if !errors.Is(err, ErrNotReady) {
				s.putLog(models.LogRecord{
					Timestamp: now,
					Level:     "WARN",
					Message:   fmt.Sprintf("collector %s failed", collector.Name()),
					Fields:    map[string]any{"error": err.Error()},
				})
			}
			continue
		}
		if datum.Dimensions == nil {
			datum.Dimensions = map[string]string{}
		}
		datum.Dimensions["robot"] = s.robotName
		data = append(data, datum)
	}

	if len(data) == 0 {
		return
	}

	if s.metrics != nil {
		s.metrics.PutMetrics(data)
	}

	values := make(map[string]any, len(data))
	for _, d := range data {
		values[d.Name] = d.Value
	}
	s.putLog(models.LogRecord{
		Timestamp: now,
		Level:     "INFO",
		Message:   "telemetry sample",
		Fields:    values,
	})

	if s.snapshots != nil {
		snapshot := models.Snapshot{
			RunID:   s.runID,
			Time:    now,
			Metrics: data,
		}
		if state, ok := s.source.Current(); ok {
			snapshot.State = state
		}
		if s.goals != nil {
			if goal, ok := s.goals.CurrentGoal(); ok {
				snapshot.Goal = &goal
			}
		}
		if err := s.snapshots.Write(snapshot); err != nil {
			s.putLog(models.LogRecord{
				Timestamp: now,
				Level:     "WARN",
				Message:   "writing snapshot failed",
				Fields:    map[string]any{"error": err.Error()},
			})
		}
	}

	if s.events != nil {
		_ = s.events.LogEvent("sample.collected", map[string]any{
			"run_id":  s.runID,
			"metrics": len(data),
		})
	}
}

// putLog forwards a record to the log sink when one is configured.
func (s *Sampler) putLog(record models.LogRecord) {
	if s.logs == nil {
		return
	}
	s.logs.PutLog(record)
}
