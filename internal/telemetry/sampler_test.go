package telemetry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fieldrover/rovermon/pkg/models"
)

// stubCollector returns a fixed datum or error.
type stubCollector struct {
	name  string
	datum models.MetricDatum
	err   error
}

func (c *stubCollector) Name() string { return c.name }

func (c *stubCollector) Collect(ctx context.Context) (models.MetricDatum, error) {
	return c.datum, c.err
}

type captureSinks struct {
	metrics   [][]models.MetricDatum
	logs      []models.LogRecord
	snapshots []models.Snapshot
	events    []string
}

func (c *captureSinks) PutMetrics(data []models.MetricDatum) { c.metrics = append(c.metrics, data) }
func (c *captureSinks) PutLog(record models.LogRecord)       { c.logs = append(c.logs, record) }
func (c *captureSinks) Write(snapshot models.Snapshot) error {
	c.snapshots = append(c.snapshots, snapshot)
	return nil
}
func (c *captureSinks) LogEvent(eventType string, data map[string]any) error {
	c.events = append(c.events, eventType)
	return nil
}

func newTestSampler(t *testing.T, collectors []Collector, source StateSource, goals GoalProvider) (*Sampler, *captureSinks) {
	t.Helper()
	sinks := &captureSinks{}
	s, err := NewSampler(SamplerConfig{
		RunID:      "run-1",
		RobotName:  "rover",
		Interval:   time.Second,
		Collectors: collectors,
		Source:     source,
		Goals:      goals,
		Metrics:    sinks,
		Logs:       sinks,
		Snapshots:  sinks,
		Events:     sinks,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s, sinks
}

func TestSample(t *testing.T) {
	source := &stubSource{
		state: models.RobotState{Pose: models.Pose{X: 1}},
		ok:    true,
	}
	goals := &stubGoals{goal: models.Goal{ID: "g1"}, ok: true}
	collectors := []Collector{
		&stubCollector{name: "speed", datum: models.MetricDatum{Name: models.MetricSpeed, Value: 0.5}},
		&stubCollector{name: "ram", datum: models.MetricDatum{Name: models.MetricRAMUsage, Value: 40}},
	}

	s, sinks := newTestSampler(t, collectors, source, goals)
	s.sample(context.Background())

	if len(sinks.metrics) != 1 || len(sinks.metrics[0]) != 2 {
		t.Fatalf("expected one batch of two data points, got %v", sinks.metrics)
	}
	for _, d := range sinks.metrics[0] {
		if d.Dimensions["robot"] != "rover" {
			t.Fatalf("expected robot dimension on %s, got %v", d.Name, d.Dimensions)
		}
	}

	if len(sinks.logs) != 1 || sinks.logs[0].Level != "INFO" {
		t.Fatalf("expected one INFO sample log, got %v", sinks.logs)
	}
	if sinks.logs[0].Fields[models.MetricSpeed] != 0.5 {
		t.Fatalf("expected speed value in log fields, got %v", sinks.logs[0].Fields)
	}

	if len(sinks.snapshots) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(sinks.snapshots))
	}
	snap := sinks.snapshots[0]
	if snap.RunID != "run-1" || snap.State.Pose.X != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Goal == nil || snap.Goal.ID != "g1" {
		t.Fatalf("expected active goal in snapshot, got %+v", snap.Goal)
	}

	if len(sinks.events) != 1 || sinks.events[0] != "sample.collected" {
		t.Fatalf("expected sample.collected event, got %v", sinks.events)
	}
}

func TestSample_SkipsNotReady(t *testing.T) {
	collectors := []Collector{
		&stubCollector{name: "cpu", err: fmt.Errorf("cpu: %w", ErrNotReady)},
		&stubCollector{name: "ram", datum: models.MetricDatum{Name: models.MetricRAMUsage, Value: 40}},
	}

	s, sinks := newTestSampler(t, collectors, &stubSource{ok: true}, nil)
	s.sample(context.Background())

	if len(sinks.metrics) != 1 || len(sinks.metrics[0]) != 1 {
		t.Fatalf("expected one data point, got %v", sinks.metrics)
	}
	// Not-ready collectors are skipped without a warning.
	for _, record := range sinks.logs {
		if record.Level == "WARN" {
			t.Fatalf("unexpected warning: %+v", record)
		}
	}
}

func TestSample_NothingReady(t *testing.T) {
	collectors := []Collector{
		&stubCollector{name: "cpu", err: fmt.Errorf("cpu: %w", ErrNotReady)},
	}

	s, sinks := newTestSampler(t, collectors, &stubSource{}, nil)
	s.sample(context.Background())

	if len(sinks.metrics) != 0 || len(sinks.logs) != 0 || len(sinks.snapshots) != 0 {
		t.Fatal("expected no output when no collector produced data")
	}
}

func TestSample_WarnsOnCollectorFailure(t *testing.T) {
	collectors := []Collector{
		&stubCollector{name: "bad", err: fmt.Errorf("sensor unplugged")},
		&stubCollector{name: "ram", datum: models.MetricDatum{Name: models.MetricRAMUsage, Value: 40}},
	}

	s, sinks := newTestSampler(t, collectors, &stubSource{ok: true}, nil)
	s.sample(context.Background())

	var warned bool
	for _, record := range sinks.logs {
		if record.Level == "WARN" {
			warned = true
		}
	}
	if !warned {
		t.Fatal("expected a WARN log for the failing collector")
	}
}

func TestNewSampler_Validation(t *testing.T) {
	collector := &stubCollector{name: "speed"}

	if _, err := NewSampler(SamplerConfig{Interval: 0, Collectors: []Collector{collector}, Source: &stubSource{}}); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if _, err := NewSampler(SamplerConfig{Interval: time.Second, Source: &stubSource{}}); err == nil {
		t.Fatal("expected error for no collectors")
	}
	if _, err := NewSampler(SamplerConfig{Interval: time.Second, Collectors: []Collector{collector}}); err == nil {
		t.Fatal("expected error for missing source")
	}
}
