package observability

import (
	"fmt"
	"time"
)

// Metrics holds aggregates derived from the agent event log.
type Metrics struct {
	SamplesCollected int            `json:"samples_collected"`
	BatchesPublished int            `json:"batches_published"`
	BatchesSpooled   int            `json:"batches_spooled"`
	PublishFailures  int            `json:"publish_failures"`
	GoalsStarted     int            `json:"goals_started"`
	GoalsReached     int            `json:"goals_reached"`
	GoalsFailed      int            `json:"goals_failed"`
	AlertsFired      int            `json:"alerts_fired"`
	EventsByType     map[string]int `json:"events_by_type"`
	EventCount       int            `json:"event_count"`
	OldestEvent      *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives aggregates from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from the given
// event log.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Query(Filter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{EventsByType: make(map[string]int)}
	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		m.EventsByType[event.Type]++

		switch event.Type {
		case EventSampleCollected:
			m.SamplesCollected++
		case EventBatchPublished:
			m.BatchesPublished++
		case EventBatchSpooled:
			m.BatchesSpooled++
		case EventPublishFailed:
			m.PublishFailures++
		case EventGoalStarted:
			m.GoalsStarted++
		case EventGoalReached:
			m.GoalsReached++
		case EventGoalFailed:
			m.GoalsFailed++
		case EventAlertFired:
			m.AlertsFired++
		}
	}

	return m, nil
}
