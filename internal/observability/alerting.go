package observability

import (
	"fmt"
	"time"

	"github.com/fieldrover/rovermon/pkg/models"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	MinObstacleMeters  float64 `yaml:"min_obstacle_meters" json:"min_obstacle_meters"`
	MaxCPUPercent      float64 `yaml:"max_cpu_percent" json:"max_cpu_percent"`
	MaxRAMPercent      float64 `yaml:"max_ram_percent" json:"max_ram_percent"`
	GoalStalledMinutes int     `yaml:"goal_stalled_minutes" json:"goal_stalled_minutes"`
	PublishFailStreak  int     `yaml:"publish_fail_streak" json:"publish_fail_streak"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		MinObstacleMeters:  0.3,
		MaxCPUPercent:      90,
		MaxRAMPercent:      90,
		GoalStalledMinutes: 10,
		PublishFailStreak:  5,
	}
}

// SnapshotReader provides the latest telemetry snapshot. Satisfied by the
// storage snapshot manager.
type SnapshotReader interface {
	Read() (*models.Snapshot, error)
}

// AlertEngine evaluates alert conditions against the event log and the
// latest telemetry snapshot.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	snapshots  SnapshotReader
	thresholds AlertThresholds
}

// NewAlertEngine creates an AlertEngine. snapshots may be nil, disabling the
// telemetry threshold checks.
func NewAlertEngine(eventLog EventLog, snapshots SnapshotReader, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		snapshots:  snapshots,
		thresholds: thresholds,
	}
}

// Evaluate checks all alert conditions and returns any triggered alerts.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := time.Now().UTC()
	var alerts []Alert

	telemetryAlerts, err := ae.checkTelemetry(now)
	if err != nil {
		return nil, fmt.Errorf("checking telemetry thresholds: %w", err)
	}
	alerts = append(alerts, telemetryAlerts...)

	stalledAlerts, err := ae.checkGoalStalled(now)
	if err != nil {
		return nil, fmt.Errorf("checking stalled goals: %w", err)
	}
	alerts = append(alerts, stalledAlerts...)

	publishAlerts, err := ae.checkPublishFailures(now)
	if err != nil {
		return nil, fmt.Errorf("checking publish failures: %w", err)
	}
	alerts = append(alerts, publishAlerts...)

	return alerts, nil
}

// checkTelemetry compares the latest snapshot against the configured
// thresholds.
func (ae *alertEngine) checkTelemetry(now time.Time) ([]Alert, error) {
	if ae.snapshots == nil {
		return nil, nil
	}
	snapshot, err := ae.snapshots.Read()
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, nil
	}

	var alerts []Alert
	for _, datum := range snapshot.Metrics {
		switch datum.Name {
		case models.MetricDistanceToObstacle:
			if ae.thresholds.MinObstacleMeters > 0 && datum.Value < ae.thresholds.MinObstacleMeters {
				alerts = append(alerts, Alert{
					ID:          "obstacle-too-close",
					Condition:   "obstacle_below_minimum",
					Severity:    SeverityHigh,
					Message:     fmt.Sprintf("nearest obstacle is %.2fm away, below the %.2fm minimum", datum.Value, ae.thresholds.MinObstacleMeters),
					TriggeredAt: now,
				})
			}
		case models.MetricCPUUtilization:
			if ae.thresholds.MaxCPUPercent > 0 && datum.Value > ae.thresholds.MaxCPUPercent {
				alerts = append(alerts, Alert{
					ID:          "cpu-high",
					Condition:   "cpu_above_maximum",
					Severity:    SeverityMedium,
					Message:     fmt.Sprintf("CPU utilization is %.1f%%, above the %.1f%% maximum", datum.Value, ae.thresholds.MaxCPUPercent),
					TriggeredAt: now,
				})
			}
		case models.MetricRAMUsage:
			if ae.thresholds.MaxRAMPercent > 0 && datum.Value > ae.thresholds.MaxRAMPercent {
				alerts = append(alerts, Alert{
					ID:          "ram-high",
					Condition:   "ram_above_maximum",
					Severity:    SeverityMedium,
					Message:     fmt.Sprintf("RAM usage is %.1f%%, above the %.1f%% maximum", datum.Value, ae.thresholds.MaxRAMPercent),
					TriggeredAt: now,
				})
			}
		}
	}
	return alerts, nil
}

// checkGoalStalled fires when the most recent goal has neither been reached
// nor failed within the threshold.
func (ae *alertEngine) checkGoalStalled(now time.Time) ([]Alert, error) {
	if ae.thresholds.GoalStalledMinutes <= 0 {
		return nil, nil
	}

	events, err := ae.eventLog.Query(Filter{})
	if err != nil {
		return nil, err
	}

	var lastStart *Event
	started := false
	for i := range events {
		event := events[i]
		switch event.Type {
		case EventGoalStarted:
			lastStart = &events[i]
			started = true
		case EventGoalReached, EventGoalFailed, EventRouteStopped:
			started = false
		}
	}
	if !started || lastStart == nil {
		return nil, nil
	}

	threshold := time.Duration(ae.thresholds.GoalStalledMinutes) * time.Minute
	if now.Sub(lastStart.Time) <= threshold {
		return nil, nil
	}

	goalID, _ := lastStart.Data["goal_id"].(string)
	return []Alert{{
		ID:          fmt.Sprintf("stalled-%s", goalID),
		Condition:   "goal_stalled",
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("goal %s has been active for more than %d minutes without completing", goalID, ae.thresholds.GoalStalledMinutes),
		TriggeredAt: now,
	}}, nil
}

// checkPublishFailures fires when the trailing run of publish failures,
// uninterrupted by a successful batch, reaches the configured streak.
func (ae *alertEngine) checkPublishFailures(now time.Time) ([]Alert, error) {
	if ae.thresholds.PublishFailStreak <= 0 {
		return nil, nil
	}

	events, err := ae.eventLog.Query(Filter{})
	if err != nil {
		return nil, err
	}

	streak := 0
	for _, event := range events {
		switch event.Type {
		case EventPublishFailed:
			streak++
		case EventBatchPublished:
			streak = 0
		}
	}

	if streak < ae.thresholds.PublishFailStreak {
		return nil, nil
	}
	return []Alert{{
		ID:          "publish-failures",
		Condition:   "publish_failure_streak",
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("%d consecutive batches failed to publish to the monitoring backend", streak),
		TriggeredAt: now,
	}}, nil
}
