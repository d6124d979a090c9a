package models

import "time"

// Metric names published by the agent.
const (
	MetricSpeed              = "speed"
	MetricDistanceToObstacle = "distance_to_obstacle"
	MetricDistanceToGoal     = "distance_to_goal"
	MetricCPUUtilization     = "cpu_utilization"
	MetricRAMUsage           = "ram_usage"
)

// Metric units accepted by the monitoring backend.
const (
	UnitMetersPerSecond = "m/s"
	UnitMeters          = "m"
	UnitPercent         = "percent"
)

// MetricDatum is a single named, timestamped measurement destined for the
// metrics store.
type MetricDatum struct {
	Name       string            `json:"name"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit"`
	Timestamp  time.Time         `json:"timestamp"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// LogRecord is a single operational log line destined for the log store.
type LogRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"` // INFO, WARN, ERROR
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// RobotState is the latest known state of the robot, pushed by the robot
// (or the simulator) and consumed by the telemetry collectors.
type RobotState struct {
	Time            time.Time `json:"time"`
	Pose            Pose      `json:"pose"`
	LinearVelocity  Vector3   `json:"linear_velocity"`
	AngularVelocity float64   `json:"angular_velocity"`
	// MinObstacleRange is the smallest valid range in the latest laser scan,
	// in meters. Negative when no scan has been received.
	MinObstacleRange float64 `json:"min_obstacle_range"`
	Source           string  `json:"source,omitempty"`
}

// Speed returns the magnitude of the linear velocity in m/s.
func (s RobotState) Speed() float64 {
	return s.LinearVelocity.Norm()
}

// Batch kinds stored in the spool.
const (
	BatchKindMetrics = "metrics"
	BatchKindLogs    = "logs"
)

// Batch is a unit of publication: either metric data or log records bound
// for the monitoring backend. Failed batches are spooled as-is and replayed
// later.
type Batch struct {
	ID      string        `json:"id"`
	Kind    string        `json:"kind"`
	Time    time.Time     `json:"time"`
	Metrics []MetricDatum `json:"metrics,omitempty"`
	Logs    []LogRecord   `json:"logs,omitempty"`
}

// Snapshot is the last full sample cycle, persisted for the status command
// and the dashboard.
type Snapshot struct {
	RunID   string        `json:"run_id"`
	Time    time.Time     `json:"time"`
	State   RobotState    `json:"state"`
	Goal    *Goal         `json:"goal,omitempty"`
	Metrics []MetricDatum `json:"metrics"`
}
