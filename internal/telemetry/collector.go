package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldrover/rovermon/pkg/models"
)

// ErrNotReady is returned by a collector that has no data yet, for example
// before the first robot state arrives or before the CPU delta is primed.
// The sampler skips such collectors without publishing anything.
var ErrNotReady = errors.New("collector not ready")

// Collector produces one metric datum per sample cycle.
type Collector interface {
	Name() string
	Collect(ctx context.Context) (models.MetricDatum, error)
}

// GoalProvider exposes the goal currently being navigated to. Satisfied by
// the route manager.
type GoalProvider interface {
	CurrentGoal() (models.Goal, bool)
}

// speedCollector derives linear speed from the latest robot state.
type speedCollector struct {
	source StateSource
}

// NewSpeedCollector creates a Collector reporting robot speed in m/s.
func NewSpeedCollector(source StateSource) Collector {
	return &speedCollector{source: source}
}

func (c *speedCollector) Name() string { return models.MetricSpeed }

func (c *speedCollector) Collect(ctx context.Context) (models.MetricDatum, error) {
	state, ok := c.source.Current()
	if !ok {
		return models.MetricDatum{}, fmt.Errorf("%s: %w", c.Name(), ErrNotReady)
	}
	return models.MetricDatum{
		Name:      models.MetricSpeed,
		Value:     state.Speed(),
		Unit:      models.UnitMetersPerSecond,
		Timestamp: time.Now().UTC(),
	}, nil
}

// obstacleCollector reports the minimum laser range from the latest state.
type obstacleCollector struct {
	source StateSource
}

// NewObstacleCollector creates a Collector reporting the distance to the
// nearest obstacle in meters.
func NewObstacleCollector(source StateSource) Collector {
	return &obstacleCollector{source: source}
}

func (c *obstacleCollector) Name() string { return models.MetricDistanceToObstacle }

func (c *obstacleCollector) Collect(ctx context.Context) (models.MetricDatum, error) {
	state, ok := c.source.Current()
	if !ok || state.MinObstacleRange < 0 {
		return models.MetricDatum{}, fmt.Errorf("%s: %w", c.Name(), ErrNotReady)
	}
	return models.MetricDatum{
		Name:      models.MetricDistanceToObstacle,
		Value:     state.MinObstacleRange,
		Unit:      models.UnitMeters,
		Timestamp: time.Now().UTC(),
	}, nil
}

// goalDistanceCollector reports the planar distance to the active goal.
type goalDistanceCollector struct {
	source StateSource
	goals  GoalProvider
}

// NewGoalDistanceCollector creates a Collector reporting the distance from
// the current pose to the active navigation goal in meters.
func NewGoalDistanceCollector(source StateSource, goals GoalProvider) Collector {
	return &goalDistanceCollector{source: source, goals: goals}
}

func (c *goalDistanceCollector) Name() string { return models.MetricDistanceToGoal }

func (c *goalDistanceCollector) Collect(ctx context.Context) (models.MetricDatum, error) {
	state, ok := c.source.Current()
	if !ok {
		return models.MetricDatum{}, fmt.Errorf("%s: %w", c.Name(), ErrNotReady)
	}
	goal, ok := c.goals.CurrentGoal()
	if !ok {
		return models.MetricDatum{}, fmt.Errorf("%s: no active goal: %w", c.Name(), ErrNotReady)
	}
	return models.MetricDatum{
		Name:       models.MetricDistanceToGoal,
		Value:      state.Pose.DistanceTo(goal.Pose),
		Unit:       models.UnitMeters,
		Timestamp:  time.Now().UTC(),
		Dimensions: map[string]string{"goal_id": goal.ID},
	}, nil
}
