// Package sim provides a kinematic robot simulator used when no real robot
// is attached. It implements the navigator interface and feeds synthesized
// state into the telemetry hub.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/fieldrover/rovermon/internal/core"
	"github.com/fieldrover/rovermon/internal/telemetry"
	"github.com/fieldrover/rovermon/pkg/models"
)

const (
	// tick is the simulation step.
	tick = 100 * time.Millisecond
	// goalRadius is how close the robot must get before a goal counts as
	// reached.
	goalRadius = 0.15
	// obstacleSearchMeters bounds the obstacle range synthesis.
	obstacleSearchMeters = 10.0
)

// Robot is a simulated differential-drive robot. It moves toward the
// commanded goal at the configured speed and synthesizes a laser min-range
// from the occupancy grid.
type Robot struct {
	hub      telemetry.StateSink
	grid     *core.OccupancyGrid
	maxSpeed float64

	mu       sync.Mutex
	pose     models.Pose
	velocity models.Vector3
	target   *models.Goal
	reached  chan struct{}
}

// New creates a simulated robot. grid may be nil, in which case a constant
// open range is reported.
func New(hub telemetry.StateSink, grid *core.OccupancyGrid, maxSpeed float64) (*Robot, error) {
	if hub == nil {
		return nil, fmt.Errorf("simulator requires a state sink")
	}
	if maxSpeed <= 0 {
		return nil, fmt.Errorf("simulator max speed must be positive, got %g", maxSpeed)
	}
	return &Robot{
		hub:      hub,
		grid:     grid,
		maxSpeed: maxSpeed,
	}, nil
}

// Run steps the simulation until the context is cancelled, publishing a
// state update into the hub every tick.
func (r *Robot) Run(ctx context.Context) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.step(tick.Seconds())
			r.hub.Update(r.snapshotState())
		}
	}
}

// Go implements core.Navigator: it commands the robot toward the goal and
// blocks until the goal is reached or the context is cancelled. Goals inside
// occupied space fail immediately with ErrNoPlan.
func (r *Robot) Go(ctx context.Context, goal models.Goal) error {
	if r.grid != nil {
		gx, gy := r.grid.WorldToGrid(goal.Pose.X, goal.Pose.Y)
		if !r.grid.FreeAt(gx, gy) {
			return fmt.Errorf("goal %s at (%.2f, %.2f): %w", goal.ID, goal.Pose.X, goal.Pose.Y, core.ErrNoPlan)
		}
	}

	reached := make(chan struct{})
	r.mu.Lock()
	r.target = &goal
	r.reached = reached
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		r.mu.Lock()
		r.target = nil
		r.reached = nil
		r.mu.Unlock()
		return ctx.Err()
	case <-reached:
		return nil
	}
}

// step advances the robot by dt seconds.
func (r *Robot) step(dt float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.target == nil {
		r.velocity = models.Vector3{}
		return
	}

	dx := r.target.Pose.X - r.pose.X
	dy := r.target.Pose.Y - r.pose.Y
	dist := math.Hypot(dx, dy)

	if dist <= goalRadius {
		r.velocity = models.Vector3{}
		r.target = nil
		if r.reached != nil {
			close(r.reached)
			r.reached = nil
		}
		return
	}

	speed := r.maxSpeed
	if step := speed * dt; step > dist {
		speed = dist / dt
	}
	r.pose.Yaw = math.Atan2(dy, dx)
	r.velocity = models.Vector3{
		X: speed * math.Cos(r.pose.Yaw),
		Y: speed * math.Sin(r.pose.Yaw),
	}
	r.pose.X += r.velocity.X * dt
	r.pose.Y += r.velocity.Y * dt
}

// snapshotState builds the RobotState for the current tick.
func (r *Robot) snapshotState() models.RobotState {
	r.mu.Lock()
	pose := r.pose
	velocity := r.velocity
	r.mu.Unlock()

	return models.RobotState{
		Time:             time.Now().UTC(),
		Pose:             pose,
		LinearVelocity:   velocity,
		MinObstacleRange: r.obstacleRange(pose),
		Source:           "sim",
	}
}

// obstacleRange returns the distance to the nearest occupied cell within
// the search radius, or the search bound when nothing is nearby.
func (r *Robot) obstacleRange(pose models.Pose) float64 {
	if r.grid == nil {
		return obstacleSearchMeters
	}

	cx, cy := r.grid.WorldToGrid(pose.X, pose.Y)
	radius := int(math.Ceil(obstacleSearchMeters / r.grid.Resolution))

	best := obstacleSearchMeters
	for gx := cx - radius; gx <= cx+radius; gx++ {
		for gy := cy - radius; gy <= cy+radius; gy++ {
			if !r.grid.InBounds(gx, gy) {
				continue
			}
			if r.grid.Data[r.grid.RavelIndex(gx, gy)] != core.CellOccupied {
				continue
			}
			wx, wy := r.grid.GridToWorld(gx, gy)
			d := math.Hypot(wx-pose.X, wy-pose.Y)
			if d < best {
				best = d
			}
		}
	}
	return best
}
