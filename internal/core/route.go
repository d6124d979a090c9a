package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fieldrover/rovermon/pkg/models"
)

// maxBadGoals is how many consecutive navigation failures the route manager
// tolerates before stopping.
const maxBadGoals = 10

// ErrTooManyBadGoals is returned by Run when navigation keeps failing.
// It usually means the occupancy map does not match the world.
var ErrTooManyBadGoals = errors.New("too many consecutive bad goals")

// RouteManager sends goals from a GoalSource to the navigator, forever.
type RouteManager interface {
	// Run drives the route until the context is cancelled, the goal source
	// is exhausted, or too many consecutive goals fail.
	Run(ctx context.Context) error
	// CurrentGoal returns the goal currently being navigated to, if any.
	CurrentGoal() (models.Goal, bool)
	// SetSource replaces the goal source, used for route file hot reload.
	SetSource(source GoalSource)
}

type routeManager struct {
	navigator   Navigator
	events      EventLogger
	goalTimeout time.Duration
	pace        time.Duration

	mu      sync.RWMutex
	source  GoalSource
	current *models.Goal
}

// RouteManagerConfig configures a route manager.
type RouteManagerConfig struct {
	Source    GoalSource
	Navigator Navigator
	// GoalTimeout bounds each navigation attempt. Zero means no bound.
	GoalTimeout time.Duration
	// Pace is the delay between goals. Defaults to one second.
	Pace time.Duration
	// Events may be nil.
	Events EventLogger
}

// NewRouteManager creates a RouteManager from the given configuration.
func NewRouteManager(cfg RouteManagerConfig) (RouteManager, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("route manager requires a goal source")
	}
	if cfg.Navigator == nil {
		return nil, fmt.Errorf("route manager requires a navigator")
	}
	pace := cfg.Pace
	if pace <= 0 {
		pace = time.Second
	}
	return &routeManager{
		navigator:   cfg.Navigator,
		events:      cfg.Events,
		goalTimeout: cfg.GoalTimeout,
		pace:        pace,
		source:      cfg.Source,
	}, nil
}

func (rm *routeManager) CurrentGoal() (models.Goal, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	if rm.current == nil {
		return models.Goal{}, false
	}
	return *rm.current, true
}

func (rm *routeManager) SetSource(source GoalSource) {
	if source == nil {
		return
	}
	rm.mu.Lock()
	rm.source = source
	rm.mu.Unlock()
}

func (rm *routeManager) Run(ctx context.Context) error {
	badGoals := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if badGoals > maxBadGoals {
			rm.logEvent("route.stopped", map[string]any{"reason": "bad_goals", "count": badGoals})
			return fmt.Errorf("%w (%d): check that the occupancy map uses trinary values and matches the world", ErrTooManyBadGoals, badGoals)
		}

		rm.mu.RLock()
		source := rm.source
		rm.mu.RUnlock()

		goal, err := source.Next()
		if err != nil {
			rm.logEvent("route.stopped", map[string]any{"reason": "no_goal", "error": err.Error()})
			return fmt.Errorf("getting next goal: %w", err)
		}

		rm.setCurrent(&goal)
		rm.logEvent("goal.started", map[string]any{
			"goal_id": goal.ID,
			"name":    goal.Name,
			"x":       goal.Pose.X,
			"y":       goal.Pose.Y,
		})

		if err := rm.navigate(ctx, goal); err != nil {
			if ctx.Err() != nil {
				rm.setCurrent(nil)
				return ctx.Err()
			}
			badGoals++
			rm.logEvent("goal.failed", map[string]any{
				"goal_id": goal.ID,
				"error":   err.Error(),
				"streak":  badGoals,
			})
		} else {
			badGoals = 0
			rm.logEvent("goal.reached", map[string]any{"goal_id": goal.ID})
		}
		rm.setCurrent(nil)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rm.pace):
		}
	}
}

func (rm *routeManager) navigate(ctx context.Context, goal models.Goal) error {
	if rm.goalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rm.goalTimeout)
		defer cancel()
	}
	return rm.navigator.Go(ctx, goal)
}

func (rm *routeManager) setCurrent(goal *models.Goal) {
	rm.mu.Lock()
	rm.current = goal
	rm.mu.Unlock()
}

func (rm *routeManager) logEvent(eventType string, data map[string]any) {
	if rm.events == nil {
		return
	}
	_ = rm.events.LogEvent(eventType, data)
}
