package core

import (
	"context"
	"errors"

	"github.com/fieldrover/rovermon/pkg/models"
)

// ErrNoPlan is returned by a Navigator when no path to the goal exists.
var ErrNoPlan = errors.New("no plan found for goal")

// Navigator drives the robot to a goal, blocking until the goal is reached,
// the context is cancelled, or navigation fails.
type Navigator interface {
	Go(ctx context.Context, goal models.Goal) error
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, goal models.Goal) error

// Go implements Navigator.
func (f NavigatorFunc) Go(ctx context.Context, goal models.Goal) error {
	return f(ctx, goal)
}
