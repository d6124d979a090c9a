package core

import (
	"fmt"
	"math/rand"

	"github.com/fieldrover/rovermon/pkg/models"
	"github.com/google/uuid"
)

// goalAttempts bounds the random scan for a free cell before giving up.
const goalAttempts = 100

// GoalSource produces the next navigation goal for the route manager.
type GoalSource interface {
	Next() (models.Goal, error)
}

// GoalGenerator scans an occupancy grid for valid random goal poses.
// It assumes the map is static for the lifetime of the generator.
type GoalGenerator struct {
	grid *OccupancyGrid
	rng  *rand.Rand
}

// NewGoalGenerator creates a GoalGenerator over the given grid. rng may be
// nil, in which case an unseeded source is used.
func NewGoalGenerator(grid *OccupancyGrid, rng *rand.Rand) (*GoalGenerator, error) {
	if grid == nil {
		return nil, fmt.Errorf("goal generator requires a grid")
	}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("goal generator grid: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &GoalGenerator{grid: grid, rng: rng}, nil
}

// Next scans the grid for a random free, noise-free cell and returns it as a
// world-frame goal. It fails after a bounded number of attempts, which
// usually means the map is not in trinary representation or is mostly
// occupied.
func (gg *GoalGenerator) Next() (models.Goal, error) {
	for i := 0; i < goalAttempts; i++ {
		x := gg.rng.Intn(gg.grid.Width)
		y := gg.rng.Intn(gg.grid.Height)
		if !gg.grid.FreeAt(x, y) || !gg.grid.NoiseFree(x, y) {
			continue
		}
		wx, wy := gg.grid.GridToWorld(x, y)
		return models.Goal{
			ID: uuid.NewString(),
			Pose: models.Pose{
				X: wx,
				Y: wy,
			},
		}, nil
	}
	return models.Goal{}, fmt.Errorf("no valid goal found in %d attempts: check that the occupancy map uses trinary values and is not noisy", goalAttempts)
}

// inOrderSource cycles through configured waypoints forever.
type inOrderSource struct {
	poses []models.RoutePose
	next  int
}

// NewInOrderSource creates a GoalSource that cycles the poses in order.
func NewInOrderSource(poses []models.RoutePose) (GoalSource, error) {
	if len(poses) == 0 {
		return nil, fmt.Errorf("inorder route requires at least one pose")
	}
	return &inOrderSource{poses: poses}, nil
}

func (s *inOrderSource) Next() (models.Goal, error) {
	p := s.poses[s.next]
	s.next = (s.next + 1) % len(s.poses)
	return models.Goal{ID: uuid.NewString(), Name: p.Name, Pose: p.Pose}, nil
}

// randomSource picks a uniformly random configured waypoint each time.
type randomSource struct {
	poses []models.RoutePose
	rng   *rand.Rand
}

// NewRandomSource creates a GoalSource that picks random poses. rng may be nil.
func NewRandomSource(poses []models.RoutePose, rng *rand.Rand) (GoalSource, error) {
	if len(poses) == 0 {
		return nil, fmt.Errorf("random route requires at least one pose")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &randomSource{poses: poses, rng: rng}, nil
}

func (s *randomSource) Next() (models.Goal, error) {
	p := s.poses[s.rng.Intn(len(s.poses))]
	return models.Goal{ID: uuid.NewString(), Name: p.Name, Pose: p.Pose}, nil
}
