package models

import "math"

// RouteMode selects how the route manager picks the next goal.
type RouteMode string

const (
	// ModeInOrder cycles through the configured poses in order, forever.
	ModeInOrder RouteMode = "inorder"
	// ModeRandom picks a uniformly random configured pose each time.
	ModeRandom RouteMode = "random"
	// ModeDynamic generates goals by scanning the occupancy grid for free space.
	ModeDynamic RouteMode = "dynamic"
)

// Valid reports whether the mode is one of the supported route modes.
func (m RouteMode) Valid() bool {
	switch m {
	case ModeInOrder, ModeRandom, ModeDynamic:
		return true
	}
	return false
}

// Vector3 is a 3D vector in world coordinates.
type Vector3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Norm returns the Euclidean length of the vector.
func (v Vector3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Pose is a 2D position with heading in the world frame. Z is carried for
// completeness but routes are planar.
type Pose struct {
	X   float64 `json:"x" yaml:"x"`
	Y   float64 `json:"y" yaml:"y"`
	Z   float64 `json:"z" yaml:"z"`
	Yaw float64 `json:"yaw" yaml:"yaw"` // radians
}

// DistanceTo returns the planar Euclidean distance to the other pose.
func (p Pose) DistanceTo(other Pose) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Goal is a navigation target handed to the navigator.
type Goal struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Pose Pose   `json:"pose" yaml:"pose"`
}

// RouteFile is the top-level structure of a route YAML file.
type RouteFile struct {
	Version string      `yaml:"version"`
	Name    string      `yaml:"name,omitempty"`
	Poses   []RoutePose `yaml:"poses"`
}

// RoutePose is a single named waypoint in a route file.
type RoutePose struct {
	Name string `yaml:"name,omitempty"`
	Pose Pose   `yaml:"pose"`
}
