package core

import (
	"fmt"
	"math"
	"os"

	"github.com/fieldrover/rovermon/pkg/models"
	"gopkg.in/yaml.v3"
)

// Cell occupancy values. The grid uses the trinary representation: 0 is
// free, 100 is occupied, -1 is unknown.
const (
	CellFree     = 0
	CellOccupied = 100
	CellUnknown  = -1
)

// OccupancyGrid is a row-major 2D occupancy map with a world-frame origin.
// The grid-to-world transform is x-y translation plus yaw rotation only.
type OccupancyGrid struct {
	Width      int         `yaml:"width"`
	Height     int         `yaml:"height"`
	Resolution float64     `yaml:"resolution"` // meters per cell
	Origin     models.Pose `yaml:"origin"`
	Data       []int8      `yaml:"data"`
}

// LoadGrid reads an occupancy grid from a YAML file and validates its shape.
func LoadGrid(path string) (*OccupancyGrid, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading grid file: %w", err)
	}

	var grid OccupancyGrid
	if err := yaml.Unmarshal(raw, &grid); err != nil {
		return nil, fmt.Errorf("parsing grid file %s: %w", path, err)
	}

	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("grid file %s: %w", path, err)
	}
	return &grid, nil
}

// Validate checks that the grid dimensions are positive and consistent with
// the data length.
func (g *OccupancyGrid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%d", g.Width, g.Height)
	}
	if g.Resolution <= 0 {
		return fmt.Errorf("grid resolution must be positive, got %g", g.Resolution)
	}
	if len(g.Data) != g.Width*g.Height {
		return fmt.Errorf("grid data length %d does not match %dx%d", len(g.Data), g.Width, g.Height)
	}
	return nil
}

// RavelIndex converts 2D grid coordinates to a row-major data index.
func (g *OccupancyGrid) RavelIndex(x, y int) int {
	return y*g.Width + x
}

// InBounds reports whether the grid coordinates fall inside the grid.
func (g *OccupancyGrid) InBounds(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// FreeAt reports whether the cell at the given grid coordinates is free.
func (g *OccupancyGrid) FreeAt(x, y int) bool {
	if !g.InBounds(x, y) {
		return false
	}
	return g.Data[g.RavelIndex(x, y)] == CellFree
}

// GridToWorld transforms planar grid coordinates to world coordinates,
// applying the origin translation and yaw rotation.
func (g *OccupancyGrid) GridToWorld(x, y int) (float64, float64) {
	yaw := g.Origin.Yaw
	gx := g.Resolution * float64(x)
	gy := g.Resolution * float64(y)
	wx := g.Origin.X + math.Cos(yaw)*gx - math.Sin(yaw)*gy
	wy := g.Origin.Y + math.Sin(yaw)*gx + math.Cos(yaw)*gy
	return wx, wy
}

// WorldToGrid transforms world coordinates back to grid coordinates,
// inverting the origin translation and yaw rotation. The result may be out
// of bounds.
func (g *OccupancyGrid) WorldToGrid(wx, wy float64) (int, int) {
	yaw := g.Origin.Yaw
	dx := wx - g.Origin.X
	dy := wy - g.Origin.Y
	gx := math.Cos(yaw)*dx + math.Sin(yaw)*dy
	gy := -math.Sin(yaw)*dx + math.Cos(yaw)*dy
	return int(math.Floor(gx / g.Resolution)), int(math.Floor(gy / g.Resolution))
}

// NoiseFree reports whether the neighborhood around the cell is entirely
// free. Low-resolution or noisy sensor data leaves isolated free cells
// inside obstacles; requiring neighbor consistency rejects those.
func (g *OccupancyGrid) NoiseFree(x, y int) bool {
	// Window scales with resolution.
	deltaX := max(2, g.Width/50)
	deltaY := max(2, g.Height/50)

	left := max(0, x-deltaX)
	right := min(g.Width-1, x+deltaX)
	top := max(0, y-deltaY)
	bottom := min(g.Height-1, y+deltaY)

	for cx := left; cx < right; cx++ {
		for cy := top; cy < bottom; cy++ {
			if g.Data[g.RavelIndex(cx, cy)] != CellFree {
				return false
			}
		}
	}
	return true
}

// FreeRatio returns the fraction of cells that are free, used by route
// preview to warn about unusable maps.
func (g *OccupancyGrid) FreeRatio() float64 {
	if len(g.Data) == 0 {
		return 0
	}
	free := 0
	for _, c := range g.Data {
		if c == CellFree {
			free++
		}
	}
	return float64(free) / float64(len(g.Data))
}
