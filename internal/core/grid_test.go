package core

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/fieldrover/rovermon/pkg/models"
)

// openGrid returns a width x height grid with every cell free.
func openGrid(width, height int, resolution float64) *OccupancyGrid {
	return &OccupancyGrid{
		Width:      width,
		Height:     height,
		Resolution: resolution,
		Data:       make([]int8, width*height),
	}
}

func TestValidate(t *testing.T) {
	grid := openGrid(10, 8, 0.5)
	if err := grid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_BadDimensions(t *testing.T) {
	grid := &OccupancyGrid{Width: 0, Height: 8, Resolution: 0.5}
	if err := grid.Validate(); err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestValidate_BadResolution(t *testing.T) {
	grid := openGrid(4, 4, 0.5)
	grid.Resolution = 0
	if err := grid.Validate(); err == nil {
		t.Fatal("expected error for zero resolution")
	}
}

func TestValidate_DataMismatch(t *testing.T) {
	grid := openGrid(4, 4, 0.5)
	grid.Data = grid.Data[:10]
	if err := grid.Validate(); err == nil {
		t.Fatal("expected error for data length mismatch")
	}
}

func TestFreeAt(t *testing.T) {
	grid := openGrid(4, 4, 0.5)
	grid.Data[grid.RavelIndex(2, 1)] = CellOccupied
	grid.Data[grid.RavelIndex(3, 3)] = CellUnknown

	if !grid.FreeAt(0, 0) {
		t.Fatal("expected (0,0) to be free")
	}
	if grid.FreeAt(2, 1) {
		t.Fatal("expected (2,1) to be occupied")
	}
	if grid.FreeAt(3, 3) {
		t.Fatal("expected (3,3) unknown to not count as free")
	}
	if grid.FreeAt(-1, 0) || grid.FreeAt(4, 0) {
		t.Fatal("expected out-of-bounds cells to not be free")
	}
}

func TestGridToWorld_Translation(t *testing.T) {
	grid := openGrid(10, 10, 0.5)
	grid.Origin = models.Pose{X: -2, Y: 3}

	wx, wy := grid.GridToWorld(4, 2)
	if wx != 0 || wy != 4 {
		t.Fatalf("expected (0, 4), got (%g, %g)", wx, wy)
	}
}

func TestGridToWorld_Rotation(t *testing.T) {
	grid := openGrid(10, 10, 1.0)
	grid.Origin = models.Pose{Yaw: math.Pi / 2}

	// A step along grid x maps to world y under a quarter-turn.
	wx, wy := grid.GridToWorld(3, 0)
	if math.Abs(wx) > 1e-9 || math.Abs(wy-3) > 1e-9 {
		t.Fatalf("expected (0, 3), got (%g, %g)", wx, wy)
	}
}

func TestWorldToGrid_InvertsGridToWorld(t *testing.T) {
	grid := openGrid(20, 20, 0.25)
	grid.Origin = models.Pose{X: 1.5, Y: -4, Yaw: 0.7}

	for _, cell := range [][2]int{{0, 0}, {3, 7}, {19, 19}, {10, 2}} {
		wx, wy := grid.GridToWorld(cell[0], cell[1])
		// Nudge into the cell interior so floor lands back in the same cell.
		gx, gy := grid.WorldToGrid(wx+grid.Resolution/4, wy+grid.Resolution/4)
		if gx != cell[0] || gy != cell[1] {
			t.Fatalf("cell (%d,%d) round-tripped to (%d,%d)", cell[0], cell[1], gx, gy)
		}
	}
}

func TestNoiseFree(t *testing.T) {
	grid := openGrid(100, 100, 0.1)
	if !grid.NoiseFree(50, 50) {
		t.Fatal("expected open grid to be noise-free everywhere")
	}

	grid.Data[grid.RavelIndex(51, 50)] = CellOccupied
	if grid.NoiseFree(50, 50) {
		t.Fatal("expected neighborhood with occupied cell to fail")
	}
}

func TestNoiseFree_EdgeClamped(t *testing.T) {
	grid := openGrid(100, 100, 0.1)
	// Must not panic or index out of range at the borders.
	if !grid.NoiseFree(0, 0) {
		t.Fatal("expected corner of open grid to be noise-free")
	}
	if !grid.NoiseFree(99, 99) {
		t.Fatal("expected far corner of open grid to be noise-free")
	}
}

func TestFreeRatio(t *testing.T) {
	grid := openGrid(2, 2, 1.0)
	grid.Data[0] = CellOccupied

	if got := grid.FreeRatio(); got != 0.75 {
		t.Fatalf("expected 0.75, got %g", got)
	}
}

func TestLoadGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.yaml")
	content := `width: 2
height: 2
resolution: 0.5
origin: {x: 1.0, y: 2.0, yaw: 0.0}
data: [0, 100, 0, -1]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing map: %v", err)
	}

	grid, err := LoadGrid(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if grid.Width != 2 || grid.Height != 2 {
		t.Fatalf("expected 2x2 grid, got %dx%d", grid.Width, grid.Height)
	}
	if grid.Origin.X != 1.0 || grid.Origin.Y != 2.0 {
		t.Fatalf("unexpected origin: %+v", grid.Origin)
	}
	if !grid.FreeAt(0, 0) || grid.FreeAt(1, 0) {
		t.Fatal("grid data not loaded in row-major order")
	}
}

func TestLoadGrid_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.yaml")
	content := `width: 3
height: 3
resolution: 0.5
data: [0, 0]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing map: %v", err)
	}

	if _, err := LoadGrid(path); err == nil {
		t.Fatal("expected error for inconsistent grid data")
	}
}

func TestLoadGrid_Missing(t *testing.T) {
	if _, err := LoadGrid(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
