package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldrover/rovermon/pkg/models"
)

const sampleRoute = `version: "1.0"
name: patrol
poses:
  - name: dock
    pose: {x: 0.0, y: 0.0, yaw: 0.0}
  - name: corridor
    pose: {x: 3.5, y: 0.0, yaw: 1.57}
`

func writeRoute(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "route.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing route: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeRoute(t, t.TempDir(), sampleRoute)

	route, err := NewRouteStore().Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route.Name != "patrol" || len(route.Poses) != 2 {
		t.Fatalf("unexpected route: %+v", route)
	}
	if route.Poses[1].Name != "corridor" || route.Poses[1].Pose.X != 3.5 {
		t.Fatalf("unexpected pose: %+v", route.Poses[1])
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := NewRouteStore().Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := writeRoute(t, t.TempDir(), "poses: [unclosed")
	if _, err := NewRouteStore().Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoad_Empty(t *testing.T) {
	path := writeRoute(t, t.TempDir(), "version: \"1.0\"\nposes: []\n")
	if _, err := NewRouteStore().Load(path); err == nil {
		t.Fatal("expected error for a route without poses")
	}
}

func TestValidateRoute_DuplicateNames(t *testing.T) {
	route := &models.RouteFile{
		Poses: []models.RoutePose{
			{Name: "dock"},
			{Name: "dock"},
		},
	}
	if err := ValidateRoute(route); err == nil {
		t.Fatal("expected error for duplicate pose names")
	}
}

func TestValidateRoute_UnnamedPosesAllowed(t *testing.T) {
	route := &models.RouteFile{
		Poses: []models.RoutePose{
			{Pose: models.Pose{X: 1}},
			{Pose: models.Pose{X: 2}},
		},
	}
	if err := ValidateRoute(route); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeRoute(t, dir, sampleRoute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reloaded := make(chan *models.RouteFile, 1)
	go NewRouteStore().Watch(ctx, path,
		func(route *models.RouteFile) {
			select {
			case reloaded <- route:
			default:
			}
		},
		nil,
	)

	// Give the watcher a moment to register, then modify the file.
	time.Sleep(200 * time.Millisecond)
	updated := sampleRoute + "  - name: lab\n    pose: {x: 3.5, y: 4.0, yaw: 3.14}\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewriting route: %v", err)
	}

	select {
	case route := <-reloaded:
		if len(route.Poses) != 3 {
			t.Fatalf("expected 3 poses after reload, got %d", len(route.Poses))
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatch_ReportsReloadErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeRoute(t, dir, sampleRoute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errs := make(chan error, 1)
	go NewRouteStore().Watch(ctx, path,
		func(route *models.RouteFile) {
			t.Error("unexpected reload of a broken route")
		},
		func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	)

	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("poses: [unclosed"), 0o644); err != nil {
		t.Fatalf("rewriting route: %v", err)
	}

	select {
	case <-errs:
	case <-ctx.Done():
		t.Fatal("timed out waiting for reload error")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeRoute(t, dir, sampleRoute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	reloaded := make(chan struct{}, 1)
	go NewRouteStore().Watch(ctx, path,
		func(route *models.RouteFile) {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		},
		nil,
	)

	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatalf("writing other file: %v", err)
	}

	select {
	case <-reloaded:
		t.Fatal("expected no reload for an unrelated file")
	case <-ctx.Done():
	}
}
