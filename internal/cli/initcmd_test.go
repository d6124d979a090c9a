package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupInitTest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	oldBase := BasePath
	oldForce := initForce
	BasePath = dir
	initForce = false
	t.Cleanup(func() {
		BasePath = oldBase
		initForce = oldForce
	})
	return dir
}

func TestInit_WritesDefaultFiles(t *testing.T) {
	dir := setupInitTest(t)

	if err := initCmd.RunE(initCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	config, err := os.ReadFile(filepath.Join(dir, "rovermon.yaml"))
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	if !strings.Contains(string(config), "robot_name: rover") {
		t.Fatalf("unexpected config content:\n%s", config)
	}

	route, err := os.ReadFile(filepath.Join(dir, "route.yaml"))
	if err != nil {
		t.Fatalf("reading route: %v", err)
	}
	if !strings.Contains(string(route), "poses:") {
		t.Fatalf("unexpected route content:\n%s", route)
	}
}

func TestInit_RefusesToOverwrite(t *testing.T) {
	dir := setupInitTest(t)

	if err := os.WriteFile(filepath.Join(dir, "rovermon.yaml"), []byte("robot_name: mine\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if err := initCmd.RunE(initCmd, nil); err == nil {
		t.Fatal("expected error for existing config")
	}

	config, _ := os.ReadFile(filepath.Join(dir, "rovermon.yaml"))
	if !strings.Contains(string(config), "robot_name: mine") {
		t.Fatal("existing config was overwritten")
	}
}

func TestInit_ForceOverwrites(t *testing.T) {
	dir := setupInitTest(t)
	initForce = true

	if err := os.WriteFile(filepath.Join(dir, "rovermon.yaml"), []byte("robot_name: mine\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if err := initCmd.RunE(initCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	config, _ := os.ReadFile(filepath.Join(dir, "rovermon.yaml"))
	if !strings.Contains(string(config), "robot_name: rover") {
		t.Fatal("expected config replaced with the default template")
	}
}
