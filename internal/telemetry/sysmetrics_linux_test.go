//go:build linux

package telemetry

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestCPUCollector(t *testing.T) {
	// busy = 100+0+100 = 200, total = 1000
	path := writeFixture(t, "stat", "cpu  100 0 100 700 100 0 0 0 0 0\n")
	c := &cpuCollector{statPath: path}

	// First read primes the delta.
	if _, err := c.Collect(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady on first read, got %v", err)
	}

	// busy = 300, total = 1400: delta busy 100 of delta total 400 = 25%.
	if err := os.WriteFile(path, []byte("cpu  150 0 150 1000 100 0 0 0 0 0\n"), 0o644); err != nil {
		t.Fatalf("rewriting fixture: %v", err)
	}

	datum, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(datum.Value-25) > 1e-9 {
		t.Fatalf("expected 25%%, got %g", datum.Value)
	}
}

func TestCPUCollector_ZeroDelta(t *testing.T) {
	path := writeFixture(t, "stat", "cpu  100 0 100 700 100 0 0 0 0 0\n")
	c := &cpuCollector{statPath: path}

	c.Collect(context.Background()) // prime
	if _, err := c.Collect(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady for zero jiffy delta, got %v", err)
	}
}

func TestCPUCollector_MalformedStat(t *testing.T) {
	path := writeFixture(t, "stat", "not a stat file\n")
	c := &cpuCollector{statPath: path}

	if _, err := c.Collect(context.Background()); err == nil {
		t.Fatal("expected error for malformed stat file")
	}
}

func TestReadCPUCounters(t *testing.T) {
	path := writeFixture(t, "stat", "cpu  10 20 30 40 50 60 70 80\n")

	busy, total, err := readCPUCounters(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 360 {
		t.Fatalf("expected total 360, got %d", total)
	}
	// idle (40) and iowait (50) are not busy.
	if busy != 270 {
		t.Fatalf("expected busy 270, got %d", busy)
	}
}

func TestRAMCollector(t *testing.T) {
	path := writeFixture(t, "meminfo", "MemTotal:       8000 kB\nMemFree:        1000 kB\nMemAvailable:   2000 kB\n")
	c := &ramCollector{meminfoPath: path}

	datum, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(datum.Value-75) > 1e-9 {
		t.Fatalf("expected 75%%, got %g", datum.Value)
	}
}

func TestRAMCollector_MissingMemTotal(t *testing.T) {
	path := writeFixture(t, "meminfo", "MemFree: 1000 kB\n")
	c := &ramCollector{meminfoPath: path}

	if _, err := c.Collect(context.Background()); err == nil {
		t.Fatal("expected error when MemTotal is missing")
	}
}
