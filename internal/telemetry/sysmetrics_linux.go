//go:build linux

package telemetry

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fieldrover/rovermon/pkg/models"
)

const (
	procStatPath    = "/proc/stat"
	procMeminfoPath = "/proc/meminfo"
)

// cpuCollector reports host CPU utilization as the busy share of the jiffy
// delta between consecutive reads of /proc/stat. The first read primes the
// delta and returns ErrNotReady.
type cpuCollector struct {
	statPath string

	mu        sync.Mutex
	prevBusy  uint64
	prevTotal uint64
	primed    bool
}

// NewCPUCollector creates a Collector reporting CPU utilization percent.
func NewCPUCollector() Collector {
	return &cpuCollector{statPath: procStatPath}
}

func (c *cpuCollector) Name() string { return models.MetricCPUUtilization }

func (c *cpuCollector) Collect(ctx context.Context) (models.MetricDatum, error) {
	busy, total, err := readCPUCounters(c.statPath)
	if err != nil {
		return models.MetricDatum{}, fmt.Errorf("%s: %w", c.Name(), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.primed {
		c.prevBusy, c.prevTotal = busy, total
		c.primed = true
		return models.MetricDatum{}, fmt.Errorf("%s: priming delta: %w", c.Name(), ErrNotReady)
	}

	dBusy := busy - c.prevBusy
	dTotal := total - c.prevTotal
	c.prevBusy, c.prevTotal = busy, total

	if dTotal == 0 {
		return models.MetricDatum{}, fmt.Errorf("%s: zero jiffy delta: %w", c.Name(), ErrNotReady)
	}

	return models.MetricDatum{
		Name:      models.MetricCPUUtilization,
		Value:     float64(dBusy) / float64(dTotal) * 100,
		Unit:      models.UnitPercent,
		Timestamp: time.Now().UTC(),
	}, nil
}

// readCPUCounters parses the aggregate cpu line of /proc/stat and returns
// busy and total jiffy counters.
func readCPUCounters(path string) (busy, total uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, 0, fmt.Errorf("reading %s: empty file", path)
	}

	// First line: "cpu  user nice system idle iowait irq softirq steal ..."
	fields := strings.Fields(scanner.Text())
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, fmt.Errorf("parsing %s: unexpected first line", path)
	}

	var values []uint64
	for _, field := range fields[1:] {
		v, parseErr := strconv.ParseUint(field, 10, 64)
		if parseErr != nil {
			break
		}
		values = append(values, v)
	}
	if len(values) < 4 {
		return 0, 0, fmt.Errorf("parsing %s: too few counters", path)
	}

	for i, v := range values {
		total += v
		// idle (3) and iowait (4) are the non-busy counters.
		if i != 3 && i != 4 {
			busy += v
		}
	}
	return busy, total, nil
}

// ramCollector reports host memory usage percent from /proc/meminfo.
type ramCollector struct {
	meminfoPath string
}

// NewRAMCollector creates a Collector reporting RAM usage percent.
func NewRAMCollector() Collector {
	return &ramCollector{meminfoPath: procMeminfoPath}
}

func (c *ramCollector) Name() string { return models.MetricRAMUsage }

func (c *ramCollector) Collect(ctx context.Context) (models.MetricDatum, error) {
	memTotal, memAvailable, err := readMeminfo(c.meminfoPath)
	if err != nil {
		return models.MetricDatum{}, fmt.Errorf("%s: %w", c.Name(), err)
	}
	if memTotal == 0 {
		return models.MetricDatum{}, fmt.Errorf("%s: MemTotal is zero", c.Name())
	}

	used := float64(memTotal-memAvailable) / float64(memTotal) * 100
	return models.MetricDatum{
		Name:      models.MetricRAMUsage,
		Value:     used,
		Unit:      models.UnitPercent,
		Timestamp: time.Now().UTC(),
	}, nil
}

// readMeminfo extracts MemTotal and MemAvailable (in kB) from /proc/meminfo.
func readMeminfo(path string) (memTotal, memAvailable uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			memTotal, _ = strconv.ParseUint(fields[1], 10, 64)
		case "MemAvailable:":
			memAvailable, _ = strconv.ParseUint(fields[1], 10, 64)
		}
		if memTotal > 0 && memAvailable > 0 {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("scanning %s: %w", path, err)
	}
	if memTotal == 0 {
		return 0, 0, fmt.Errorf("parsing %s: MemTotal not found", path)
	}
	return memTotal, memAvailable, nil
}
