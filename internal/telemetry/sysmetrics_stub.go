//go:build !linux

package telemetry

import (
	"context"
	"fmt"

	"github.com/fieldrover/rovermon/pkg/models"
)

// Host CPU and RAM sampling reads /proc, which only exists on linux. On
// other platforms the collectors report not-ready so the sampler skips
// them without logging.
type stubCollector struct {
	name string
}

// NewCPUCollector creates a Collector reporting CPU utilization percent.
func NewCPUCollector() Collector {
	return &stubCollector{name: models.MetricCPUUtilization}
}

// NewRAMCollector creates a Collector reporting RAM usage percent.
func NewRAMCollector() Collector {
	return &stubCollector{name: models.MetricRAMUsage}
}

func (c *stubCollector) Name() string { return c.name }

func (c *stubCollector) Collect(ctx context.Context) (models.MetricDatum, error) {
	return models.MetricDatum{}, fmt.Errorf("%s: not supported on this platform: %w", c.name, ErrNotReady)
}
