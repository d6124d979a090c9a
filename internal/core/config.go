// Package core contains the domain logic for rovermon: configuration,
// occupancy grid handling, goal generation, and route management.
package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fieldrover/rovermon/pkg/models"
	"github.com/spf13/viper"
)

// ConfigurationManager defines the interface for loading and validating
// the agent configuration from rovermon.yaml.
type ConfigurationManager interface {
	LoadConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the directory where rovermon.yaml resides.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// configuration relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultConfig returns a GlobalConfig populated with sensible defaults.
func DefaultConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		RobotName:      "rover",
		SampleInterval: "5s",
		Robot: models.RobotConfig{
			Source:   "sim",
			MaxSpeed: 0.5,
		},
		Route: models.RouteConfig{
			Mode:        models.ModeInOrder,
			File:        "route.yaml",
			GoalTimeout: "120s",
		},
		Publish: models.BackendConfig{
			Enabled:       false,
			FlushInterval: "10s",
		},
		Server: models.ServerConfig{
			Enabled: true,
			Addr:    ":8787",
		},
		Alerts: models.AlertThresholdsConfig{
			MinObstacleMeters:  0.3,
			MaxCPUPercent:      90,
			MaxRAMPercent:      90,
			GoalStalledMinutes: 10,
			PublishFailStreak:  5,
		},
	}
}

// LoadConfig reads rovermon.yaml from the base path using Viper. If the file
// does not exist, defaults are returned.
func (cm *viperConfigManager) LoadConfig() (*models.GlobalConfig, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("rovermon")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	v.SetEnvPrefix("ROVERMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("robot_name", cfg.RobotName)
	v.SetDefault("sample_interval", cfg.SampleInterval)
	v.SetDefault("robot.source", cfg.Robot.Source)
	v.SetDefault("robot.max_speed", cfg.Robot.MaxSpeed)
	v.SetDefault("route.mode", string(cfg.Route.Mode))
	v.SetDefault("route.file", cfg.Route.File)
	v.SetDefault("route.map", cfg.Route.Map)
	v.SetDefault("route.goal_timeout", cfg.Route.GoalTimeout)
	v.SetDefault("publish.enabled", cfg.Publish.Enabled)
	v.SetDefault("publish.base_url", cfg.Publish.BaseURL)
	v.SetDefault("publish.api_key", cfg.Publish.APIKey)
	v.SetDefault("publish.flush_interval", cfg.Publish.FlushInterval)
	v.SetDefault("publish.spool_always", cfg.Publish.SpoolAlways)
	v.SetDefault("server.enabled", cfg.Server.Enabled)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("alerts.min_obstacle_meters", cfg.Alerts.MinObstacleMeters)
	v.SetDefault("alerts.max_cpu_percent", cfg.Alerts.MaxCPUPercent)
	v.SetDefault("alerts.max_ram_percent", cfg.Alerts.MaxRAMPercent)
	v.SetDefault("alerts.goal_stalled_minutes", cfg.Alerts.GoalStalledMinutes)
	v.SetDefault("alerts.publish_fail_streak", cfg.Alerts.PublishFailStreak)
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.webhook_url", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file found — return defaults.
			return cfg, nil
		}
		return nil, fmt.Errorf("reading rovermon.yaml: %w", err)
	}

	cfg.RobotName = v.GetString("robot_name")
	cfg.SampleInterval = v.GetString("sample_interval")
	cfg.Robot.Source = v.GetString("robot.source")
	cfg.Robot.MaxSpeed = v.GetFloat64("robot.max_speed")
	cfg.Route.Mode = models.RouteMode(v.GetString("route.mode"))
	cfg.Route.File = v.GetString("route.file")
	cfg.Route.Map = v.GetString("route.map")
	cfg.Route.GoalTimeout = v.GetString("route.goal_timeout")
	cfg.Publish.Enabled = v.GetBool("publish.enabled")
	cfg.Publish.BaseURL = v.GetString("publish.base_url")
	cfg.Publish.APIKey = v.GetString("publish.api_key")
	cfg.Publish.FlushInterval = v.GetString("publish.flush_interval")
	cfg.Publish.SpoolAlways = v.GetBool("publish.spool_always")
	cfg.Server.Enabled = v.GetBool("server.enabled")
	cfg.Server.Addr = v.GetString("server.addr")
	cfg.Alerts.MinObstacleMeters = v.GetFloat64("alerts.min_obstacle_meters")
	cfg.Alerts.MaxCPUPercent = v.GetFloat64("alerts.max_cpu_percent")
	cfg.Alerts.MaxRAMPercent = v.GetFloat64("alerts.max_ram_percent")
	cfg.Alerts.GoalStalledMinutes = v.GetInt("alerts.goal_stalled_minutes")
	cfg.Alerts.PublishFailStreak = v.GetInt("alerts.publish_fail_streak")
	cfg.Notify.Enabled = v.GetBool("notify.enabled")
	cfg.Notify.WebhookURL = v.GetString("notify.webhook_url")

	return cfg, nil
}

// ValidateConfig checks the configuration for invalid values and returns a
// clear error message identifying every problem found.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.RobotName == "" {
		errs = append(errs, "robot_name must not be empty")
	}

	if d, err := time.ParseDuration(cfg.SampleInterval); err != nil {
		errs = append(errs, fmt.Sprintf("sample_interval %q is not a valid duration", cfg.SampleInterval))
	} else if d < 100*time.Millisecond {
		errs = append(errs, fmt.Sprintf("sample_interval %s is below the 100ms minimum", d))
	}

	switch cfg.Robot.Source {
	case "sim", "ingest":
	default:
		errs = append(errs, fmt.Sprintf("robot.source %q is invalid, must be sim or ingest", cfg.Robot.Source))
	}

	if cfg.Robot.Source == "sim" && cfg.Robot.MaxSpeed <= 0 {
		errs = append(errs, fmt.Sprintf("robot.max_speed must be positive, got %g", cfg.Robot.MaxSpeed))
	}

	if !cfg.Route.Mode.Valid() {
		errs = append(errs, fmt.Sprintf("route.mode %q is invalid, must be one of: inorder, random, dynamic", cfg.Route.Mode))
	}
	if cfg.Route.Mode == models.ModeDynamic && cfg.Route.Map == "" {
		errs = append(errs, "route.map is required in dynamic mode")
	}
	if cfg.Route.Mode != models.ModeDynamic && cfg.Route.File == "" {
		errs = append(errs, fmt.Sprintf("route.file is required in %s mode", cfg.Route.Mode))
	}
	if cfg.Route.GoalTimeout != "" {
		if _, err := time.ParseDuration(cfg.Route.GoalTimeout); err != nil {
			errs = append(errs, fmt.Sprintf("route.goal_timeout %q is not a valid duration", cfg.Route.GoalTimeout))
		}
	}

	if cfg.Publish.Enabled {
		if cfg.Publish.BaseURL == "" {
			errs = append(errs, "publish.base_url is required when publishing is enabled")
		} else if u, err := url.Parse(cfg.Publish.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("publish.base_url %q is not an absolute URL", cfg.Publish.BaseURL))
		}
	}
	// Checked even when publishing is disabled so a typo surfaces before
	// publishing is turned on.
	if cfg.Publish.FlushInterval != "" {
		if _, err := time.ParseDuration(cfg.Publish.FlushInterval); err != nil {
			errs = append(errs, fmt.Sprintf("publish.flush_interval %q is not a valid duration", cfg.Publish.FlushInterval))
		}
	}

	if cfg.Alerts.MinObstacleMeters < 0 {
		errs = append(errs, fmt.Sprintf("alerts.min_obstacle_meters must be non-negative, got %g", cfg.Alerts.MinObstacleMeters))
	}
	if cfg.Alerts.MaxCPUPercent <= 0 || cfg.Alerts.MaxCPUPercent > 100 {
		errs = append(errs, fmt.Sprintf("alerts.max_cpu_percent %g is invalid, must be in (0, 100]", cfg.Alerts.MaxCPUPercent))
	}
	if cfg.Alerts.MaxRAMPercent <= 0 || cfg.Alerts.MaxRAMPercent > 100 {
		errs = append(errs, fmt.Sprintf("alerts.max_ram_percent %g is invalid, must be in (0, 100]", cfg.Alerts.MaxRAMPercent))
	}

	if cfg.Notify.Enabled && cfg.Notify.WebhookURL == "" {
		errs = append(errs, "notify.webhook_url is required when notifications are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
