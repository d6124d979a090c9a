package models

// GlobalConfig holds agent-wide settings read from rovermon.yaml via Viper.
type GlobalConfig struct {
	RobotName      string `yaml:"robot_name" mapstructure:"robot_name"`
	SampleInterval string `yaml:"sample_interval" mapstructure:"sample_interval"`

	Robot   RobotConfig           `yaml:"robot" mapstructure:"robot"`
	Route   RouteConfig           `yaml:"route" mapstructure:"route"`
	Publish BackendConfig         `yaml:"publish" mapstructure:"publish"`
	Server  ServerConfig          `yaml:"server" mapstructure:"server"`
	Alerts  AlertThresholdsConfig `yaml:"alerts" mapstructure:"alerts"`
	Notify  NotifyConfig          `yaml:"notify" mapstructure:"notify"`
}

// RobotConfig selects where robot state comes from.
type RobotConfig struct {
	// Source is "sim" for the built-in simulator or "ingest" when the robot
	// pushes state to the HTTP ingest endpoint.
	Source   string  `yaml:"source" mapstructure:"source"`
	MaxSpeed float64 `yaml:"max_speed" mapstructure:"max_speed"` // m/s, simulator only
}

// RouteConfig configures the route manager.
type RouteConfig struct {
	Mode RouteMode `yaml:"mode" mapstructure:"mode"`
	// File is the path to the route YAML, required for inorder and random modes.
	File string `yaml:"file" mapstructure:"file"`
	// Map is the path to the occupancy grid YAML, required for dynamic mode.
	Map string `yaml:"map" mapstructure:"map"`
	// GoalTimeout bounds how long the navigator may spend on one goal,
	// e.g. "120s".
	GoalTimeout string `yaml:"goal_timeout" mapstructure:"goal_timeout"`
}

// BackendConfig configures the monitoring backend clients.
type BackendConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	APIKey        string `yaml:"api_key" mapstructure:"api_key"`
	FlushInterval string `yaml:"flush_interval" mapstructure:"flush_interval"`
	// SpoolAlways keeps writing batches to the spool even when publishing is
	// disabled, so nothing is lost during backend maintenance windows.
	SpoolAlways bool `yaml:"spool_always" mapstructure:"spool_always"`
}

// ServerConfig configures the ingest/stream HTTP server.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// AlertThresholdsConfig configures when alerts fire.
type AlertThresholdsConfig struct {
	MinObstacleMeters  float64 `yaml:"min_obstacle_meters" mapstructure:"min_obstacle_meters"`
	MaxCPUPercent      float64 `yaml:"max_cpu_percent" mapstructure:"max_cpu_percent"`
	MaxRAMPercent      float64 `yaml:"max_ram_percent" mapstructure:"max_ram_percent"`
	GoalStalledMinutes int     `yaml:"goal_stalled_minutes" mapstructure:"goal_stalled_minutes"`
	PublishFailStreak  int     `yaml:"publish_fail_streak" mapstructure:"publish_fail_streak"`
}

// NotifyConfig configures the alert webhook.
type NotifyConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}
