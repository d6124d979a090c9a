// Package internal provides the App struct that wires all components of the
// rovermon agent together and initializes the CLI layer.
package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldrover/rovermon/internal/cli"
	"github.com/fieldrover/rovermon/internal/core"
	"github.com/fieldrover/rovermon/internal/observability"
	"github.com/fieldrover/rovermon/internal/publish"
	"github.com/fieldrover/rovermon/internal/server"
	"github.com/fieldrover/rovermon/internal/sim"
	"github.com/fieldrover/rovermon/internal/storage"
	"github.com/fieldrover/rovermon/internal/telemetry"
	"github.com/fieldrover/rovermon/pkg/models"
)

// File names created under the base path.
const (
	eventLogFile = ".rovermon_events.jsonl"
	snapshotFile = ".rovermon_snapshot.json"
	spoolFile    = ".rovermon_spool.jsonl"
)

// App holds all service dependencies for the rovermon agent.
type App struct {
	BasePath string
	Config   *models.GlobalConfig

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Storage layer
	Routes    storage.RouteStore
	Snapshots storage.SnapshotManager
	Spool     storage.SpoolManager

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components of the rovermon agent. basePath is
// the directory holding rovermon.yaml and the agent's data files.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Storage layer ---
	app.Routes = storage.NewRouteStore()
	app.Snapshots = storage.NewSnapshotManager(filepath.Join(basePath, snapshotFile))
	app.Spool = storage.NewSpool(filepath.Join(basePath, spoolFile))

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(basePath, eventLogFile))
	if err != nil {
		// Non-fatal: disable observability if the log can't be created.
		app.EventLog = nil
	}
	if app.EventLog != nil {
		thresholds := observability.DefaultAlertThresholds()
		if cfg.Alerts.MinObstacleMeters > 0 {
			thresholds.MinObstacleMeters = cfg.Alerts.MinObstacleMeters
		}
		if cfg.Alerts.MaxCPUPercent > 0 {
			thresholds.MaxCPUPercent = cfg.Alerts.MaxCPUPercent
		}
		if cfg.Alerts.MaxRAMPercent > 0 {
			thresholds.MaxRAMPercent = cfg.Alerts.MaxRAMPercent
		}
		if cfg.Alerts.GoalStalledMinutes > 0 {
			thresholds.GoalStalledMinutes = cfg.Alerts.GoalStalledMinutes
		}
		if cfg.Alerts.PublishFailStreak > 0 {
			thresholds.PublishFailStreak = cfg.Alerts.PublishFailStreak
		}
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, app.Snapshots, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.Notify.Enabled && cfg.Notify.WebhookURL != "" {
		app.Notifier = observability.NewWebhookNotifier(cfg.Notify.WebhookURL)
	}

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.ConfigMgr = app.ConfigMgr
	cli.Agent = app
	cli.Routes = app.Routes
	cli.Snapshots = app.Snapshots
	cli.Spool = app.Spool
	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// Close releases resources held by the App, such as the event log handle.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// RunAgent assembles and runs the full agent: simulator (when configured),
// route manager, sampler, publisher, and the HTTP server. It blocks until
// the context is cancelled or a component fails.
func (a *App) RunAgent(ctx context.Context) error {
	cfg := a.Config
	runID := uuid.NewString()

	sampleInterval, err := time.ParseDuration(cfg.SampleInterval)
	if err != nil {
		return fmt.Errorf("parsing sample_interval: %w", err)
	}

	events := a.eventLogger()
	hub := telemetry.NewStateHub()

	// --- Occupancy grid (optional) ---
	var grid *core.OccupancyGrid
	if cfg.Route.Map != "" {
		grid, err = core.LoadGrid(cfg.Route.Map)
		if err != nil {
			return fmt.Errorf("loading occupancy map: %w", err)
		}
	}

	// --- Simulator and route manager ---
	// The route manager only runs when the agent drives the simulated
	// robot. Robots pushing state over ingest navigate on their own.
	var robot *sim.Robot
	var routeMgr core.RouteManager
	if cfg.Robot.Source == "sim" {
		robot, err = sim.New(hub, grid, cfg.Robot.MaxSpeed)
		if err != nil {
			return fmt.Errorf("creating simulator: %w", err)
		}

		source, err := a.goalSource(cfg, grid)
		if err != nil {
			return err
		}

		var goalTimeout time.Duration
		if cfg.Route.GoalTimeout != "" {
			goalTimeout, err = time.ParseDuration(cfg.Route.GoalTimeout)
			if err != nil {
				return fmt.Errorf("parsing route.goal_timeout: %w", err)
			}
		}

		routeMgr, err = core.NewRouteManager(core.RouteManagerConfig{
			Source:      source,
			Navigator:   robot,
			GoalTimeout: goalTimeout,
			Events:      events,
		})
		if err != nil {
			return fmt.Errorf("creating route manager: %w", err)
		}
	}

	// --- Publisher ---
	var metricsClient publish.MetricsPutter
	var logsClient publish.LogsPutter
	if cfg.Publish.Enabled {
		metricsClient = publish.NewMetricsClient(cfg.Publish.BaseURL, cfg.Publish.APIKey)
		logsClient = publish.NewLogsClient(cfg.Publish.BaseURL, cfg.Publish.APIKey, cfg.RobotName)
	}
	var flushInterval time.Duration
	if cfg.Publish.FlushInterval != "" {
		flushInterval, err = time.ParseDuration(cfg.Publish.FlushInterval)
		if err != nil {
			return fmt.Errorf("parsing publish.flush_interval: %w", err)
		}
	}
	publisher, err := publish.NewPublisher(publish.PublisherConfig{
		Metrics:     metricsClient,
		Logs:        logsClient,
		Spool:       a.Spool,
		Events:      events,
		Enabled:     cfg.Publish.Enabled,
		SpoolAlways: cfg.Publish.SpoolAlways,
		Interval:    flushInterval,
	})
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}

	// --- Collectors and sampler ---
	collectors := []telemetry.Collector{
		telemetry.NewSpeedCollector(hub),
		telemetry.NewObstacleCollector(hub),
		telemetry.NewCPUCollector(),
		telemetry.NewRAMCollector(),
	}
	if routeMgr != nil {
		collectors = append(collectors, telemetry.NewGoalDistanceCollector(hub, routeMgr))
	}

	samplerCfg := telemetry.SamplerConfig{
		RunID:      runID,
		RobotName:  cfg.RobotName,
		Interval:   sampleInterval,
		Collectors: collectors,
		Source:     hub,
		Metrics:    publisher,
		Logs:       publisher,
		Snapshots:  a.Snapshots,
		Events:     events,
	}
	if routeMgr != nil {
		samplerCfg.Goals = routeMgr
	}
	sampler, err := telemetry.NewSampler(samplerCfg)
	if err != nil {
		return fmt.Errorf("creating sampler: %w", err)
	}

	// --- HTTP server ---
	var srv *server.Server
	if cfg.Server.Enabled {
		srv, err = server.New(cfg.Server.Addr, hub, a.Snapshots)
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}
	}

	if events != nil {
		_ = events.LogEvent(observability.EventAgentStarted, map[string]any{
			"run_id": runID,
			"robot":  cfg.RobotName,
			"source": cfg.Robot.Source,
		})
		defer func() {
			_ = events.LogEvent(observability.EventAgentStopped, map[string]any{"run_id": runID})
		}()
	}

	// --- Run everything ---
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(runCtx); err != nil && runCtx.Err() == nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	start("publisher", publisher.Run)
	start("sampler", sampler.Run)
	if robot != nil {
		start("simulator", robot.Run)
	}
	if routeMgr != nil {
		start("route manager", routeMgr.Run)
		if cfg.Route.Mode != models.ModeDynamic && cfg.Route.File != "" {
			start("route watcher", func(ctx context.Context) error {
				return a.watchRoute(ctx, cfg, routeMgr, events)
			})
		}
	}
	if srv != nil {
		start("server", srv.Run)
	}
	start("alert loop", func(ctx context.Context) error {
		return a.alertLoop(ctx, events)
	})

	<-runCtx.Done()
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

// goalSource builds the goal source for the configured route mode.
func (a *App) goalSource(cfg *models.GlobalConfig, grid *core.OccupancyGrid) (core.GoalSource, error) {
	switch cfg.Route.Mode {
	case models.ModeDynamic:
		gen, err := core.NewGoalGenerator(grid, nil)
		if err != nil {
			return nil, fmt.Errorf("creating goal generator: %w", err)
		}
		return gen, nil
	case models.ModeInOrder:
		route, err := a.Routes.Load(a.routeFilePath(cfg))
		if err != nil {
			return nil, fmt.Errorf("loading route: %w", err)
		}
		return core.NewInOrderSource(route.Poses)
	case models.ModeRandom:
		route, err := a.Routes.Load(a.routeFilePath(cfg))
		if err != nil {
			return nil, fmt.Errorf("loading route: %w", err)
		}
		return core.NewRandomSource(route.Poses, nil)
	default:
		return nil, fmt.Errorf("route mode %q unknown", cfg.Route.Mode)
	}
}

// watchRoute hot-reloads the route file into the running route manager.
func (a *App) watchRoute(ctx context.Context, cfg *models.GlobalConfig, routeMgr core.RouteManager, events core.EventLogger) error {
	path := a.routeFilePath(cfg)
	err := a.Routes.Watch(ctx, path,
		func(route *models.RouteFile) {
			var source core.GoalSource
			var err error
			if cfg.Route.Mode == models.ModeRandom {
				source, err = core.NewRandomSource(route.Poses, nil)
			} else {
				source, err = core.NewInOrderSource(route.Poses)
			}
			if err != nil {
				return
			}
			routeMgr.SetSource(source)
			if events != nil {
				_ = events.LogEvent("route.reloaded", map[string]any{"poses": len(route.Poses)})
			}
		},
		func(err error) {
			if events != nil {
				_ = events.LogEvent("route.reload_failed", map[string]any{"error": err.Error()})
			}
		},
	)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// alertLoop periodically evaluates alert conditions, records newly fired
// alerts, and notifies the webhook when one is configured.
func (a *App) alertLoop(ctx context.Context, events core.EventLogger) error {
	if a.AlertEngine == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			alerts, err := a.AlertEngine.Evaluate()
			if err != nil {
				continue
			}
			var fresh []observability.Alert
			for _, alert := range alerts {
				if seen[alert.ID] {
					continue
				}
				seen[alert.ID] = true
				fresh = append(fresh, alert)
				if events != nil {
					_ = events.LogEvent(observability.EventAlertFired, map[string]any{
						"alert_id":  alert.ID,
						"condition": alert.Condition,
						"severity":  string(alert.Severity),
					})
				}
			}
			if a.Notifier != nil && len(fresh) > 0 {
				_ = a.Notifier.Notify(fresh)
			}
		}
	}
}

// eventLogger adapts the observability event log to the core.EventLogger
// interface used across packages. Returns nil when observability is
// disabled.
func (a *App) eventLogger() core.EventLogger {
	if a.EventLog == nil {
		return nil
	}
	return &eventLogAdapter{log: a.EventLog}
}

// routeFilePath resolves the route file relative to the base path.
func (a *App) routeFilePath(cfg *models.GlobalConfig) string {
	if filepath.IsAbs(cfg.Route.File) {
		return cfg.Route.File
	}
	return filepath.Join(a.BasePath, cfg.Route.File)
}

// ResolveBasePath determines the base path for the agent's data directory.
// It checks the ROVERMON_HOME env var, then walks up from the current
// directory looking for rovermon.yaml, and falls back to the current
// directory.
func ResolveBasePath() string {
	if home := os.Getenv("ROVERMON_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "rovermon.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}

// --- Adapters ---

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	return a.log.Append(observability.Event{
		Time:    time.Now().UTC(),
		Level:   "INFO",
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
