package cli

import (
	"context"

	"github.com/fieldrover/rovermon/internal/core"
	"github.com/fieldrover/rovermon/internal/observability"
	"github.com/fieldrover/rovermon/internal/storage"
	"github.com/fieldrover/rovermon/pkg/models"
)

// AgentRunner runs the full agent until the context is cancelled.
// Satisfied by the App.
type AgentRunner interface {
	RunAgent(ctx context.Context) error
}

// Service instances, set during app initialization in app.go.
var (
	BasePath  string
	Config    *models.GlobalConfig
	ConfigMgr core.ConfigurationManager

	Agent     AgentRunner
	Routes    storage.RouteStore
	Snapshots storage.SnapshotManager
	Spool     storage.SpoolManager

	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
