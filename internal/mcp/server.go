// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the agent's telemetry, metrics, and alerts as tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fieldrover/rovermon/internal/observability"
	"github.com/fieldrover/rovermon/pkg/models"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// SnapshotReader provides the latest telemetry snapshot.
type SnapshotReader interface {
	Read() (*models.Snapshot, error)
}

// Server wraps agent services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	snapshots   SnapshotReader
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates an MCP server over the given services. Any of them may
// be nil; the corresponding tool then reports unavailability.
func NewServer(snapshots SnapshotReader, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		snapshots:   snapshots,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "rovermon", Version: version},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type getStatusInput struct{}

type metricValueOutput struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type getStatusOutput struct {
	Time    string              `json:"time"`
	RunID   string              `json:"run_id"`
	PoseX   float64             `json:"pose_x"`
	PoseY   float64             `json:"pose_y"`
	Goal    string              `json:"goal,omitempty"`
	Metrics []metricValueOutput `json:"metrics"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for aggregates (e.g. 7d, 30d, 24h). Defaults to 24h."`
}

type metricsOutput struct {
	SamplesCollected int            `json:"samples_collected"`
	BatchesPublished int            `json:"batches_published"`
	BatchesSpooled   int            `json:"batches_spooled"`
	PublishFailures  int            `json:"publish_failures"`
	GoalsStarted     int            `json:"goals_started"`
	GoalsReached     int            `json:"goals_reached"`
	GoalsFailed      int            `json:"goals_failed"`
	AlertsFired      int            `json:"alerts_fired"`
	EventsByType     map[string]int `json:"events_by_type"`
	EventCount       int            `json:"event_count"`
	OldestEvent      string         `json:"oldest_event,omitempty"`
	NewestEvent      string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_status",
		Description: "Get the latest telemetry snapshot: robot pose, active goal, and current metric values (speed, obstacle distance, goal distance, CPU, RAM).",
	}, s.handleGetStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregates from the agent event log: samples collected, batches published and spooled, goal outcomes, alerts fired.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (obstacle proximity, CPU, RAM, stalled goals, publish failures).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleGetStatus(_ context.Context, _ *gomcp.CallToolRequest, _ getStatusInput) (*gomcp.CallToolResult, getStatusOutput, error) {
	if s.snapshots == nil {
		return errorResult("snapshot store not available"), getStatusOutput{}, nil
	}

	snapshot, err := s.snapshots.Read()
	if err != nil {
		return errorResult(fmt.Sprintf("reading snapshot: %s", err)), getStatusOutput{}, nil
	}
	if snapshot == nil {
		return errorResult("no telemetry snapshot yet: is the agent running?"), getStatusOutput{}, nil
	}

	out := getStatusOutput{
		Time:    snapshot.Time.Format(time.RFC3339),
		RunID:   snapshot.RunID,
		PoseX:   snapshot.State.Pose.X,
		PoseY:   snapshot.State.Pose.Y,
		Metrics: make([]metricValueOutput, len(snapshot.Metrics)),
	}
	if snapshot.Goal != nil {
		out.Goal = snapshot.Goal.ID
	}
	for i, d := range snapshot.Metrics {
		out.Metrics[i] = metricValueOutput{Name: d.Name, Value: d.Value, Unit: d.Unit}
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "24h"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		SamplesCollected: metrics.SamplesCollected,
		BatchesPublished: metrics.BatchesPublished,
		BatchesSpooled:   metrics.BatchesSpooled,
		PublishFailures:  metrics.PublishFailures,
		GoalsStarted:     metrics.GoalsStarted,
		GoalsReached:     metrics.GoalsReached,
		GoalsFailed:      metrics.GoalsFailed,
		AlertsFired:      metrics.AlertsFired,
		EventsByType:     metrics.EventsByType,
		EventCount:       metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{EventsByType: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or
// "24h" into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	value, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || value <= 0 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -value), nil
	case 'h':
		return now.Add(-time.Duration(value) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 24h)", s)
	}
}
