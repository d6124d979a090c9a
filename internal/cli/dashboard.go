package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fieldrover/rovermon/pkg/models"
	"github.com/spf13/cobra"
)

// Dashboard panel indices.
const (
	panelTelemetry = iota
	panelActivity
	panelAlerts
	panelCount
)

// refreshEvery drives the periodic data reload while the dashboard is open.
const refreshEvery = 2 * time.Second

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	snapshot     *models.Snapshot
	activityData *activitySnapshot
	alerts       []alertRow

	// State.
	loading bool
	err     error
}

type activitySnapshot struct {
	samplesCollected int
	batchesPublished int
	batchesSpooled   int
	publishFailures  int
	goalsReached     int
	goalsFailed      int
	eventCount       int
}

type alertRow struct {
	severity string
	message  string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	snapshot *models.Snapshot
	activity *activitySnapshot
	alerts   []alertRow
	err      error
}

type refreshTickMsg time.Time

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	metricNameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	metricValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelTelemetry,
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(loadData, refreshTick())
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(loadData, refreshTick())

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.snapshot = msg.snapshot
		m.activityData = msg.activity
		m.alerts = msg.alerts
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" rovermon Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading && m.snapshot == nil {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	telemetryPanel := m.renderTelemetryPanel()
	activityPanel := m.renderActivityPanel()
	alertsPanel := m.renderAlertsPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Horizontal layout: three columns.
		colWidth := availableWidth / 3
		telemetryPanel = m.applyPanelStyle(panelTelemetry, telemetryPanel, colWidth-4)
		activityPanel = m.applyPanelStyle(panelActivity, activityPanel, colWidth-4)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, telemetryPanel, activityPanel, alertsPanel)
	} else {
		// Vertical layout: stacked.
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		telemetryPanel = m.applyPanelStyle(panelTelemetry, telemetryPanel, panelWidth)
		activityPanel = m.applyPanelStyle(panelActivity, activityPanel, panelWidth)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, telemetryPanel, activityPanel, alertsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderTelemetryPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Telemetry"))
	b.WriteString("\n")

	if m.snapshot == nil {
		b.WriteString("  No snapshot yet.")
		return b.String()
	}

	s := m.snapshot
	b.WriteString(fmt.Sprintf("  %-14s (%.2f, %.2f)\n", "Pose", s.State.Pose.X, s.State.Pose.Y))
	if s.Goal != nil {
		name := s.Goal.Name
		if name == "" {
			name = s.Goal.ID
		}
		b.WriteString(fmt.Sprintf("  %-14s %s\n", "Goal", name))
	} else {
		b.WriteString(fmt.Sprintf("  %-14s none\n", "Goal"))
	}
	b.WriteString("\n")

	for _, d := range s.Metrics {
		name := metricNameStyle.Render(fmt.Sprintf("  %-22s", d.Name))
		value := metricValueStyle.Render(fmt.Sprintf("%8.2f %s", d.Value, d.Unit))
		b.WriteString(name + value + "\n")
	}

	b.WriteString(fmt.Sprintf("\n  as of %s", s.Time.Format("15:04:05")))
	return b.String()
}

func (m dashboardModel) renderActivityPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Activity (24h)"))
	b.WriteString("\n")

	if m.activityData == nil {
		b.WriteString("  No activity recorded.")
		return b.String()
	}

	a := m.activityData
	lines := []struct {
		label string
		value int
	}{
		{"Events", a.eventCount},
		{"Samples", a.samplesCollected},
		{"Published", a.batchesPublished},
		{"Spooled", a.batchesSpooled},
		{"Failures", a.publishFailures},
		{"Goals ok", a.goalsReached},
		{"Goals failed", a.goalsFailed},
	}

	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", l.label, l.value))
	}

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	var result dataLoadedMsg

	if Snapshots != nil {
		snapshot, err := Snapshots.Read()
		if err != nil {
			result.err = fmt.Errorf("loading snapshot: %w", err)
			return result
		}
		result.snapshot = snapshot
	}

	if MetricsCalc != nil {
		since := time.Now().UTC().Add(-24 * time.Hour)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.activity = &activitySnapshot{
			samplesCollected: metrics.SamplesCollected,
			batchesPublished: metrics.BatchesPublished,
			batchesSpooled:   metrics.BatchesSpooled,
			publishFailures:  metrics.PublishFailures,
			goalsReached:     metrics.GoalsReached,
			goalsFailed:      metrics.GoalsFailed,
			eventCount:       metrics.EventCount,
		}
	}

	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}
		for _, a := range alerts {
			result.alerts = append(result.alerts, alertRow{
				severity: string(a.Severity),
				message:  a.Message,
			})
		}
	}

	return result
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the live telemetry dashboard",
	Long: `Open an interactive terminal dashboard showing the latest telemetry
snapshot, agent activity, and active alerts. The view refreshes every
couple of seconds.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running dashboard: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
