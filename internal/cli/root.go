package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// Version returns the version string set at build time.
func Version() string {
	return appVersion
}

var rootCmd = &cobra.Command{
	Use:   "rovermon",
	Short: "rovermon - robot telemetry and monitoring agent",
	Long: `rovermon is an on-robot monitoring agent. It samples robot telemetry
(speed, distance to the nearest obstacle, distance to the active goal, CPU
utilization, RAM usage), streams metric data and operational logs to a
monitoring backend, and drives the robot along a patrol route.

It provides CLI commands for running the agent, inspecting the latest
telemetry, aggregating agent metrics, evaluating alerts, and validating
route files.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rovermon %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
