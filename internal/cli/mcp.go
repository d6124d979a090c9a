package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	rovermcp "github.com/fieldrover/rovermon/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the rovermon MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rovermon MCP server on stdio",
	Long: `Start the rovermon MCP server on stdio transport.

The server exposes agent telemetry as MCP tools that AI assistants can
call: get_status, get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Snapshots == nil {
			return fmt.Errorf("snapshot store not initialized")
		}

		srv := rovermcp.NewServer(Snapshots, MetricsCalc, AlertEngine, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
