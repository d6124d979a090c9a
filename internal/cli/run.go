package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the telemetry agent",
	Long: `Start the agent: the telemetry sampler, the backend publisher, the route
manager, the ingest/stream server, and (when configured) the robot
simulator. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Agent == nil {
			return fmt.Errorf("agent not initialized")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err := Agent.RunAgent(ctx)
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("running agent: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
