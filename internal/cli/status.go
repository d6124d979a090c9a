package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest telemetry snapshot",
	Long: `Print the most recent telemetry snapshot written by the agent: robot pose,
active goal, and the latest value of every metric.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Snapshots == nil {
			return fmt.Errorf("snapshot store not initialized")
		}

		snapshot, err := Snapshots.Read()
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}
		if snapshot == nil {
			fmt.Println("No telemetry snapshot yet. Is the agent running?")
			return nil
		}

		if statusJSON {
			data, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting snapshot as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Telemetry at %s (run %s)\n\n", snapshot.Time.Format(time.RFC3339), snapshot.RunID)
		fmt.Printf("  %-24s (%.2f, %.2f) yaw %.2f\n", "Pose:", snapshot.State.Pose.X, snapshot.State.Pose.Y, snapshot.State.Pose.Yaw)
		if snapshot.Goal != nil {
			name := snapshot.Goal.Name
			if name == "" {
				name = snapshot.Goal.ID
			}
			fmt.Printf("  %-24s %s at (%.2f, %.2f)\n", "Active goal:", name, snapshot.Goal.Pose.X, snapshot.Goal.Pose.Y)
		} else {
			fmt.Printf("  %-24s none\n", "Active goal:")
		}

		fmt.Println("\n  Metrics:")
		for _, d := range snapshot.Metrics {
			fmt.Printf("    %-22s %8.2f %s\n", d.Name+":", d.Value, d.Unit)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output the snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}
