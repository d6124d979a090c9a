package cli

import (
	"fmt"

	"github.com/fieldrover/rovermon/internal/core"
	"github.com/spf13/cobra"
)

var previewCount int

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Inspect route files and goal generation",
}

var routeValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a route file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Routes == nil {
			return fmt.Errorf("route store not initialized")
		}

		route, err := Routes.Load(args[0])
		if err != nil {
			return fmt.Errorf("validating route: %w", err)
		}

		fmt.Printf("Route %q is valid: %d pose(s)\n", routeDisplayName(route.Name, args[0]), len(route.Poses))
		for i, p := range route.Poses {
			name := p.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			fmt.Printf("  %-16s (%.2f, %.2f) yaw %.2f\n", name, p.Pose.X, p.Pose.Y, p.Pose.Yaw)
		}
		return nil
	},
}

var routePreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Dry-run dynamic goal generation against the configured map",
	Long: `Load the occupancy grid from route.map and generate sample goals the way
dynamic mode would, without sending anything to the robot.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Config == nil {
			return fmt.Errorf("configuration not initialized")
		}
		if Config.Route.Map == "" {
			return fmt.Errorf("route.map is not configured")
		}

		grid, err := core.LoadGrid(Config.Route.Map)
		if err != nil {
			return fmt.Errorf("loading map: %w", err)
		}

		if ratio := grid.FreeRatio(); ratio < 0.05 {
			fmt.Printf("Warning: only %.1f%% of the map is free space; goal generation may fail.\n\n", ratio*100)
		}

		gen, err := core.NewGoalGenerator(grid, nil)
		if err != nil {
			return fmt.Errorf("creating goal generator: %w", err)
		}

		fmt.Printf("Generating %d goal(s) from %dx%d grid (%.2fm/cell):\n\n", previewCount, grid.Width, grid.Height, grid.Resolution)
		for i := 0; i < previewCount; i++ {
			goal, err := gen.Next()
			if err != nil {
				return fmt.Errorf("generating goal %d: %w", i+1, err)
			}
			fmt.Printf("  %2d: (%.2f, %.2f)\n", i+1, goal.Pose.X, goal.Pose.Y)
		}
		return nil
	},
}

func routeDisplayName(name, path string) string {
	if name != "" {
		return name
	}
	return path
}

func init() {
	routePreviewCmd.Flags().IntVar(&previewCount, "count", 5, "Number of goals to generate")
	routeCmd.AddCommand(routeValidateCmd)
	routeCmd.AddCommand(routePreviewCmd)
	rootCmd.AddCommand(routeCmd)
}
