package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const defaultConfigTemplate = `# rovermon agent configuration
robot_name: rover
sample_interval: 5s

robot:
  # sim runs the built-in simulator; ingest expects the robot to POST its
  # state to /api/state.
  source: sim
  max_speed: 0.5

route:
  # inorder | random | dynamic
  mode: inorder
  file: route.yaml
  # map is required for dynamic mode.
  map: ""
  goal_timeout: 120s

publish:
  enabled: false
  base_url: ""
  api_key: ""
  flush_interval: 10s
  spool_always: false

server:
  enabled: true
  addr: ":8787"

alerts:
  min_obstacle_meters: 0.3
  max_cpu_percent: 90
  max_ram_percent: 90
  goal_stalled_minutes: 10
  publish_fail_streak: 5

notify:
  enabled: false
  webhook_url: ""
`

const defaultRouteTemplate = `version: "1.0"
name: sample-patrol
poses:
  - name: dock
    pose: {x: 0.0, y: 0.0, z: 0.0, yaw: 0.0}
  - name: corridor
    pose: {x: 3.5, y: 0.0, z: 0.0, yaw: 1.57}
  - name: lab-door
    pose: {x: 3.5, y: 4.0, z: 0.0, yaw: 3.14}
`

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default rovermon.yaml and sample route file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if BasePath == "" {
			return fmt.Errorf("base path not initialized")
		}

		configPath := filepath.Join(BasePath, "rovermon.yaml")
		routePath := filepath.Join(BasePath, "route.yaml")

		if !initForce {
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
			}
		}

		if err := os.WriteFile(configPath, []byte(defaultConfigTemplate), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", configPath, err)
		}
		fmt.Printf("Wrote %s\n", configPath)

		if _, err := os.Stat(routePath); os.IsNotExist(err) || initForce {
			if err := os.WriteFile(routePath, []byte(defaultRouteTemplate), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", routePath, err)
			}
			fmt.Printf("Wrote %s\n", routePath)
		}

		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	rootCmd.AddCommand(initCmd)
}
