package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "obstacled",
	Short: "Obstacle registry server",
	Long: `obstacled holds named polyhedra and collision lists and hands the
active obstacle set to the path planner. Clients drive it over gRPC,
either call by call or with scene scripts.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (TOML); defaults are used when empty")
}
