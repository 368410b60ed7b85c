package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/night-light/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "night-light",
	Short: "Crosswalk nighttime lighting-contrast pipeline",
	Long:  "Derives crossing centers from crosswalk polygons and street centerlines, places nearby streetlights on the approach or far side, and labels each center with a lighting-contrast heuristic.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
