package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/bale/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Bundle the project and write it to the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			noCache, _ := cmd.Flags().GetBool("no-cache")
			outputMode, _ := cmd.Flags().GetString("output-mode")
			ci, _ := cmd.Flags().GetBool("ci")
			mode, _ := cmd.Flags().GetString("mode")
			configDir, _ := cmd.Flags().GetString("config")

			// If --ci is set, override output-mode to "linear"
			if ci {
				outputMode = "linear"
			}

			return c.app.Build(cmd.Context(), app.RunOptions{
				NoCache:    noCache,
				OutputMode: outputMode,
				Mode:       mode,
				ConfigDir:  configDir,
			})
		},
	}
	cmd.Flags().BoolP("no-cache", "n", false, "Bypass the transform cache and rebuild every unit")
	cmd.Flags().StringP("output-mode", "o", "auto", "Output mode: auto, tui, or linear")
	cmd.Flags().Bool("ci", false, "Use linear output mode (shorthand for --output-mode=linear)")
	cmd.Flags().StringP("mode", "m", "", "Build mode: development or production (defaults to production)")
	cmd.Flags().StringP("config", "c", "", "Directory to start the bale.yaml search from")
	return cmd
}
