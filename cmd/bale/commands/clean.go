package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/bale/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the transform cache and build output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			output, _ := cmd.Flags().GetBool("output")
			all, _ := cmd.Flags().GetBool("all")
			configDir, _ := cmd.Flags().GetString("config")

			opts := app.CleanOptions{ConfigDir: configDir}

			switch {
			case all:
				opts.Store = true
				opts.Output = true
			case output:
				opts.Output = true
			default:
				// Default behavior: clean the transform cache
				opts.Store = true
			}

			return c.app.Clean(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolP("output", "o", false, "Remove the output directory instead of the cache")
	cmd.Flags().BoolP("all", "a", false, "Remove both the transform cache and the output directory")
	cmd.Flags().StringP("config", "c", "", "Directory to start the bale.yaml search from")

	return cmd
}
