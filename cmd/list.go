package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/branger/internal/output"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show the shopping list",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.probeOnce()
		if a.Engine.Online() {
			if err := a.Engine.Refresh(); err != nil {
				output.Warning("could not refresh from server: %v", err)
			}
		} else {
			output.OfflineBanner()
		}

		output.Info("%s", output.RenderItems(a.Engine.Items()))

		if n := a.Engine.Pending(); n > 0 {
			output.Warning("%d change(s) waiting to sync", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
