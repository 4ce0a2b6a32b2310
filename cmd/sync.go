package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/branger/internal/output"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued offline changes against the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.probeOnce()
		if !a.Engine.Online() {
			return fmt.Errorf("server unreachable; try again when online")
		}

		pending := a.Engine.Pending()
		if pending == 0 {
			output.Info("Nothing to sync.")
			if err := a.Engine.Refresh(); err == nil {
				output.Info("%s", output.RenderItems(a.Engine.Items()))
			}
			return nil
		}

		res := a.Engine.Sync()
		if res.Failed > 0 {
			output.Warning("%d change(s) could not be synced. They will be retried next time.", res.Failed)
		}
		output.Success("Synced %d change(s)", res.Succeeded)
		output.Info("%s", output.RenderItems(a.Engine.Items()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
