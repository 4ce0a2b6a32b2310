package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/branger/internal/appconfig"
	"github.com/marcus/branger/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, selected list, and pending changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		cfg, err := appconfig.Load()
		if err != nil {
			return err
		}

		a.probeOnce()
		if a.Engine.Online() {
			output.Success("online (%s)", appconfig.ServerURL())
		} else {
			output.Warning("offline (%s)", appconfig.ServerURL())
		}
		output.Info("list: %s", cfg.ListID)
		output.Info("device: %s", cfg.DeviceID)
		output.Info("pending changes: %d", a.Engine.Pending())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
