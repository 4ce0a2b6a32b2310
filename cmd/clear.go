package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/branger/internal/output"
)

var clearCheckedCmd = &cobra.Command{
	Use:   "clear-checked",
	Short: "Delete all checked items",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		items := loadItems(a)
		checked := 0
		for _, it := range items {
			if it.Checked {
				checked++
			}
		}
		if checked == 0 {
			output.Info("Nothing to clear.")
			return nil
		}

		if err := a.Engine.ClearChecked(); err != nil {
			output.Error("change reverted: %v", err)
			return err
		}

		output.Success("Cleared %d checked item(s)", checked)
		if !a.Engine.Online() {
			output.Warning("offline: changes queued for sync")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCheckedCmd)
}
