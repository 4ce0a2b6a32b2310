package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/branger/internal/output"
)

var checkCmd = &cobra.Command{
	Use:   "check <item>",
	Short: "Toggle an item's checked state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		item, err := findItem(loadItems(a), args[0])
		if err != nil {
			return err
		}

		if err := a.Engine.ToggleItem(item.ID); err != nil {
			output.Error("change reverted: %v", err)
			return err
		}

		if item.Checked {
			output.Success("Unchecked %q", item.Name)
		} else {
			output.Success("Checked %q", item.Name)
		}
		if !a.Engine.Online() {
			output.Warning("offline: change queued for sync")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
