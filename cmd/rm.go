package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/branger/internal/output"
)

var rmYes bool

var rmCmd = &cobra.Command{
	Use:     "rm <item>",
	Aliases: []string{"delete"},
	Short:   "Delete an item from the list",
	Args:    cobra.ExactArgs(1),
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

		if !rmYes {
			confirmed := false
			form := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Delete %q?", item.Name)).
					Value(&confirmed),
			))
			if err := form.Run(); err != nil {
				return err
			}
			if !confirmed {
				return nil
			}
		}

		if err := a.Engine.DeleteItem(item.ID); err != nil {
			output.Error("change reverted: %v", err)
			return err
		}

		output.Success("Deleted %q", item.Name)
		if !a.Engine.Online() {
			output.Warning("offline: change queued for sync")
		}
		return nil
	},
}

func init() {
	rmCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "skip confirmation")
	rootCmd.AddCommand(rmCmd)
}
