package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/branger/internal/output"
)

var addDescription string

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an item to the list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(strings.Join(args, " "))
		if name == "" {
			return cmd.Help()
		}

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.probeOnce()
		if err := a.Engine.AddItem(name, strings.TrimSpace(addDescription)); err != nil {
			return err
		}

		if a.Engine.Online() {
			output.Success("Added %q", name)
		} else {
			output.Success("Added %q (offline, will sync when reconnected)", name)
		}
		return nil
	},
}

func init() {
	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "optional item description")
	rootCmd.AddCommand(addCmd)
}
