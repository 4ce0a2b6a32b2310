package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/branger/internal/appconfig"
	"github.com/marcus/branger/internal/output"
	"github.com/marcus/branger/internal/remote"
)

var (
	initName   string
	initListID string
	initServer string
	initAPIKey string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or select a shopping list and save it as the default",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := appconfig.Load()
		if err != nil {
			return err
		}
		if initServer != "" {
			cfg.ServerURL = initServer
		}
		if initAPIKey != "" {
			cfg.APIKey = initAPIKey
		}

		deviceID, err := appconfig.DeviceID()
		if err != nil {
			return err
		}
		client := remote.New(cfg.ServerURL, cfg.APIKey, deviceID)

		switch {
		case initListID != "":
			list, err := client.FetchList(initListID)
			if err != nil {
				return fmt.Errorf("fetch list %s: %w", initListID, err)
			}
			cfg.ListID = list.ID
			output.Success("Joined list %q (%s)", list.Name, list.ID)
		case initName != "":
			list, err := client.CreateList(initName)
			if err != nil {
				return fmt.Errorf("create list: %w", err)
			}
			cfg.ListID = list.ID
			output.Success("Created list %q (%s)", list.Name, list.ID)
		default:
			return fmt.Errorf("pass --name to create a list or --id to join one")
		}

		if err := appconfig.Save(cfg); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "create a new list with this name")
	initCmd.Flags().StringVar(&initListID, "id", "", "join an existing list by id")
	initCmd.Flags().StringVar(&initServer, "server", "", "sync server URL")
	initCmd.Flags().StringVar(&initAPIKey, "api-key", "", "API key for the sync server")
	rootCmd.AddCommand(initCmd)
}
