package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/branger/internal/appconfig"
	"github.com/marcus/branger/internal/cache"
	"github.com/marcus/branger/internal/engine"
	"github.com/marcus/branger/internal/kv"
	"github.com/marcus/branger/internal/liststore"
	"github.com/marcus/branger/internal/netmon"
	"github.com/marcus/branger/internal/queue"
	"github.com/marcus/branger/internal/realtime"
	"github.com/marcus/branger/internal/remote"
	"github.com/marcus/branger/internal/replay"
)

var (
	version string
	listID  string
	offline bool
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "branger",
	Short: "Collaborative shopping list with offline-first sync",
	Long: `branger - A collaborative shopping list CLI.

Edits apply locally first. While offline they queue durably and replay
against the server when connectivity returns; a live change stream keeps
every device's view in sync.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&listID, "list", "", "list id (defaults to the configured list)")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "act as if the network were unavailable")
}

// app bundles the wired engine with the resources it owns.
type app struct {
	Engine  *engine.Engine
	Monitor *netmon.Monitor
	Queue   *queue.Queue
	Client  *remote.Client
	state   *kv.SQLite
	lastRes *replay.Result
}

// Close releases the durable state handle.
func (a *app) Close() {
	if a.state != nil {
		a.state.Close()
	}
}

// resolveListID picks the --list flag or the configured default.
func resolveListID() (string, error) {
	if listID != "" {
		return listID, nil
	}
	cfg, err := appconfig.Load()
	if err != nil {
		return "", err
	}
	if cfg.ListID == "" {
		return "", fmt.Errorf("no list selected: run `branger init` or pass --list")
	}
	return cfg.ListID, nil
}

// buildApp wires the full engine for one list: durable state, connectivity
// probe against the server, remote client, and realtime channel.
func buildApp() (*app, error) {
	id, err := resolveListID()
	if err != nil {
		return nil, err
	}

	cfg, err := appconfig.Load()
	if err != nil {
		return nil, err
	}
	deviceID, err := appconfig.DeviceID()
	if err != nil {
		return nil, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	if v := os.Getenv("BRANGER_STATE_DIR"); v != "" {
		home = v
	}
	state, err := kv.Open(home)
	if err != nil {
		return nil, err
	}

	serverURL := appconfig.ServerURL()
	client := remote.New(serverURL, cfg.APIKey, deviceID)

	var monitor *netmon.Monitor
	if offline {
		monitor = netmon.New(nil, 0)
		monitor.SetOnline(false)
	} else {
		monitor = netmon.New(func(ctx context.Context) bool {
			_, err := client.HealthCheck()
			return err == nil
		}, 10*time.Second)
	}

	a := &app{
		Monitor: monitor,
		Queue:   queue.New(state),
		Client:  client,
		state:   state,
	}

	a.Engine = engine.New(engine.Options{
		Store:        liststore.New(id),
		Queue:        a.Queue,
		Monitor:      monitor,
		Remote:       client,
		Subscription: realtime.NewChannel(serverURL, cfg.APIKey, deviceID),
		Cache:        cache.New(state),
		OnSyncResult: func(res replay.Result) { a.lastRes = &res },
	})

	return a, nil
}

// probeOnce sets the monitor state from a single health check, so one-shot
// commands know whether to write through or enqueue. Under --offline the
// monitor is already forced and the probe is skipped.
func (a *app) probeOnce() {
	if offline {
		return
	}
	_, err := a.Client.HealthCheck()
	a.Monitor.SetOnline(err == nil)
}
