// Package appconfig stores the client's settings and identity at
// ~/.config/branger/config.json.
package appconfig

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the client configuration.
type Config struct {
	ServerURL string `json:"server_url"`
	APIKey    string `json:"api_key,omitempty"`
	DeviceID  string `json:"device_id"`
	ListID    string `json:"list_id,omitempty"` // the currently selected list
}

const defaultServerURL = "http://localhost:8080"

// Dir returns the config directory, creating it if necessary. Overridable
// through BRANGER_CONFIG_DIR for tests and sandboxes.
func Dir() (string, error) {
	if v := os.Getenv("BRANGER_CONFIG_DIR"); v != "" {
		if err := os.MkdirAll(v, 0755); err != nil {
			return "", fmt.Errorf("create config dir: %w", err)
		}
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "branger")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Load reads the config. A missing file yields defaults, not an error.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{ServerURL: defaultServerURL}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaultServerURL
	}
	return &cfg, nil
}

// Save writes the config atomically (temp file + rename).
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, "config.json"))
}

// DeviceID returns this device's stable identifier, generating and
// persisting one on first use.
func DeviceID() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	if cfg.DeviceID != "" {
		return cfg.DeviceID, nil
	}

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}
	cfg.DeviceID = "dev-" + hex.EncodeToString(buf)

	if err := Save(cfg); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return cfg.DeviceID, nil
}

// ServerURL returns the configured server URL, honoring BRANGER_SERVER_URL.
func ServerURL() string {
	if v := os.Getenv("BRANGER_SERVER_URL"); v != "" {
		return v
	}
	cfg, err := Load()
	if err != nil {
		return defaultServerURL
	}
	return cfg.ServerURL
}
