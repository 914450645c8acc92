package client

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Settings stores the last used connection, persisted as YAML next to the binary.
type Settings struct {
	Server string `yaml:"server"`
	UserID string `yaml:"user_id,omitempty"`
	TLS    bool   `yaml:"tls,omitempty"`
}

// DefaultSettings returns default settings.
func DefaultSettings() *Settings {
	return &Settings{Server: "localhost:9700"}
}

// SettingsPath is the default settings file location.
func SettingsPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "gochat-client.yaml"
	}
	return filepath.Join(filepath.Dir(exe), "gochat-client.yaml")
}

// LoadSettings loads settings from path or returns defaults.
func LoadSettings(path string) *Settings {
	s := DefaultSettings()
	data, err := os.ReadFile(path) //nolint:gosec // path chosen by the user
	if err != nil {
		return s
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		slog.Error("parse settings", "err", err)
		return DefaultSettings()
	}
	return s
}

// Save writes settings to path as YAML.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "client: encode settings")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o600), "client: save settings")
}
