// Package config reads and writes the YAML configuration file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/opsagent/assets"
	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/pkg/filesystem"
	"github.com/doeshing/opsagent/internal/ports"
)

// EnvConfigPath overrides the config location.
const EnvConfigPath = "OPSAGENT_CONFIG"

// FileLoader loads YAML configuration from ~/.opsagent/config.yaml
// (overridable via OPSAGENT_CONFIG or an explicit path).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader. An empty path uses the environment or default.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider. A missing file is created from the
// embedded default.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return domain.Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := ensureConfigDir(path); err != nil {
			return domain.Config{}, err
		}
		if err := os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions); err != nil {
			return domain.Config{}, fmt.Errorf("write default config: %w", err)
		}
		data = assets.DefaultConfigYAML
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return hydrateDefaults(cfg), nil
}

// Save writes cfg back to the resolved path.
func (l *FileLoader) Save(_ context.Context, cfg domain.Config) error {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return err
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, domain.SecureFilePermissions); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, path)
}

// Path returns the file Load and Save operate on.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return expandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return expandPath(custom)
	}
	return filepath.Join(filesystem.UserHomeDir(), ".opsagent", "config.yaml")
}

func ensureConfigDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return nil
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":3000"
	}
	if cfg.Preferences.DefaultModel == "" && len(cfg.Models) > 0 {
		cfg.Preferences.DefaultModel = cfg.Models[0].Name
	}
	for i := range cfg.Models {
		if cfg.Models[i].MaxTokens == 0 {
			cfg.Models[i].MaxTokens = domain.DefaultPlanMaxTokens
		}
	}
	if cfg.Execution.CommandTimeout == "" {
		cfg.Execution.CommandTimeout = domain.DefaultCommandTimeout.String()
	}
	if cfg.Execution.ConnectTimeout == "" {
		cfg.Execution.ConnectTimeout = domain.DefaultConnectTimeout.String()
	}
	if cfg.History.RecentInteractions == 0 {
		cfg.History.RecentInteractions = domain.DefaultRecentInteractions
	}
	if cfg.History.GraceWindow == "" {
		cfg.History.GraceWindow = domain.DefaultGraceWindow.String()
	}
	return cfg
}

func expandPath(path string) string {
	path = filesystem.ExpandHome(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Clean(path)
}

var _ ports.ConfigStore = (*FileLoader)(nil)
