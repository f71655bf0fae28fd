package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".marvin"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("MARVIN_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("MARVIN_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home, nil
}

// Load reads the config file if present, applies env overrides and expands
// the data dir. A missing config file is not an error: defaults apply.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := expandPaths(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	sections := []struct {
		prefix string
		target any
	}{
		{"MARVIN_PATHS", &cfg.Paths},
		{"MARVIN_MODEL", &cfg.Model},
		{"MARVIN_PIPELINE", &cfg.Pipeline},
		{"MARVIN_MEMORY", &cfg.Memory},
		{"MARVIN_BROKER", &cfg.Broker},
		{"MARVIN_NOTIFY", &cfg.Notify},
		{"MARVIN_LEARNING", &cfg.Learning},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.target); err != nil {
			return fmt.Errorf("apply %s env overrides: %w", s.prefix, err)
		}
	}
	return nil
}

func expandPaths(cfg *Config) error {
	dir := strings.TrimSpace(cfg.Paths.DataDir)
	if dir == "" {
		dir = "~/" + ConfigDir
	}
	if strings.HasPrefix(dir, "~") {
		home, err := resolveHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	cfg.Paths.DataDir = dir
	if strings.TrimSpace(cfg.Paths.DBPath) == "" {
		cfg.Paths.DBPath = filepath.Join(dir, "marvin.db")
	}
	if strings.TrimSpace(cfg.Memory.KeyPath) == "" {
		cfg.Memory.KeyPath = filepath.Join(dir, "master.key")
	}
	return nil
}

// Save writes the config as indented JSON, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, path)
}
