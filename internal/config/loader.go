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
	ConfigDir = ".stepwise"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// envPrefix is the prefix for environment variable overrides.
	envPrefix = "STEPWISE"
)

// ConfigPath returns the path to the config file. STEPWISE_CONFIG overrides
// the location; STEPWISE_HOME overrides the home directory.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("STEPWISE_CONFIG")); explicit != "" {
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
	if h := strings.TrimSpace(os.Getenv("STEPWISE_HOME")); h != "" {
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

// Load reads the config file if present, then applies STEPWISE_* environment
// overrides. A missing file is not an error: defaults are returned so the
// CLI stays usable before `stepwise configure` has run.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, fmt.Errorf("resolve config path: %w", err)
	}

	data, readErr := os.ReadFile(path)
	if readErr == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(readErr) {
		return cfg, fmt.Errorf("read %s: %w", path, readErr)
	}

	// Each section is processed on its own so overrides resolve flat against
	// the prefix: STEPWISE_MAX_STEPS, STEPWISE_WORKSPACE,
	// STEPWISE_OPENAI_API_KEY and so on.
	sections := []struct {
		prefix string
		target any
	}{
		{envPrefix, &cfg.Paths},
		{envPrefix, &cfg.Loop},
		{envPrefix, &cfg.Trace},
		{envPrefix, &cfg.Profile},
		{envPrefix, &cfg.Tools},
		{envPrefix + "_OPENAI", &cfg.Providers.OpenAI},
		{envPrefix + "_ANTHROPIC", &cfg.Providers.Anthropic},
		{envPrefix + "_GEMINI", &cfg.Providers.Gemini},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.target); err != nil {
			return cfg, fmt.Errorf("apply env overrides: %w", err)
		}
	}

	cfg.normalize()
	return cfg, nil
}

// Save writes the config back to its file, creating the directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// normalize fills derived fields and keeps invariants that a hand-edited
// file can break.
func (c *Config) normalize() {
	if c.Loop.MaxSteps <= 0 {
		c.Loop.MaxSteps = 12
	}
	if c.Loop.ToolTimeoutSecs <= 0 {
		c.Loop.ToolTimeoutSecs = 60
	}
	if c.Loop.MaxTokens <= 0 {
		c.Loop.MaxTokens = 4096
	}
	if c.Paths.Workspace != "" && !rootsCover(c.Paths.SandboxRoots, c.Paths.Workspace) {
		c.Paths.SandboxRoots = append(c.Paths.SandboxRoots, c.Paths.Workspace)
	}
	if c.Profile.Path == "" && c.Paths.Workspace != "" {
		c.Profile.Path = filepath.Join(c.Paths.Workspace, "profile.json")
	}
	if c.Tools.LogPath == "" && c.Paths.Workspace != "" {
		c.Tools.LogPath = filepath.Join(c.Paths.Workspace, "stepwise.log")
	}
}

// rootsCover reports whether path is equal to or below one of roots. Paths
// are compared textually after cleaning; "~" expansion happens at wiring
// time, so a tilde root covers a tilde workspace.
func rootsCover(roots []string, path string) bool {
	p := filepath.Clean(path)
	for _, r := range roots {
		r = filepath.Clean(r)
		if p == r || strings.HasPrefix(p, r+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
