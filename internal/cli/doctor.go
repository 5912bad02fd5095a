package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stepwise-ai/stepwise/internal/config"
	"github.com/stepwise-ai/stepwise/internal/sandbox"
)

type doctorCheck struct {
	name    string
	status  string // PASS, WARN, FAIL
	message string
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run config and setup diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		checks := runDoctorChecks()
		failures := 0
		for _, c := range checks {
			if c.status == "FAIL" {
				failures++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", c.status, c.name, c.message)
		}
		if failures > 0 {
			return fmt.Errorf("doctor found %d failing check(s)", failures)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctorChecks() []doctorCheck {
	var checks []doctorCheck
	add := func(name, status, message string) {
		checks = append(checks, doctorCheck{name: name, status: status, message: message})
	}

	path, err := config.ConfigPath()
	if err != nil {
		add("config path", "FAIL", err.Error())
		return checks
	}
	if _, statErr := os.Stat(path); statErr == nil {
		add("config file", "PASS", path)
	} else {
		add("config file", "WARN", fmt.Sprintf("%s not found, defaults in effect", path))
	}

	cfg, err := config.Load()
	if err != nil {
		add("config load", "FAIL", err.Error())
		return checks
	}
	add("config load", "PASS", "parsed and normalized")

	workspace := expandHome(cfg.Paths.Workspace)
	if workspace == "" {
		add("workspace", "FAIL", "paths.workspace is empty")
	} else if info, statErr := os.Stat(workspace); statErr == nil && info.IsDir() {
		add("workspace", "PASS", workspace)
	} else {
		add("workspace", "WARN", fmt.Sprintf("%s does not exist yet (created on first turn)", workspace))
	}

	if _, err := sandbox.New(cfg.Paths.SandboxRoots, cfg.Tools.CriticalFiles, cfg.Paths.BackupDir); err != nil {
		add("sandbox roots", "FAIL", err.Error())
	} else {
		add("sandbox roots", "PASS", fmt.Sprintf("%d root(s) resolvable", len(cfg.Paths.SandboxRoots)))
	}

	keys := map[string]string{
		"openai":    cfg.Providers.OpenAI.APIKey,
		"anthropic": cfg.Providers.Anthropic.APIKey,
		"gemini":    cfg.Providers.Gemini.APIKey,
	}
	usable := 0
	for _, bc := range cfg.Backends {
		if keys[bc.Kind] != "" {
			usable++
		}
	}
	switch {
	case len(cfg.Backends) == 0:
		add("model backends", "FAIL", "no backends configured")
	case usable == 0:
		add("model backends", "FAIL", "no backend has a credential; set a provider API key")
	case usable < len(cfg.Backends):
		add("model backends", "WARN", fmt.Sprintf("%d of %d backends have credentials", usable, len(cfg.Backends)))
	default:
		add("model backends", "PASS", fmt.Sprintf("%d backend(s) usable", usable))
	}

	if cfg.Trace.DBPath == "" {
		add("trace store", "WARN", "disabled (trace.dbPath empty)")
	} else {
		add("trace store", "PASS", expandHome(cfg.Trace.DBPath))
	}
	if len(cfg.Trace.Brokers) == 0 {
		add("trace publisher", "WARN", "disabled (no brokers configured)")
	} else {
		add("trace publisher", "PASS", fmt.Sprintf("%d broker(s), topic %s", len(cfg.Trace.Brokers), cfg.Trace.Topic))
	}

	return checks
}
