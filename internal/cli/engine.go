package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stepwise-ai/stepwise/internal/agent"
	"github.com/stepwise-ai/stepwise/internal/config"
	"github.com/stepwise-ai/stepwise/internal/executor"
	"github.com/stepwise-ai/stepwise/internal/profile"
	"github.com/stepwise-ai/stepwise/internal/provider"
	"github.com/stepwise-ai/stepwise/internal/registry"
	"github.com/stepwise-ai/stepwise/internal/sandbox"
	"github.com/stepwise-ai/stepwise/internal/tools"
	"github.com/stepwise-ai/stepwise/internal/trace"
)

// engine bundles the wired components behind every agent-facing command.
type engine struct {
	cfg      *config.Config
	registry *registry.Registry
	sandbox  *sandbox.Sandbox
	pool     *provider.Pool
	agent    *agent.Agent
	trace    *trace.Service
}

func (e *engine) Close() {
	if e.trace != nil {
		e.trace.Close()
	}
}

// buildEngine loads config and assembles sandbox, tool registry, model pool,
// trace store, and the loop itself.
func buildEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := setupLogging(cfg)

	workspace := expandHome(cfg.Paths.Workspace)
	if workspace != "" {
		if err := os.MkdirAll(workspace, 0755); err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
	}

	sb, err := sandbox.New(cfg.Paths.SandboxRoots, cfg.Tools.CriticalFiles, cfg.Paths.BackupDir)
	if err != nil {
		return nil, err
	}

	pool, err := provider.ResolvePool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	tools.RegisterAll(reg, tools.Deps{
		Sandbox:       sb,
		Profile:       profile.NewStore(cfg.Profile.Path),
		Pool:          pool,
		LogPath:       expandHome(cfg.Tools.LogPath),
		SearchBaseURL: cfg.Tools.SearchBaseURL,
	})

	exec := executor.New(reg, sb, time.Duration(cfg.Loop.ToolTimeoutSecs)*time.Second, logger)

	var dispatcher *executor.Dispatcher
	if len(cfg.Dispatch.Models) > 0 {
		dispatcher = executor.NewDispatcher(exec, cfg.Dispatch.Models, logger)
	}

	var traceSvc *trace.Service
	if cfg.Trace.DBPath != "" {
		traceSvc, err = trace.NewService(expandHome(cfg.Trace.DBPath), logger)
		if err != nil {
			logger.Warn("trace store disabled", "error", err)
			traceSvc = nil
		} else if len(cfg.Trace.Brokers) > 0 {
			traceSvc.SetPublisher(trace.NewPublisher(cfg.Trace.Brokers, cfg.Trace.Topic, logger))
		}
	}

	opts := agent.Options{
		MaxSteps:    cfg.Loop.MaxSteps,
		MaxTokens:   cfg.Loop.MaxTokens,
		Temperature: cfg.Loop.Temperature,
		Persona:     cfg.Loop.Persona,
		Dispatcher:  dispatcher,
		Logger:      logger,
	}
	if traceSvc != nil {
		opts.Trace = traceSvc
	}

	return &engine{
		cfg:      cfg,
		registry: reg,
		sandbox:  sb,
		pool:     pool,
		agent:    agent.New(pool, reg, exec, opts),
		trace:    traceSvc,
	}, nil
}

// setupLogging routes slog to stderr and, when configured, to the log file
// fetch_logs reads from.
func setupLogging(cfg *config.Config) *slog.Logger {
	var w io.Writer = os.Stderr
	if path := expandHome(cfg.Tools.LogPath); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err == nil {
			if f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
				w = io.MultiWriter(os.Stderr, f)
			}
		}
	}
	logger := slog.New(slog.NewTextHandler(w, nil))
	slog.SetDefault(logger)
	return logger
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
