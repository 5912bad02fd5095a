// Package executor runs validated tool calls against the registry with
// sandbox enforcement, panic containment, and per-call timeouts. Every call
// produces exactly one Result; handler failures never escape as errors or
// panics.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/stepwise-ai/stepwise/internal/registry"
	"github.com/stepwise-ai/stepwise/internal/sandbox"
)

const defaultTimeout = 60 * time.Second

// Result is the outcome of one tool call.
type Result struct {
	Success bool
	Output  string
	Err     string
	// SideEffects records the resolved filesystem paths the call was
	// permitted to touch, for tracing.
	SideEffects string
}

// Executor executes registered tool calls.
type Executor struct {
	registry *registry.Registry
	sandbox  *sandbox.Sandbox
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates an executor. A non-positive timeout falls back to 60s.
func New(reg *registry.Registry, sb *sandbox.Sandbox, timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{registry: reg, sandbox: sb, timeout: timeout, logger: logger}
}

// Execute runs one tool call to completion. Path-typed parameters are
// resolved through the sandbox before the handler is invoked; a containment
// violation fails the call without running the handler. The handler runs
// under the configured timeout with panic recovery.
func (e *Executor) Execute(ctx context.Context, call registry.ToolCall) Result {
	spec, ok := e.registry.Get(call.Name)
	if !ok {
		return failure(fmt.Sprintf("unknown tool: %s", call.Name))
	}

	args := make(map[string]any, len(call.Args))
	for k, v := range call.Args {
		args[k] = v
	}

	var touched []string
	for _, p := range spec.Params {
		if !p.Path {
			continue
		}
		raw := registry.GetString(args, p.Name, "")
		if raw == "" {
			continue
		}
		resolved, err := e.sandbox.Resolve(raw)
		if err != nil {
			e.logger.Warn("tool call rejected", "tool", call.Name, "param", p.Name, "error", err)
			return failure(err.Error())
		}
		args[p.Name] = resolved
		touched = append(touched, resolved)
	}

	start := time.Now()
	out, err := e.invoke(ctx, spec, args)
	elapsed := time.Since(start)

	if err != nil {
		e.logger.Warn("tool call failed", "tool", call.Name, "duration", elapsed, "error", err)
		return Result{Success: false, Err: err.Error(), SideEffects: strings.Join(touched, ",")}
	}
	e.logger.Info("tool call succeeded", "tool", call.Name, "duration", elapsed, "output_bytes", len(out))
	return Result{Success: true, Output: out, SideEffects: strings.Join(touched, ",")}
}

// invoke runs the handler on its own goroutine so a handler that ignores its
// context cannot hold the turn past the timeout.
func (e *Executor) invoke(ctx context.Context, spec registry.Spec, args map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		out string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("tool handler panicked", "tool", spec.Name, "panic", r, "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", spec.Name, r)}
			}
		}()
		out, err := spec.Handler(ctx, args)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		return o.out, o.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("tool %s timed out after %s", spec.Name, e.timeout)
		}
		return "", ctx.Err()
	}
}

func failure(msg string) Result {
	return Result{Success: false, Err: msg}
}
