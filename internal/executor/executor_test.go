package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stepwise-ai/stepwise/internal/registry"
	"github.com/stepwise-ai/stepwise/internal/sandbox"
)

func newTestExecutor(t *testing.T, timeout time.Duration) (*Executor, *registry.Registry, string) {
	t.Helper()
	root := t.TempDir()
	sb, err := sandbox.New([]string{root}, nil, "")
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	reg := registry.New()
	return New(reg, sb, timeout, nil), reg, sb.Roots()[0]
}

func TestExecuteUnknownTool(t *testing.T) {
	exec, _, _ := newTestExecutor(t, 0)
	res := exec.Execute(context.Background(), registry.ToolCall{Name: "nope"})
	if res.Success {
		t.Fatal("unknown tool should fail")
	}
	if !strings.Contains(res.Err, "unknown tool") {
		t.Errorf("Err = %q", res.Err)
	}
}

func TestExecuteRejectsEscapingPathBeforeHandler(t *testing.T) {
	exec, reg, _ := newTestExecutor(t, 0)
	var invoked atomic.Bool
	reg.Register(registry.Spec{
		Name:   "peek",
		Params: []registry.Param{{Name: "path", Required: true, Path: true}},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			invoked.Store(true)
			return "ok", nil
		},
	})

	res := exec.Execute(context.Background(), registry.ToolCall{
		Name: "peek",
		Args: map[string]any{"path": "/etc/passwd"},
	})
	if res.Success {
		t.Fatal("escaping path should fail")
	}
	if !strings.Contains(res.Err, "access denied") {
		t.Errorf("Err = %q, want access denied", res.Err)
	}
	if invoked.Load() {
		t.Error("handler must not run on containment violation")
	}
}

func TestExecuteResolvesPathArg(t *testing.T) {
	exec, reg, root := newTestExecutor(t, 0)
	var seen string
	reg.Register(registry.Spec{
		Name:   "peek",
		Params: []registry.Param{{Name: "path", Required: true, Path: true}},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			seen = registry.GetString(args, "path", "")
			return "ok", nil
		},
	})

	res := exec.Execute(context.Background(), registry.ToolCall{
		Name: "peek",
		Args: map[string]any{"path": filepath.Join(root, "sub", "..", "f.txt")},
	})
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Err)
	}
	want := filepath.Join(root, "f.txt")
	if seen != want {
		t.Errorf("handler saw path %q, want %q", seen, want)
	}
	if res.SideEffects != want {
		t.Errorf("SideEffects = %q, want %q", res.SideEffects, want)
	}
}

func TestExecuteContainsPanic(t *testing.T) {
	exec, reg, _ := newTestExecutor(t, 0)
	reg.Register(registry.Spec{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			panic("kaboom")
		},
	})

	res := exec.Execute(context.Background(), registry.ToolCall{Name: "boom"})
	if res.Success {
		t.Fatal("panic should fail the call")
	}
	if !strings.Contains(res.Err, "kaboom") {
		t.Errorf("Err = %q, want panic message", res.Err)
	}
}

func TestExecuteTimeout(t *testing.T) {
	exec, reg, _ := newTestExecutor(t, 20*time.Millisecond)
	reg.Register(registry.Spec{
		Name: "slow",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			select {
			case <-time.After(5 * time.Second):
				return "late", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	})

	start := time.Now()
	res := exec.Execute(context.Background(), registry.ToolCall{Name: "slow"})
	if res.Success {
		t.Fatal("slow handler should time out")
	}
	if !strings.Contains(res.Err, "timed out") {
		t.Errorf("Err = %q, want timeout", res.Err)
	}
	if time.Since(start) > time.Second {
		t.Error("Execute did not return promptly on timeout")
	}
}

func TestDispatchPositionalResults(t *testing.T) {
	exec, reg, _ := newTestExecutor(t, 0)
	for i := 0; i < 5; i++ {
		i := i
		reg.Register(registry.Spec{
			Name: fmt.Sprintf("task_%d", i),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if i == 3 {
					return "", fmt.Errorf("task 3 failed")
				}
				return fmt.Sprintf("result %d", i), nil
			},
		})
	}

	calls := make([]registry.ToolCall, 5)
	for i := range calls {
		calls[i] = registry.ToolCall{Name: fmt.Sprintf("task_%d", i)}
	}

	d := NewDispatcher(exec, []string{"model-a", "model-b"}, nil)
	results := d.Dispatch(context.Background(), calls)
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	for i, res := range results {
		if i == 3 {
			if res.Success || !strings.Contains(res.Err, "task 3 failed") {
				t.Errorf("slot 3 = %+v, want failure", res.Result)
			}
			continue
		}
		if !res.Success || res.Output != fmt.Sprintf("result %d", i) {
			t.Errorf("slot %d = %+v", i, res.Result)
		}
	}
}

func TestDispatchRoundRobinModels(t *testing.T) {
	exec, reg, _ := newTestExecutor(t, 0)
	reg.Register(registry.Spec{
		Name: "noop",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "ok", nil
		},
	})

	d := NewDispatcher(exec, []string{"a", "b"}, nil)
	calls := []registry.ToolCall{{Name: "noop"}, {Name: "noop"}, {Name: "noop"}}
	results := d.Dispatch(context.Background(), calls)
	want := []string{"a", "b", "a"}
	for i, res := range results {
		if res.Model != want[i] {
			t.Errorf("slot %d model = %q, want %q", i, res.Model, want[i])
		}
	}
}

func TestDispatchContainsPanic(t *testing.T) {
	exec, reg, _ := newTestExecutor(t, 0)
	reg.Register(registry.Spec{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			panic("parallel kaboom")
		},
	})
	reg.Register(registry.Spec{
		Name: "noop",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "ok", nil
		},
	})

	d := NewDispatcher(exec, nil, nil)
	results := d.Dispatch(context.Background(), []registry.ToolCall{{Name: "boom"}, {Name: "noop"}})
	if results[0].Success {
		t.Error("panicking slot should fail")
	}
	if !results[1].Success {
		t.Error("healthy slot should succeed despite neighbor panic")
	}
}
