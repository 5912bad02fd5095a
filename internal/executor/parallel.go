package executor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stepwise-ai/stepwise/internal/registry"
	"github.com/stepwise-ai/stepwise/internal/tools"
)

// Dispatcher fans independent tool calls out concurrently. Calls are routed
// by category (file, memory, system) and each task is tagged with the next
// model from a round-robin list that is separate from the primary pool, so
// batch work never starves the interactive turn.
type Dispatcher struct {
	executors map[tools.Category]*Executor
	fallback  *Executor
	logger    *slog.Logger

	mu     sync.Mutex
	models []string
	next   int
}

// TaskResult pairs a Result with the routing decisions made for its call.
type TaskResult struct {
	Result
	Category tools.Category
	Model    string
}

// NewDispatcher creates a dispatcher that runs every category on exec.
// models may be empty, in which case tasks carry no model tag.
func NewDispatcher(exec *Executor, models []string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		executors: map[tools.Category]*Executor{},
		fallback:  exec,
		logger:    logger,
		models:    append([]string(nil), models...),
	}
}

// SetCategoryExecutor routes one category to a dedicated executor, for
// example a file executor with a tighter timeout.
func (d *Dispatcher) SetCategoryExecutor(cat tools.Category, exec *Executor) {
	d.executors[cat] = exec
}

// Dispatch runs all calls concurrently and returns results in call order.
// One failing call never cancels the others; a panicking handler becomes a
// failure result in its slot.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []registry.ToolCall) []TaskResult {
	results := make([]TaskResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		cat := tools.CategoryOf(call.Name)
		model := d.nextModel()
		exec := d.executors[cat]
		if exec == nil {
			exec = d.fallback
		}
		wg.Add(1)
		go func(i int, call registry.ToolCall, cat tools.Category, model string, exec *Executor) {
			defer wg.Done()
			d.logger.Debug("dispatching tool call", "tool", call.Name, "slot", i, "category", int(cat), "model", model)
			results[i] = TaskResult{
				Result:   exec.Execute(ctx, call),
				Category: cat,
				Model:    model,
			}
		}(i, call, cat, model, exec)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) nextModel() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.models) == 0 {
		return ""
	}
	m := d.models[d.next%len(d.models)]
	d.next++
	return m
}
