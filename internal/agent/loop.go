// Package agent drives the think-act-observe loop: generate model output,
// extract tool invocations, execute them, feed results back, and stream the
// final answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/stepwise-ai/stepwise/internal/executor"
	"github.com/stepwise-ai/stepwise/internal/extract"
	"github.com/stepwise-ai/stepwise/internal/provider"
	"github.com/stepwise-ai/stepwise/internal/registry"
)

const (
	defaultMaxSteps = 12

	// fallbackAnswer is emitted when the finalizing generation produces no
	// tokens at all, so a turn always ends with something readable.
	fallbackAnswer = "I was unable to produce a final answer for this request."
)

// finalAnswerPhrases terminate the loop when they appear in model output.
// Matching is case-insensitive and approximate on purpose: a model that says
// it is done should not be forced through more steps.
var finalAnswerPhrases = []string{
	"final answer:",
	"task complete",
	"task is complete",
	"no further action needed",
	"nothing more to do",
}

// ErrAllBackendsExhausted terminates a turn when every backend in the pool
// was rotated away from within the same turn.
var ErrAllBackendsExhausted = errors.New("all model backends exhausted")

// StepRecord captures one completed loop iteration. Records accumulate for
// the duration of a turn and are discarded afterwards; persistence is the
// trace sink's concern.
type StepRecord struct {
	Index       int
	ModelOutput string
	Calls       []registry.ToolCall
	Results     []executor.Result
}

// TraceSink receives turn lifecycle events. Implementations must tolerate
// being called from concurrent turns. A nil sink disables tracing.
type TraceSink interface {
	TurnStarted(ctx context.Context, turnID, userMsg string)
	StepRecorded(ctx context.Context, turnID string, rec StepRecord)
	TurnFinished(ctx context.Context, turnID, answer string, err error)
}

// Options configures an Agent beyond its required collaborators.
type Options struct {
	MaxSteps    int
	MaxTokens   int
	Temperature float64
	Persona     string
	// Dispatcher, when set, runs multi-call steps concurrently.
	Dispatcher *executor.Dispatcher
	Trace      TraceSink
	Logger     *slog.Logger
}

// Agent owns one configured loop. Safe for concurrent turns; per-turn state
// lives on the stack of each Turn call.
type Agent struct {
	pool     *provider.Pool
	registry *registry.Registry
	exec     *executor.Executor
	opts     Options
	logger   *slog.Logger
}

// New creates an Agent.
func New(pool *provider.Pool, reg *registry.Registry, exec *executor.Executor, opts Options) *Agent {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = defaultMaxSteps
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{pool: pool, registry: reg, exec: exec, opts: opts, logger: logger}
}

// Turn starts one turn and returns a channel of answer chunks. The channel
// is closed when the turn ends; a terminal failure arrives as a chunk with
// Err set. Cancelling ctx abandons the turn; in-flight tool calls run to
// completion and their results are discarded.
func (a *Agent) Turn(ctx context.Context, userMsg string) (<-chan provider.StreamChunk, error) {
	if strings.TrimSpace(userMsg) == "" {
		return nil, errors.New("empty user message")
	}
	out := make(chan provider.StreamChunk, 16)
	go a.run(ctx, userMsg, out)
	return out, nil
}

// Run is the collect-to-string surface over the same machine.
func (a *Agent) Run(ctx context.Context, userMsg string) (string, error) {
	stream, err := a.Turn(ctx, userMsg)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			return sb.String(), chunk.Err
		}
		if chunk.Done && chunk.FullText != "" && sb.Len() == 0 {
			return chunk.FullText, nil
		}
		sb.WriteString(chunk.Delta)
	}
	return sb.String(), nil
}

type loopState int

const (
	stateThinking loopState = iota
	stateFinalizing
	stateDone
)

func (a *Agent) run(ctx context.Context, userMsg string, out chan<- provider.StreamChunk) {
	defer close(out)

	turnID := uuid.NewString()
	if a.opts.Trace != nil {
		a.opts.Trace.TurnStarted(ctx, turnID, userMsg)
	}

	var (
		records []StepRecord
		rotated = map[string]bool{}
		answer  string
		runErr  error
	)

	state := stateThinking
	for state != stateDone {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		switch state {
		case stateThinking:
			text, err := a.generate(ctx, a.buildRequest(userMsg, records, false), rotated)
			if err != nil {
				runErr = err
				a.emit(ctx, out, provider.StreamChunk{Err: err})
				state = stateDone
				continue
			}

			if strings.TrimSpace(text) == "" {
				// An empty completion carries no answer and no calls;
				// finalizing guarantees the caller still gets a sentence.
				a.logger.Warn("empty model output", "turn", turnID)
				state = stateFinalizing
				continue
			}

			calls, invalid := a.extractCalls(text)
			if len(calls) == 0 && len(invalid) == 0 {
				// The model produced prose with no invocations: that prose
				// is the answer.
				answer = text
				a.emit(ctx, out, provider.StreamChunk{Delta: text})
				a.emit(ctx, out, provider.StreamChunk{Done: true, FullText: text})
				state = stateDone
				continue
			}
			if phrase, ok := containsFinalAnswer(text); ok {
				a.logger.Debug("final answer phrase detected", "turn", turnID, "phrase", phrase)
				answer = text
				a.emit(ctx, out, provider.StreamChunk{Delta: text})
				a.emit(ctx, out, provider.StreamChunk{Done: true, FullText: text})
				state = stateDone
				continue
			}

			rec := a.executeStep(ctx, len(records), text, calls, invalid)
			records = append(records, rec)
			if a.opts.Trace != nil {
				a.opts.Trace.StepRecorded(ctx, turnID, rec)
			}
			if len(records) >= a.opts.MaxSteps {
				a.logger.Info("step cap reached", "turn", turnID, "steps", len(records))
				state = stateFinalizing
				continue
			}
			state = stateThinking

		case stateFinalizing:
			answer, runErr = a.finalize(ctx, userMsg, records, rotated, out)
			state = stateDone
		}
	}

	if a.opts.Trace != nil {
		a.opts.Trace.TurnFinished(ctx, turnID, answer, runErr)
	}
}

// executeStep runs the step's valid calls (concurrently when a dispatcher is
// configured) and folds validation rejections into the record so the next
// thinking prompt can correct course. Execution uses a context detached from
// the client's cancellation: a disconnect must not abort a half-done write.
func (a *Agent) executeStep(ctx context.Context, index int, text string, calls []registry.ToolCall, invalid []executor.Result) StepRecord {
	execCtx := context.WithoutCancel(ctx)

	var results []executor.Result
	if a.opts.Dispatcher != nil && len(calls) > 1 {
		for _, tr := range a.opts.Dispatcher.Dispatch(execCtx, calls) {
			results = append(results, tr.Result)
		}
	} else {
		for _, call := range calls {
			results = append(results, a.exec.Execute(execCtx, call))
		}
	}
	results = append(results, invalid...)

	return StepRecord{Index: index, ModelOutput: text, Calls: calls, Results: results}
}

// extractCalls turns model output into executable calls plus failure results
// for candidates the validator rejected. Rejections keep their position in
// the feedback so the model sees why its syntax did not run.
func (a *Agent) extractCalls(text string) ([]registry.ToolCall, []executor.Result) {
	var (
		calls   []registry.ToolCall
		invalid []executor.Result
	)
	for _, c := range extract.Extract(text, a.registry.Has) {
		ok, reason := extract.Validate(c.Name, c.RawArgs, a.registry.Params(c.Name), a.registry.Has)
		if !ok {
			invalid = append(invalid, executor.Result{Success: false, Err: reason})
			continue
		}
		calls = append(calls, registry.ToolCall{
			Name:    c.Name,
			RawArgs: c.RawArgs,
			Args:    extract.ParseArgs(c.RawArgs, a.registry.Params(c.Name)),
		})
	}
	return calls, invalid
}

// finalize streams one wrap-up generation. An empty stream falls back to a
// fixed sentence so the caller never receives a silent close.
func (a *Agent) finalize(ctx context.Context, userMsg string, records []StepRecord, rotated map[string]bool, out chan<- provider.StreamChunk) (string, error) {
	req := a.buildRequest(userMsg, records, true)

	for {
		backend := a.pool.Current()
		if backend == nil {
			err := provider.ErrEmptyPool
			a.emit(ctx, out, provider.StreamChunk{Err: err})
			return "", err
		}

		stream, err := backend.Client.GenerateStream(ctx, req)
		if err != nil {
			if _, rerr := a.rotate(backend, err, rotated); rerr != nil {
				a.emit(ctx, out, provider.StreamChunk{Err: rerr})
				return "", rerr
			}
			continue
		}

		var sb strings.Builder
		var streamErr error
		for chunk := range stream {
			if chunk.Err != nil {
				streamErr = chunk.Err
				break
			}
			if chunk.Delta != "" {
				sb.WriteString(chunk.Delta)
				a.emit(ctx, out, provider.StreamChunk{Delta: chunk.Delta})
			}
		}
		if streamErr != nil {
			if sb.Len() > 0 {
				// Deltas already reached the caller; surfacing the error
				// keeps a truncated answer from passing as a complete one.
				a.emit(ctx, out, provider.StreamChunk{Err: streamErr})
				return sb.String(), streamErr
			}
			// No output yet: a quota error restarts finalizing on the
			// next backend, anything else is terminal.
			if _, rerr := a.rotate(backend, streamErr, rotated); rerr != nil {
				a.emit(ctx, out, provider.StreamChunk{Err: rerr})
				return "", rerr
			}
			continue
		}

		answer := sb.String()
		if strings.TrimSpace(answer) == "" {
			answer = fallbackAnswer
			a.emit(ctx, out, provider.StreamChunk{Delta: answer})
		}
		a.emit(ctx, out, provider.StreamChunk{Done: true, FullText: answer})
		return answer, nil
	}
}

// generate calls the current backend, rotating the pool on quota errors. At
// most one rotation per backend per turn; when the ring is exhausted the
// turn fails with ErrAllBackendsExhausted.
func (a *Agent) generate(ctx context.Context, req *provider.Request, rotated map[string]bool) (string, error) {
	for {
		backend := a.pool.Current()
		if backend == nil {
			return "", provider.ErrEmptyPool
		}
		text, err := backend.Client.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		if _, rerr := a.rotate(backend, err, rotated); rerr != nil {
			return "", rerr
		}
	}
}

// rotate advances the pool past a backend that hit its quota. Non-quota
// errors and repeat offenders within the same turn are terminal.
func (a *Agent) rotate(backend *provider.Backend, err error, rotated map[string]bool) (*provider.Backend, error) {
	if !provider.IsQuotaError(err) {
		return nil, err
	}
	if rotated[backend.Name] {
		return nil, fmt.Errorf("%w: %s rate limited again", ErrAllBackendsExhausted, backend.Name)
	}
	rotated[backend.Name] = true
	a.pool.ReportError(backend.Name)
	next := a.pool.Advance("rate limited")
	a.logger.Warn("backend rotated", "from", backend.Name, "to", next.Name, "error", err)
	return next, nil
}

// emit sends a chunk unless the client is gone. Dropping chunks on a dead
// context is what keeps an abandoned turn from leaking its goroutine.
func (a *Agent) emit(ctx context.Context, out chan<- provider.StreamChunk, chunk provider.StreamChunk) {
	select {
	case out <- chunk:
	case <-ctx.Done():
	}
}

func containsFinalAnswer(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range finalAnswerPhrases {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	return "", false
}
