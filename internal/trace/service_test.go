package trace

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stepwise-ai/stepwise/internal/agent"
	"github.com/stepwise-ai/stepwise/internal/executor"
	"github.com/stepwise-ai/stepwise/internal/registry"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(filepath.Join(t.TempDir(), "trace.db"), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTurnLifecycle(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.TurnStarted(ctx, "turn-1", "list my files")
	got, err := s.GetTurn(ctx, "turn-1")
	if err != nil {
		t.Fatalf("GetTurn: %v", err)
	}
	if got.Status != "running" || got.UserMsg != "list my files" {
		t.Errorf("turn = %+v", got)
	}

	s.TurnFinished(ctx, "turn-1", "done, two files", nil)
	got, err = s.GetTurn(ctx, "turn-1")
	if err != nil {
		t.Fatalf("GetTurn: %v", err)
	}
	if got.Status != "completed" || got.Answer != "done, two files" {
		t.Errorf("turn = %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
}

func TestTurnFinishedRecordsFailure(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.TurnStarted(ctx, "turn-2", "hi")
	s.TurnFinished(ctx, "turn-2", "", errors.New("all model backends exhausted"))

	got, err := s.GetTurn(ctx, "turn-2")
	if err != nil {
		t.Fatalf("GetTurn: %v", err)
	}
	if got.Status != "failed" || !strings.Contains(got.ErrorText, "exhausted") {
		t.Errorf("turn = %+v", got)
	}
}

func TestStepRecordedWritesSpans(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.TurnStarted(ctx, "turn-3", "do work")
	s.StepRecorded(ctx, "turn-3", agent.StepRecord{
		Index:       0,
		ModelOutput: `read_file("a.txt")`,
		Calls:       []registry.ToolCall{{Name: "read_file", RawArgs: `"a.txt"`}},
		Results: []executor.Result{
			{Success: true, Output: "contents", SideEffects: "/proj/a.txt"},
		},
	})

	spans, err := s.SpansForTurn(ctx, "turn-3")
	if err != nil {
		t.Fatalf("SpansForTurn: %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want LLM + TOOL", len(spans))
	}
	if spans[0].Kind != "LLM" || spans[1].Kind != "TOOL" {
		t.Errorf("span kinds = %s, %s", spans[0].Kind, spans[1].Kind)
	}
	if spans[1].Name != "read_file" || !spans[1].Success {
		t.Errorf("tool span = %+v", spans[1])
	}
	if !strings.Contains(spans[1].Detail, "side_effects") {
		t.Errorf("tool span detail = %q", spans[1].Detail)
	}

	turn, err := s.GetTurn(ctx, "turn-3")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Steps != 1 {
		t.Errorf("steps = %d, want 1", turn.Steps)
	}
}

func TestRecentTurnsNewestFirst(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	for _, id := range []string{"t1", "t2", "t3"} {
		s.TurnStarted(ctx, id, "msg "+id)
	}

	turns, err := s.RecentTurns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 2 || turns[0].TurnID != "t3" || turns[1].TurnID != "t2" {
		t.Errorf("turns = %+v", turns)
	}
}

func TestNilServiceIsNoOp(t *testing.T) {
	var s *Service
	ctx := context.Background()
	s.TurnStarted(ctx, "x", "y")
	s.StepRecorded(ctx, "x", agent.StepRecord{})
	s.TurnFinished(ctx, "x", "", nil)
	if err := s.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
	if turns, err := s.RecentTurns(ctx, 5); err != nil || turns != nil {
		t.Errorf("nil RecentTurns = %v, %v", turns, err)
	}
}
