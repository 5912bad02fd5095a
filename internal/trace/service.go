// Package trace persists turn and span records to sqlite and optionally
// publishes spans to Kafka for external collection. The engine treats the
// whole package as optional: a nil *Service is a no-op sink.
package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/stepwise-ai/stepwise/internal/agent"
)

// Service records turns and spans. Safe for concurrent turns; sqlite access
// is serialized by database/sql plus the busy timeout pragma.
type Service struct {
	db        *sql.DB
	publisher *Publisher
	logger    *slog.Logger
}

// NewService opens (or creates) the trace database and applies the schema.
func NewService(dbPath string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open trace db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply trace schema: %w", err)
	}
	return &Service{db: db, logger: logger}, nil
}

// SetPublisher attaches an optional Kafka span publisher.
func (s *Service) SetPublisher(p *Publisher) {
	if s != nil {
		s.publisher = p
	}
}

// Close releases the database and publisher.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
	return s.db.Close()
}

// TurnStarted implements agent.TraceSink.
func (s *Service) TurnStarted(ctx context.Context, turnID, userMsg string) {
	if s == nil {
		return
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (turn_id, user_msg, status) VALUES (?, ?, 'running')
		 ON CONFLICT(turn_id) DO NOTHING`,
		turnID, userMsg)
	if err != nil {
		s.logger.Warn("trace: record turn start failed", "turn", turnID, "error", err)
	}
}

// StepRecorded implements agent.TraceSink: one LLM span for the generation
// plus one TOOL span per result.
func (s *Service) StepRecorded(ctx context.Context, turnID string, rec agent.StepRecord) {
	if s == nil {
		return
	}
	s.insertSpan(ctx, Span{
		TurnID:    turnID,
		SpanID:    uuid.NewString(),
		StepIndex: rec.Index,
		Kind:      "LLM",
		Success:   true,
		Detail:    jsonDetail(map[string]any{"output_bytes": len(rec.ModelOutput), "calls": len(rec.Calls)}),
	})
	for i, res := range rec.Results {
		name := ""
		if i < len(rec.Calls) {
			name = rec.Calls[i].Name
		}
		detail := map[string]any{"output_bytes": len(res.Output)}
		if res.Err != "" {
			detail["error"] = res.Err
		}
		if res.SideEffects != "" {
			detail["side_effects"] = res.SideEffects
		}
		s.insertSpan(ctx, Span{
			TurnID:    turnID,
			SpanID:    uuid.NewString(),
			StepIndex: rec.Index,
			Kind:      "TOOL",
			Name:      name,
			Success:   res.Success,
			Detail:    jsonDetail(detail),
		})
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE turns SET steps = ? WHERE turn_id = ?`, rec.Index+1, turnID); err != nil {
		s.logger.Warn("trace: update step count failed", "turn", turnID, "error", err)
	}
}

// TurnFinished implements agent.TraceSink.
func (s *Service) TurnFinished(ctx context.Context, turnID, answer string, turnErr error) {
	if s == nil {
		return
	}
	status := "completed"
	errText := ""
	if turnErr != nil {
		status = "failed"
		errText = turnErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE turns SET answer = ?, status = ?, error_text = ?, completed_at = CURRENT_TIMESTAMP
		 WHERE turn_id = ?`,
		answer, status, errText, turnID)
	if err != nil {
		s.logger.Warn("trace: record turn finish failed", "turn", turnID, "error", err)
	}
}

// GetTurn fetches one turn by its id.
func (s *Service) GetTurn(ctx context.Context, turnID string) (*Turn, error) {
	if s == nil {
		return nil, fmt.Errorf("trace store disabled")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, turn_id, COALESCE(user_msg,''), COALESCE(answer,''), status,
		        COALESCE(error_text,''), steps, created_at, completed_at
		 FROM turns WHERE turn_id = ?`, turnID)
	var t Turn
	var completed sql.NullTime
	if err := row.Scan(&t.ID, &t.TurnID, &t.UserMsg, &t.Answer, &t.Status,
		&t.ErrorText, &t.Steps, &t.CreatedAt, &completed); err != nil {
		return nil, err
	}
	if completed.Valid {
		t.CompletedAt = &completed.Time
	}
	return &t, nil
}

// RecentTurns lists the newest turns, most recent first.
func (s *Service) RecentTurns(ctx context.Context, limit int) ([]Turn, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, turn_id, COALESCE(user_msg,''), COALESCE(answer,''), status,
		        COALESCE(error_text,''), steps, created_at, completed_at
		 FROM turns ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		var completed sql.NullTime
		if err := rows.Scan(&t.ID, &t.TurnID, &t.UserMsg, &t.Answer, &t.Status,
			&t.ErrorText, &t.Steps, &t.CreatedAt, &completed); err != nil {
			return nil, err
		}
		if completed.Valid {
			t.CompletedAt = &completed.Time
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SpansForTurn lists a turn's spans in recording order.
func (s *Service) SpansForTurn(ctx context.Context, turnID string) ([]Span, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, turn_id, span_id, step_index, kind, COALESCE(name,''), success,
		        COALESCE(detail,''), created_at
		 FROM spans WHERE turn_id = ? ORDER BY id ASC`, turnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Span
	for rows.Next() {
		var sp Span
		if err := rows.Scan(&sp.ID, &sp.TurnID, &sp.SpanID, &sp.StepIndex, &sp.Kind,
			&sp.Name, &sp.Success, &sp.Detail, &sp.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *Service) insertSpan(ctx context.Context, sp Span) {
	sp.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spans (turn_id, span_id, step_index, kind, name, success, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sp.TurnID, sp.SpanID, sp.StepIndex, sp.Kind, sp.Name, sp.Success, sp.Detail)
	if err != nil {
		s.logger.Warn("trace: record span failed", "turn", sp.TurnID, "kind", sp.Kind, "error", err)
		return
	}
	if s.publisher != nil {
		s.publisher.Publish(ctx, sp)
	}
}

func jsonDetail(m map[string]any) string {
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

var _ agent.TraceSink = (*Service)(nil)
