package trace

import "time"

// Turn is one persisted conversation turn.
type Turn struct {
	ID          int64      `json:"id"`
	TurnID      string     `json:"turn_id"`
	UserMsg     string     `json:"user_msg,omitempty"`
	Answer      string     `json:"answer,omitempty"`
	Status      string     `json:"status"` // running, completed, failed
	ErrorText   string     `json:"error_text,omitempty"`
	Steps       int        `json:"steps"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Span is one recorded event inside a turn: an LLM generation or a tool
// execution. Detail holds a JSON blob with kind-specific fields.
type Span struct {
	ID        int64     `json:"id"`
	TurnID    string    `json:"turn_id"`
	SpanID    string    `json:"span_id"`
	StepIndex int       `json:"step_index"`
	Kind      string    `json:"kind"` // LLM, TOOL
	Name      string    `json:"name,omitempty"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Schema creates the trace tables. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	turn_id TEXT UNIQUE NOT NULL,
	user_msg TEXT,
	answer TEXT,
	status TEXT NOT NULL DEFAULT 'running',
	error_text TEXT,
	steps INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS spans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	turn_id TEXT NOT NULL,
	span_id TEXT NOT NULL,
	step_index INTEGER NOT NULL DEFAULT 0,
	kind TEXT NOT NULL,
	name TEXT,
	success BOOLEAN NOT NULL DEFAULT 1,
	detail TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_spans_turn ON spans(turn_id);
CREATE INDEX IF NOT EXISTS idx_turns_status ON turns(status);
`
