package timeline

import "time"

// Schema is applied on every open; statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT UNIQUE NOT NULL,
	task_kind TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'running',
	decision_text TEXT NOT NULL DEFAULT '',
	flagged BOOLEAN NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	finished_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

CREATE TABLE IF NOT EXISTS run_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_run_events_task ON run_events(task_id);
`

// Run is one pipeline execution for a task.
type Run struct {
	ID           int64      `json:"id"`
	TaskID       string     `json:"task_id"`
	TaskKind     string     `json:"task_kind"`
	Status       string     `json:"status"`
	DecisionText string     `json:"decision_text,omitempty"`
	Flagged      bool       `json:"flagged"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Event is one recorded pipeline stage transition within a run.
type Event struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	Stage     string    `json:"stage"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFlagged   = "flagged"
	RunStatusFailed    = "failed"
)

// Pipeline stages recorded as run events.
const (
	StageSubmitted    = "submitted"
	StageDeliberating = "deliberating"
	StageDispatching  = "dispatching"
	StageVerifying    = "verifying"
	StageDeciding     = "deciding"
	StageMonitoring   = "monitoring"
	StageCompleted    = "completed"
	StageCleared      = "cleared"
)
