// Package timeline keeps an auditable history of pipeline runs in SQLite.
package timeline

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when no run exists for a task ID.
var ErrRunNotFound = errors.New("run not found")

// Service records runs and their stage events. Safe for concurrent use; the
// busy timeout covers writer contention.
type Service struct {
	db *sql.DB
}

func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Service{db: db}, nil
}

func (s *Service) Close() error {
	return s.db.Close()
}

// StartRun opens a run for a task and records the submitted stage.
func (s *Service) StartRun(taskID, taskKind string) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (task_id, task_kind, status, started_at) VALUES (?, ?, ?, ?)`,
		taskID, taskKind, RunStatusRunning, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return s.RecordStage(taskID, StageSubmitted, "")
}

// RecordStage appends a stage event to a run.
func (s *Service) RecordStage(taskID, stage, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO run_events (task_id, stage, detail, created_at) VALUES (?, ?, ?, ?)`,
		taskID, stage, detail, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record stage: %w", err)
	}
	return nil
}

// FinishRun closes a run with its final status and decision text.
func (s *Service) FinishRun(taskID, status, decisionText string, flagged bool) error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, decision_text = ?, flagged = ?, finished_at = ? WHERE task_id = ?`,
		status, decisionText, flagged, time.Now().UTC(), taskID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Run returns the run for a task ID.
func (s *Service) Run(taskID string) (Run, error) {
	row := s.db.QueryRow(
		`SELECT id, task_id, task_kind, status, decision_text, flagged, started_at, finished_at
		 FROM runs WHERE task_id = ?`, taskID,
	)
	var r Run
	var finished sql.NullTime
	err := row.Scan(&r.ID, &r.TaskID, &r.TaskKind, &r.Status, &r.DecisionText, &r.Flagged, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to load run: %w", err)
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

// RecentRuns lists runs newest-first, capped at limit.
func (s *Service) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, task_id, task_kind, status, decision_text, flagged, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.TaskID, &r.TaskKind, &r.Status, &r.DecisionText, &r.Flagged, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Events lists a run's stage events in recorded order.
func (s *Service) Events(taskID string) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, task_id, stage, detail, created_at FROM run_events WHERE task_id = ? ORDER BY id ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Stage, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
