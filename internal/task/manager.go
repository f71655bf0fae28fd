package task

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/marvin-agent/marvin/internal/store"
)

const (
	taskKey   = "task"
	resultKey = "result"
)

// Persisted record envelopes, matching the on-disk layout of the original
// tasks.json / result.json files.
type taskRecord struct {
	Task Task `json:"task"`
}

type resultRecord struct {
	Result Decision `json:"result"`
}

// Manager owns the single current-task slot. Submit, read and clear form a
// consistent sequence under one mutex; concurrent submissions are rejected,
// never queued.
type Manager struct {
	mu       sync.Mutex
	store    store.BlobStore
	current  *Task
	decision *Decision
}

// NewManager creates a manager backed by the given durable store.
func NewManager(s store.BlobStore) *Manager {
	return &Manager{store: s}
}

// Submit persists the task and makes it current. Returns ErrTaskInFlight if
// a task is already current (in memory or recovered from storage).
func (m *Manager) Submit(t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.currentLocked(); ok {
		return ErrTaskInFlight
	}

	blob, err := json.Marshal(taskRecord{Task: t})
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := m.store.Save(taskKey, blob); err != nil {
		return fmt.Errorf("persist task: %w", err)
	}
	m.current = &t
	return nil
}

// Current returns the in-memory task, hydrating from durable storage after a
// restart. The bool reports whether a task is current.
func (m *Manager) Current() (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked()
}

func (m *Manager) currentLocked() (Task, bool) {
	if m.current != nil {
		return *m.current, true
	}
	blob, found, err := m.store.Load(taskKey)
	if err != nil || !found {
		return Task{}, false
	}
	var rec taskRecord
	if err := json.Unmarshal(blob, &rec); err != nil {
		return Task{}, false
	}
	m.current = &rec.Task
	return rec.Task, true
}

// Clear removes the current task from memory and storage. Idempotent.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = nil
	if err := m.store.Delete(taskKey); err != nil {
		return fmt.Errorf("clear task: %w", err)
	}
	return nil
}

// SaveDecision persists the final decision for the current task.
func (m *Manager) SaveDecision(d Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob, err := json.Marshal(resultRecord{Result: d})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := m.store.Save(resultKey, blob); err != nil {
		return fmt.Errorf("persist result: %w", err)
	}
	m.decision = &d
	return nil
}

// LoadDecision returns the latest persisted decision, hydrating from durable
// storage when memory is cold.
func (m *Manager) LoadDecision() (Decision, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.decision != nil {
		return *m.decision, true
	}
	blob, found, err := m.store.Load(resultKey)
	if err != nil || !found {
		return Decision{}, false
	}
	var rec resultRecord
	if err := json.Unmarshal(blob, &rec); err != nil {
		return Decision{}, false
	}
	m.decision = &rec.Result
	return rec.Result, true
}
