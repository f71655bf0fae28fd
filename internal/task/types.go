// Package task defines the core pipeline types and the single-slot task
// lifecycle manager.
package task

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task is one unit of work submitted to the agent. It is read-only to the
// pipeline; exactly one task may be current at a time.
type Task struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewTask builds a task with a fresh ID and timestamp.
func NewTask(kind string, payload map[string]any) Task {
	return Task{
		ID:        uuid.NewString(),
		Kind:      strings.TrimSpace(kind),
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// String returns the payload value for key as a string, or "" if absent.
func (t Task) String(key string) string {
	if t.Payload == nil {
		return ""
	}
	if v, ok := t.Payload[key].(string); ok {
		return v
	}
	return ""
}

// Floats returns the payload value for key as a float slice, handling both
// []float64 and the []any shape produced by JSON decoding.
func (t Task) Floats(key string) []float64 {
	if t.Payload == nil {
		return nil
	}
	switch v := t.Payload[key].(type) {
	case []float64:
		return v
	case []any:
		out := make([]float64, 0, len(v))
		for _, item := range v {
			f, ok := item.(float64)
			if !ok {
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	return nil
}

// Recommendation names which sub-agent variant to instantiate for a task.
// Produced by the expert panel, consumed once by the dispatcher.
type Recommendation struct {
	ExpertID string `json:"expert_id"`
	Field    string `json:"field"`
	Text     string `json:"text"`
	// Kind is the sub-agent variant tag derived from the expert's advice.
	Kind string `json:"kind"`
}

// Result is one sub-agent's outcome. Error results are retained so a batch
// of N recommendations always yields N results with full provenance.
type Result struct {
	AgentID string `json:"agent_id"`
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`
	Err     string `json:"error,omitempty"`
}

// Failed reports whether the sub-agent errored.
func (r Result) Failed() bool { return r.Err != "" }

// Text renders the payload as a string for scoring and display.
func (r Result) Text() string {
	switch v := r.Payload.(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["summary"].(string); ok {
			return s
		}
		return ""
	default:
		return ""
	}
}

// Decision is the single arbitrated output for a task.
type Decision struct {
	Text string `json:"text"`
	// Flagged is set when the hallucination monitor downgraded the text
	// to the disclaimer.
	Flagged    bool      `json:"flagged,omitempty"`
	Provenance []Result  `json:"provenance,omitempty"`
	DecidedAt  time.Time `json:"decided_at,omitempty"`
}
