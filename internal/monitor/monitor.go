// Package monitor screens decisions for fabricated or unsupported content
// before they are finalized.
package monitor

import (
	"log/slog"
	"strings"

	"github.com/marvin-agent/marvin/internal/task"
)

// fabricationMarkers are phrases that correlate with unsupported claims.
// The check is case-insensitive.
var fabricationMarkers = []string{
	"as everyone knows",
	"it is a well-known fact",
	"it is widely known",
	"100% certain",
	"100% guaranteed",
	"studies have conclusively proven",
	"undeniable proof",
	"sources confirm",
	"[citation needed]",
}

// Monitor is a stateless predicate over decision text.
type Monitor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{logger: logger}
}

// Detect reports whether the decision appears fabricated. Flagging is a
// content transform decided by the caller, not a pipeline failure; the
// sentinel "no valid result" decision is never flagged.
func (m *Monitor) Detect(d task.Decision) bool {
	if d.Text == "" || d.Text == task.NoValidResultText {
		return false
	}
	lower := strings.ToLower(d.Text)

	for _, marker := range fabricationMarkers {
		if strings.Contains(lower, marker) {
			m.logger.Warn("hallucination marker found", "marker", marker)
			return true
		}
	}

	if repeatedSentence(lower) {
		m.logger.Warn("degenerate repetition found in decision")
		return true
	}
	return false
}

// repeatedSentence reports whether any sentence occurs three or more times,
// a common degenerate-generation pattern.
func repeatedSentence(text string) bool {
	counts := map[string]int{}
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		s = strings.TrimSpace(s)
		if len(s) < 12 {
			continue
		}
		counts[s]++
		if counts[s] >= 3 {
			return true
		}
	}
	return false
}
