// Package decide arbitrates a single decision from the verified results.
package decide

import (
	"log/slog"
	"time"

	"github.com/marvin-agent/marvin/internal/task"
)

// Scorer ranks a verified result. Implementations must be deterministic for
// identical inputs; ties are broken by first-seen order.
type Scorer func(task.Result) float64

// ContentLength is the default scorer: longer rendered text wins. It favors
// substantive answers over terse or empty payloads.
func ContentLength(r task.Result) float64 {
	return float64(len(r.Text()))
}

// Decider selects the top-scoring verified result as the decision.
type Decider struct {
	score  Scorer
	logger *slog.Logger
}

// New creates a decider. A nil scorer falls back to ContentLength.
func New(score Scorer, logger *slog.Logger) *Decider {
	if score == nil {
		score = ContentLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Decider{score: score, logger: logger}
}

// Decide returns the decision for a set of verified results. An empty set
// yields the sentinel "no valid result" decision, never an error. The full
// input set is retained as provenance for audit.
func (d *Decider) Decide(verified []task.Result) task.Decision {
	now := time.Now()
	if len(verified) == 0 {
		d.logger.Warn("no verified results to decide upon")
		return task.Decision{Text: task.NoValidResultText, DecidedAt: now}
	}

	best := 0
	bestScore := d.score(verified[0])
	for i := 1; i < len(verified); i++ {
		if s := d.score(verified[i]); s > bestScore {
			best, bestScore = i, s
		}
	}

	d.logger.Info("decision made", "candidates", len(verified), "winner", verified[best].AgentID, "score", bestScore)
	return task.Decision{
		Text:       verified[best].Text(),
		Provenance: verified,
		DecidedAt:  now,
	}
}
