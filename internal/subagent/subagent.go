package subagent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/marvin-agent/marvin/internal/config"
	"github.com/marvin-agent/marvin/internal/learning"
	"github.com/marvin-agent/marvin/internal/memory"
	"github.com/marvin-agent/marvin/internal/provider"
	"github.com/marvin-agent/marvin/internal/task"
)

// SubAgent performs one recommended unit of work. Instances are created per
// batch and discarded after the run; learned state outlives them in shared
// memory.
type SubAgent interface {
	ID() string
	Kind() Kind
	PerformTask(ctx context.Context, t task.Task) (any, error)
}

// Factory builds sub-agents from recommendations. All variant dependencies
// are injected once here so callers never touch provider or memory wiring.
type Factory struct {
	generator provider.TextGenerator
	mem       *memory.Store
	learning  config.LearningConfig
	feedback  learning.FeedbackFunc
	logger    *slog.Logger
}

// NewFactory wires a factory. feedback may be nil, in which case RLHF agents
// fall back to a length-band heuristic.
func NewFactory(generator provider.TextGenerator, mem *memory.Store, cfg config.LearningConfig, feedback learning.FeedbackFunc, logger *slog.Logger) *Factory {
	if feedback == nil {
		feedback = heuristicFeedback
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{generator: generator, mem: mem, learning: cfg, feedback: feedback, logger: logger}
}

// New instantiates the variant a recommendation names. A tag with no
// registered variant returns task.ErrUnknownRecommendation; the caller turns
// that into an error result rather than dropping the slot.
func (f *Factory) New(rec task.Recommendation) (SubAgent, error) {
	kind, ok := ParseKind(rec.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", task.ErrUnknownRecommendation, rec.Kind)
	}
	id := string(kind) + "-" + uuid.NewString()[:8]
	switch kind {
	case KindTextGeneration:
		return &textAgent{id: id, kind: kind, generator: f.generator, guidance: rec.Text}, nil
	case KindContentSummarization:
		return &summaryAgent{id: id, generator: f.generator}, nil
	case KindDataAnalysis:
		return &analysisAgent{id: id}, nil
	case KindQLearning:
		// Learned state is keyed by the stable learner name, not the
		// per-batch agent ID, so tables survive across runs.
		return &qAgent{
			id:     id,
			table:  learning.NewQTable(qLearnerID, qActionCount, f.learning, nil),
			mem:    f.mem,
			logger: f.logger,
		}, nil
	case KindRLHF:
		return &rlhfAgent{
			id:     id,
			policy: learning.NewPolicy(rlhfLearnerID, rlhfActionCount, rlhfFeatureCount, f.learning.LearningRate, f.feedback, nil),
			mem:    f.mem,
			logger: f.logger,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", task.ErrUnknownRecommendation, rec.Kind)
}

// heuristicFeedback rewards outputs in a readable length band. Stands in
// until a real feedback channel is attached.
func heuristicFeedback(output string) float64 {
	n := len(output)
	switch {
	case n == 0:
		return -1.0
	case n < 20:
		return 0.2
	case n < 400:
		return 1.0
	default:
		return 0.5
	}
}
