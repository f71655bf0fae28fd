// Package subagent implements the specialized worker agents assembled per
// task from the expert panel's recommendations, and the pool that runs them.
package subagent

import "github.com/marvin-agent/marvin/internal/task"

// Kind tags a sub-agent variant. Dispatch is by tag, never by matching on
// free-form recommendation text.
type Kind string

const (
	KindTextGeneration       Kind = "text_generation"
	KindDataAnalysis         Kind = "data_analysis"
	KindContentSummarization Kind = "content_summarization"
	KindQLearning            Kind = "q_learning"
	KindRLHF                 Kind = "rlhf"
)

var taskKinds = map[string]Kind{
	"generate_text":     KindTextGeneration,
	"analyze_data":      KindDataAnalysis,
	"summarize_content": KindContentSummarization,
	"q_learning":        KindQLearning,
	"rlhf":              KindRLHF,
}

// KindForTask maps a task kind onto the sub-agent variant that handles it.
// Unrecognized task kinds fall back to text generation.
func KindForTask(t task.Task) Kind {
	if k, ok := taskKinds[t.Kind]; ok {
		return k
	}
	return KindTextGeneration
}

// ParseKind validates a recommendation's variant tag.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindTextGeneration, KindDataAnalysis, KindContentSummarization, KindQLearning, KindRLHF:
		return Kind(s), true
	}
	return "", false
}
