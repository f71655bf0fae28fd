package subagent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/marvin-agent/marvin/internal/learning"
	"github.com/marvin-agent/marvin/internal/memory"
	"github.com/marvin-agent/marvin/internal/task"
)

const (
	qLearnerID   = "q_learning"
	qActionCount = 2

	rlhfLearnerID    = "rlhf"
	rlhfActionCount  = 3
	rlhfFeatureCount = 4

	defaultEpisodes   = 50
	defaultStateCount = 10
	maxStepsPerEp     = 100
)

// QTaskCompletedText is the payload a successful Q-learning run reports.
const QTaskCompletedText = "Q-learning task completed successfully."

// qAgent trains a Q-table on a corridor environment derived from the task
// and persists the table to shared memory, merging with any prior table.
type qAgent struct {
	id     string
	table  *learning.QTable
	mem    *memory.Store
	logger *slog.Logger
}

func (a *qAgent) ID() string { return a.id }

func (a *qAgent) Kind() Kind { return KindQLearning }

func (a *qAgent) PerformTask(ctx context.Context, t task.Task) (any, error) {
	states := payloadInt(t, "states", defaultStateCount)
	if states < 2 {
		states = 2
	}
	episodes := payloadInt(t, "episodes", defaultEpisodes)

	if found, err := a.table.LoadFrom(a.mem); err != nil {
		return nil, fmt.Errorf("load q-table: %w", err)
	} else if found {
		a.logger.Debug("resumed q-table from shared memory", "agent", a.id)
	}

	env := corridor{size: states}
	for ep := 0; ep < episodes; ep++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state := env.reset()
		for step := 0; step < maxStepsPerEp; step++ {
			action := a.table.ChooseAction(state)
			next, reward, done := env.step(state, action)
			a.table.UpdateValue(state, action, reward, next)
			state = next
			if done {
				break
			}
		}
		a.table.DecayExploration()
	}

	if err := a.table.SaveTo(a.mem); err != nil {
		return nil, fmt.Errorf("save q-table: %w", err)
	}
	a.logger.Info("q-learning run finished", "agent", a.id, "episodes", episodes, "states", states)
	return QTaskCompletedText, nil
}

// corridor is a 1-D chain: action 1 moves right, anything else moves left.
// Reaching the rightmost state pays 1 and ends the episode.
type corridor struct {
	size int
}

func (c corridor) reset() int { return 0 }

func (c corridor) step(state, action int) (next int, reward float64, done bool) {
	if action == 1 {
		next = state + 1
	} else {
		next = state - 1
	}
	if next < 0 {
		next = 0
	}
	if next >= c.size-1 {
		return c.size - 1, 1.0, true
	}
	return next, 0.0, false
}

// rlhfAgent generates an output, scores it through the feedback channel,
// updates its policy, and answers with the improved output.
type rlhfAgent struct {
	id     string
	policy *learning.Policy
	mem    *memory.Store
	logger *slog.Logger
}

func (a *rlhfAgent) ID() string { return a.id }

func (a *rlhfAgent) Kind() Kind { return KindRLHF }

func (a *rlhfAgent) PerformTask(ctx context.Context, t task.Task) (any, error) {
	if found, err := a.policy.LoadFrom(a.mem); err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	} else if found {
		a.logger.Debug("resumed rlhf policy from shared memory", "agent", a.id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prompt := t.String("prompt")
	state := promptFeatures(prompt)

	action := a.policy.GenerateAction(state)
	output := renderOutput(action, prompt)

	reward := a.policy.CollectFeedback(output)
	a.policy.Update(state, action, reward)

	improved := renderOutput(a.policy.GenerateAction(state), prompt)

	if err := a.policy.SaveTo(a.mem); err != nil {
		return nil, fmt.Errorf("save policy: %w", err)
	}
	a.logger.Info("rlhf run finished", "agent", a.id, "action", action, "reward", reward)
	return improved, nil
}

var outputStyles = [rlhfActionCount]string{"concise", "detailed", "step-by-step"}

func renderOutput(action int, prompt string) string {
	if action < 0 || action >= len(outputStyles) {
		action = 0
	}
	return fmt.Sprintf("A %s response addressing: %s", outputStyles[action], prompt)
}

// promptFeatures projects a prompt onto the policy's fixed feature space:
// normalized length, word count, digit fraction, and a bias term.
func promptFeatures(prompt string) []float64 {
	digits := 0
	for _, r := range prompt {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	digitFrac := 0.0
	if len(prompt) > 0 {
		digitFrac = float64(digits) / float64(len(prompt))
	}
	return []float64{
		float64(len(prompt)) / 100.0,
		float64(len(strings.Fields(prompt))) / 10.0,
		digitFrac,
		1.0,
	}
}

func payloadInt(t task.Task, key string, fallback int) int {
	if t.Payload == nil {
		return fallback
	}
	switch v := t.Payload[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}
