package learning

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/marvin-agent/marvin/internal/memory"
)

// FeedbackFunc turns an output into a scalar reward. In production this is
// backed by collected human feedback; tests inject a deterministic scorer.
type FeedbackFunc func(output string) float64

// Policy is a linear RLHF policy: one weight vector per action over a fixed
// feature space. Actions are generated by argmax over the action scores.
type Policy struct {
	mu       sync.Mutex
	agentID  string
	weights  [][]float64
	stepSize float64
	feedback FeedbackFunc
	rng      *rand.Rand
}

// NewPolicy creates a policy for agentID with actionCount weight rows over
// featureCount features. Weights start at small deterministic values derived
// from the injected rand source (nil falls back to a fixed seed).
func NewPolicy(agentID string, actionCount, featureCount int, stepSize float64, feedback FeedbackFunc, rng *rand.Rand) *Policy {
	if actionCount <= 0 {
		actionCount = 1
	}
	if featureCount <= 0 {
		featureCount = 1
	}
	if stepSize <= 0 {
		stepSize = 0.01
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	weights := make([][]float64, actionCount)
	for a := range weights {
		weights[a] = make([]float64, featureCount)
		for f := range weights[a] {
			weights[a][f] = (rng.Float64() - 0.5) * 0.01
		}
	}
	return &Policy{
		agentID:  agentID,
		weights:  weights,
		stepSize: stepSize,
		feedback: feedback,
		rng:      rng,
	}
}

// AgentID returns the owning agent.
func (p *Policy) AgentID() string { return p.agentID }

// GenerateAction scores each action against the state features and returns
// the argmax, ties broken by the lowest action index.
func (p *Policy) GenerateAction(state []float64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	best, bestScore := 0, p.scoreLocked(0, state)
	for a := 1; a < len(p.weights); a++ {
		if s := p.scoreLocked(a, state); s > bestScore {
			best, bestScore = a, s
		}
	}
	return best
}

func (p *Policy) scoreLocked(action int, state []float64) float64 {
	row := p.weights[action]
	var sum float64
	for f := 0; f < len(row) && f < len(state); f++ {
		sum += row[f] * state[f]
	}
	return sum
}

// CollectFeedback returns the reward for an output via the feedback source.
func (p *Policy) CollectFeedback(output string) float64 {
	if p.feedback == nil {
		return 0
	}
	return p.feedback(output)
}

// Update applies one gradient step: the chosen action's weights move toward
// the state features scaled by reward and step size.
func (p *Policy) Update(state []float64, action int, reward float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if action < 0 || action >= len(p.weights) {
		return
	}
	row := p.weights[action]
	for f := 0; f < len(row) && f < len(state); f++ {
		row[f] += p.stepSize * reward * state[f]
	}
}

// Merge averages this policy's parameters elementwise with another policy of
// the same shape.
func (p *Policy) Merge(other *Policy) error {
	if other == nil || other == p {
		return nil
	}
	other.mu.Lock()
	theirs := make([][]float64, len(other.weights))
	for a, row := range other.weights {
		theirs[a] = append([]float64(nil), row...)
	}
	other.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(theirs) != len(p.weights) {
		return fmt.Errorf("policy shape mismatch: %d vs %d actions", len(p.weights), len(theirs))
	}
	for a := range p.weights {
		if len(theirs[a]) != len(p.weights[a]) {
			return fmt.Errorf("policy shape mismatch on action %d", a)
		}
		for f := range p.weights[a] {
			p.weights[a][f] = (p.weights[a][f] + theirs[a][f]) / 2
		}
	}
	return nil
}

type policySnapshot struct {
	AgentID string      `json:"agent_id"`
	Weights [][]float64 `json:"weights"`
}

// Serialize renders the policy parameters as JSON.
func (p *Policy) Serialize() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return json.Marshal(policySnapshot{AgentID: p.agentID, Weights: p.weights})
}

// Deserialize replaces the parameters from JSON produced by Serialize.
func (p *Policy) Deserialize(blob []byte) error {
	var snap policySnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return fmt.Errorf("parse policy: %w", err)
	}
	if len(snap.Weights) == 0 {
		return fmt.Errorf("policy snapshot holds no weights")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.weights = snap.Weights
	return nil
}

func (p *Policy) memoryKey() string { return "rlhf_policy_" + p.agentID }

// SaveTo persists the serialized policy into shared memory.
func (p *Policy) SaveTo(mem *memory.Store) error {
	blob, err := p.Serialize()
	if err != nil {
		return err
	}
	return mem.Write(p.memoryKey(), blob, p.agentID)
}

// LoadFrom restores the policy from shared memory, reporting found=false
// when nothing is stored. Any other read failure is an error so stored
// state is never silently discarded.
func (p *Policy) LoadFrom(mem *memory.Store) (bool, error) {
	blob, err := mem.Read(p.memoryKey(), p.agentID)
	if errors.Is(err, memory.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := p.Deserialize(blob); err != nil {
		return false, err
	}
	return true, nil
}
