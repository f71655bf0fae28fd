// Package learning holds the adaptive state of the learning-enabled agent
// variants: a tabular Q-learning value function and a linear RLHF policy.
// Both serialize to JSON so they can be round-tripped through shared memory
// and merged across agent instances.
package learning

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"

	"github.com/marvin-agent/marvin/internal/config"
	"github.com/marvin-agent/marvin/internal/memory"
)

// QTable is a per-agent tabular value function over integer states and a
// fixed action space. Missing entries read as zero.
type QTable struct {
	mu          sync.Mutex
	agentID     string
	actionCount int
	values      map[int]map[int]float64

	learningRate   float64
	discountFactor float64
	exploration    float64
	minExploration float64
	decay          float64

	rng *rand.Rand
}

// NewQTable creates a table for agentID with the given action space. The
// rand source is injected so runs are reproducible in tests; nil falls back
// to a fixed seed.
func NewQTable(agentID string, actionCount int, cfg config.LearningConfig, rng *rand.Rand) *QTable {
	if actionCount <= 0 {
		actionCount = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &QTable{
		agentID:        agentID,
		actionCount:    actionCount,
		values:         make(map[int]map[int]float64),
		learningRate:   cfg.LearningRate,
		discountFactor: cfg.DiscountFactor,
		exploration:    cfg.ExplorationRate,
		minExploration: cfg.MinExplorationRate,
		decay:          cfg.ExplorationDecay,
		rng:            rng,
	}
}

// AgentID returns the owning agent.
func (q *QTable) AgentID() string { return q.agentID }

// ExplorationRate returns the current ε.
func (q *QTable) ExplorationRate() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.exploration
}

// ChooseAction picks an action for state: with probability ε a uniform
// random action, otherwise the argmax over the state's row with ties broken
// by the lowest action index.
func (q *QTable) ChooseAction(state int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.rng.Float64() < q.exploration {
		return q.rng.Intn(q.actionCount)
	}
	best, bestValue := 0, q.valueLocked(state, 0)
	for a := 1; a < q.actionCount; a++ {
		if v := q.valueLocked(state, a); v > bestValue {
			best, bestValue = a, v
		}
	}
	return best
}

// UpdateValue applies the Bellman update
// Q(s,a) <- (1-alpha)*Q(s,a) + alpha*(r + gamma*max_a' Q(s',a')).
func (q *QTable) UpdateValue(state, action int, reward float64, nextState int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	maxNext := q.valueLocked(nextState, 0)
	for a := 1; a < q.actionCount; a++ {
		if v := q.valueLocked(nextState, a); v > maxNext {
			maxNext = v
		}
	}
	current := q.valueLocked(state, action)
	updated := (1-q.learningRate)*current + q.learningRate*(reward+q.discountFactor*maxNext)
	q.setLocked(state, action, updated)
}

// DecayExploration multiplies ε by the decay factor, floored at the minimum.
func (q *QTable) DecayExploration() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.exploration *= q.decay
	if q.exploration < q.minExploration {
		q.exploration = q.minExploration
	}
}

// Value returns Q(state, action), zero when the entry is unknown.
func (q *QTable) Value(state, action int) float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.valueLocked(state, action)
}

func (q *QTable) valueLocked(state, action int) float64 {
	return q.values[state][action]
}

func (q *QTable) setLocked(state, action int, v float64) {
	row, ok := q.values[state]
	if !ok {
		row = make(map[int]float64)
		q.values[state] = row
	}
	row[action] = v
}

// Merge folds another table into this one: entries present in both become
// the arithmetic mean, entries present in only one are kept as-is.
func (q *QTable) Merge(other *QTable) {
	if other == nil || other == q {
		return
	}
	other.mu.Lock()
	snapshot := make(map[int]map[int]float64, len(other.values))
	for state, row := range other.values {
		copied := make(map[int]float64, len(row))
		for action, v := range row {
			copied[action] = v
		}
		snapshot[state] = copied
	}
	other.mu.Unlock()

	q.mu.Lock()
	defer q.mu.Unlock()
	for state, row := range snapshot {
		for action, theirs := range row {
			ours, exists := q.values[state][action]
			if exists {
				q.setLocked(state, action, (ours+theirs)/2)
			} else {
				q.setLocked(state, action, theirs)
			}
		}
	}
}

type qSnapshot struct {
	AgentID     string                        `json:"agent_id"`
	ActionCount int                           `json:"action_count"`
	Exploration float64                       `json:"exploration_rate"`
	Values      map[string]map[string]float64 `json:"values"`
}

// Serialize renders the table as JSON.
func (q *QTable) Serialize() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	snap := qSnapshot{
		AgentID:     q.agentID,
		ActionCount: q.actionCount,
		Exploration: q.exploration,
		Values:      make(map[string]map[string]float64, len(q.values)),
	}
	for state, row := range q.values {
		out := make(map[string]float64, len(row))
		for action, v := range row {
			out[strconv.Itoa(action)] = v
		}
		snap.Values[strconv.Itoa(state)] = out
	}
	return json.Marshal(snap)
}

// Deserialize replaces the table contents from JSON produced by Serialize.
func (q *QTable) Deserialize(blob []byte) error {
	var snap qSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return fmt.Errorf("parse q-table: %w", err)
	}

	values := make(map[int]map[int]float64, len(snap.Values))
	for stateKey, row := range snap.Values {
		state, err := strconv.Atoi(stateKey)
		if err != nil {
			return fmt.Errorf("q-table state %q: %w", stateKey, err)
		}
		parsed := make(map[int]float64, len(row))
		for actionKey, v := range row {
			action, err := strconv.Atoi(actionKey)
			if err != nil {
				return fmt.Errorf("q-table action %q: %w", actionKey, err)
			}
			parsed[action] = v
		}
		values[state] = parsed
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if snap.ActionCount > 0 {
		q.actionCount = snap.ActionCount
	}
	if snap.Exploration > 0 {
		q.exploration = snap.Exploration
	}
	q.values = values
	return nil
}

func (q *QTable) memoryKey() string { return "q_table_" + q.agentID }

// SaveTo persists the serialized table into shared memory under the agent's
// well-known key. Shared memory encrypts at rest.
func (q *QTable) SaveTo(mem *memory.Store) error {
	blob, err := q.Serialize()
	if err != nil {
		return err
	}
	return mem.Write(q.memoryKey(), blob, q.agentID)
}

// LoadFrom restores the table from shared memory. A missing key leaves the
// table untouched and reports found=false; any other read failure is an
// error so stored state is never silently discarded.
func (q *QTable) LoadFrom(mem *memory.Store) (bool, error) {
	blob, err := mem.Read(q.memoryKey(), q.agentID)
	if errors.Is(err, memory.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := q.Deserialize(blob); err != nil {
		return false, err
	}
	return true, nil
}
