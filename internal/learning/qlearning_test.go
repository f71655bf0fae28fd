package learning

import (
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/marvin-agent/marvin/internal/config"
	"github.com/marvin-agent/marvin/internal/memory"
	"github.com/marvin-agent/marvin/internal/secrets"
	"github.com/marvin-agent/marvin/internal/task"
)

func learnCfg() config.LearningConfig {
	return config.LearningConfig{
		LearningRate:       0.1,
		DiscountFactor:     0.99,
		ExplorationRate:    1.0,
		MinExplorationRate: 0.01,
		ExplorationDecay:   0.5,
	}
}

func sharedMem(t *testing.T) *memory.Store {
	t.Helper()
	cipher, err := secrets.OpenCipher(filepath.Join(t.TempDir(), "master.key"))
	if err != nil {
		t.Fatal(err)
	}
	return memory.NewStore(cipher, nil)
}

func TestUpdateValueIsDeterministic(t *testing.T) {
	history := []struct {
		state, action, next int
		reward              float64
	}{
		{0, 1, 1, 1.0},
		{1, 0, 2, -0.5},
		{2, 3, 0, 2.0},
		{0, 1, 2, 0.25},
	}

	run := func() *QTable {
		q := NewQTable("det", 4, learnCfg(), rand.New(rand.NewSource(7)))
		for _, h := range history {
			q.UpdateValue(h.state, h.action, h.reward, h.next)
		}
		return q
	}

	a, b := run(), run()
	for state := 0; state < 3; state++ {
		for action := 0; action < 4; action++ {
			if a.Value(state, action) != b.Value(state, action) {
				t.Fatalf("runs diverged at Q(%d,%d): %v vs %v",
					state, action, a.Value(state, action), b.Value(state, action))
			}
		}
	}
}

func TestBellmanUpdate(t *testing.T) {
	cfg := learnCfg()
	q := NewQTable("bellman", 2, cfg, nil)

	// Seed next-state value so the max term is nonzero.
	q.UpdateValue(1, 0, 1.0, 2) // Q(1,0) = 0.1*1 = 0.1
	q.UpdateValue(0, 0, 1.0, 1)

	want := (1-cfg.LearningRate)*0 + cfg.LearningRate*(1.0+cfg.DiscountFactor*0.1)
	if got := q.Value(0, 0); math.Abs(got-want) > 1e-12 {
		t.Errorf("Q(0,0) = %v, want %v", got, want)
	}
}

func TestChooseActionExploitsArgmax(t *testing.T) {
	cfg := learnCfg()
	cfg.ExplorationRate = 0 // pure exploitation
	q := NewQTable("greedy", 3, cfg, rand.New(rand.NewSource(1)))

	q.UpdateValue(0, 2, 10.0, 0)
	if got := q.ChooseAction(0); got != 2 {
		t.Errorf("expected argmax action 2, got %d", got)
	}
	// All-zero row: tie broken by lowest index.
	if got := q.ChooseAction(5); got != 0 {
		t.Errorf("expected tie-break action 0, got %d", got)
	}
}

func TestDecayExplorationFloors(t *testing.T) {
	q := NewQTable("decay", 2, learnCfg(), nil)
	for i := 0; i < 20; i++ {
		q.DecayExploration()
	}
	if got := q.ExplorationRate(); got != 0.01 {
		t.Errorf("exploration should floor at 0.01, got %v", got)
	}
}

func TestMergeMeansOverlapUnionsRest(t *testing.T) {
	a := NewQTable("a", 4, learnCfg(), nil)
	b := NewQTable("b", 4, learnCfg(), nil)

	a.setLocked(0, 0, 2.0)
	a.setLocked(0, 1, 4.0)
	b.setLocked(0, 0, 6.0)
	b.setLocked(3, 2, -1.0)

	a.Merge(b)

	if got := a.Value(0, 0); got != 4.0 {
		t.Errorf("overlap should average: got %v, want 4.0", got)
	}
	if got := a.Value(0, 1); got != 4.0 {
		t.Errorf("a-only entry should be kept: got %v", got)
	}
	if got := a.Value(3, 2); got != -1.0 {
		t.Errorf("b-only entry should be unioned in: got %v", got)
	}
}

func TestQTableSharedMemoryRoundTrip(t *testing.T) {
	mem := sharedMem(t)

	q := NewQTable("web", 3, learnCfg(), nil)
	q.UpdateValue(1, 2, 5.0, 1)
	if err := q.SaveTo(mem); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	restored := NewQTable("web", 3, learnCfg(), nil)
	found, err := restored.LoadFrom(mem)
	if err != nil || !found {
		t.Fatalf("LoadFrom: found=%v err=%v", found, err)
	}
	if restored.Value(1, 2) != q.Value(1, 2) {
		t.Errorf("restored Q(1,2) = %v, want %v", restored.Value(1, 2), q.Value(1, 2))
	}

	// A different agent has no saved table and starts fresh without error.
	other := NewQTable("cli", 3, learnCfg(), nil)
	if found, err := other.LoadFrom(mem); found || err != nil {
		t.Errorf("LoadFrom for agent cli: found=%v err=%v", found, err)
	}
}

func TestQTableLoadFromDeniedKeyIsAnError(t *testing.T) {
	mem := sharedMem(t)

	// Another agent already owns this learner's key, so the read is denied
	// rather than absent. That must surface, not look like a fresh start.
	if err := mem.Write("q_table_web", []byte("{}"), "squatter"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	q := NewQTable("web", 3, learnCfg(), nil)
	found, err := q.LoadFrom(mem)
	if found {
		t.Error("found = true for a denied read")
	}
	if !errors.Is(err, task.ErrAccessDenied) {
		t.Fatalf("got %v, want ErrAccessDenied", err)
	}
}
