package decide

import (
	"testing"

	"github.com/marvin-agent/marvin/internal/task"
)

func TestDecideEmptyReturnsSentinel(t *testing.T) {
	d := New(nil, nil)
	got := d.Decide(nil)
	if got.Text != task.NoValidResultText {
		t.Errorf("Text = %q, want sentinel", got.Text)
	}
	if len(got.Provenance) != 0 {
		t.Errorf("sentinel decision should carry no provenance, got %d", len(got.Provenance))
	}
	if got.DecidedAt.IsZero() {
		t.Error("DecidedAt not set")
	}
}

func TestDecidePicksTopScore(t *testing.T) {
	d := New(nil, nil)
	verified := []task.Result{
		{AgentID: "short", Payload: "hi"},
		{AgentID: "long", Payload: "a considerably longer and more substantive answer"},
		{AgentID: "mid", Payload: "middling answer"},
	}
	got := d.Decide(verified)
	if got.Text != verified[1].Text() {
		t.Errorf("Text = %q", got.Text)
	}
	if len(got.Provenance) != 3 {
		t.Errorf("provenance = %d results, want all 3", len(got.Provenance))
	}
}

func TestDecideTieBreaksFirstSeen(t *testing.T) {
	d := New(func(task.Result) float64 { return 1.0 }, nil)
	verified := []task.Result{
		{AgentID: "first", Payload: "alpha"},
		{AgentID: "second", Payload: "bravo"},
	}
	got := d.Decide(verified)
	if got.Text != "alpha" {
		t.Errorf("Text = %q, want first-seen winner", got.Text)
	}
}

func TestDecideDeterministic(t *testing.T) {
	d := New(nil, nil)
	verified := []task.Result{
		{AgentID: "a", Payload: "one answer"},
		{AgentID: "b", Payload: "other answer"},
	}
	first := d.Decide(verified)
	for i := 0; i < 5; i++ {
		if again := d.Decide(verified); again.Text != first.Text {
			t.Fatalf("run %d: Text = %q, want %q", i, again.Text, first.Text)
		}
	}
}

func TestDecideCustomScorer(t *testing.T) {
	prefersAgent := func(id string) Scorer {
		return func(r task.Result) float64 {
			if r.AgentID == id {
				return 10
			}
			return 0
		}
	}
	d := New(prefersAgent("b"), nil)
	verified := []task.Result{
		{AgentID: "a", Payload: "ignored"},
		{AgentID: "b", Payload: "chosen"},
	}
	if got := d.Decide(verified); got.Text != "chosen" {
		t.Errorf("Text = %q", got.Text)
	}
}
