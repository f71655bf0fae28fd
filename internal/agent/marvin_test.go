package agent

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marvin-agent/marvin/internal/bus"
	"github.com/marvin-agent/marvin/internal/collab"
	"github.com/marvin-agent/marvin/internal/config"
	"github.com/marvin-agent/marvin/internal/decide"
	"github.com/marvin-agent/marvin/internal/memory"
	"github.com/marvin-agent/marvin/internal/monitor"
	"github.com/marvin-agent/marvin/internal/panel"
	"github.com/marvin-agent/marvin/internal/provider"
	"github.com/marvin-agent/marvin/internal/secrets"
	"github.com/marvin-agent/marvin/internal/store"
	"github.com/marvin-agent/marvin/internal/subagent"
	"github.com/marvin-agent/marvin/internal/task"
	"github.com/marvin-agent/marvin/internal/timeline"
	"github.com/marvin-agent/marvin/internal/verify"
)

// replyFunc lets each test script the generator's behavior per prompt.
type replyFunc func(prompt string) (string, error)

type fakeGenerator struct {
	reply replyFunc
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ provider.Options) (string, error) {
	return g.reply(prompt)
}

func (g *fakeGenerator) DefaultModel() string { return "fake" }

func isExpertPrompt(prompt string) bool {
	return strings.HasPrefix(prompt, "As an expert in")
}

func newTestMarvin(t *testing.T, reply replyFunc, fields []string) *Marvin {
	t.Helper()
	return New(newTestDeps(t, reply, fields))
}

func newTestDeps(t *testing.T, reply replyFunc, fields []string) Deps {
	t.Helper()
	dir := t.TempDir()

	cipher, err := secrets.OpenCipher(filepath.Join(dir, "master.key"))
	if err != nil {
		t.Fatalf("OpenCipher: %v", err)
	}
	mem := memory.NewStore(cipher, nil)

	tl, err := timeline.NewService(filepath.Join(dir, "marvin.db"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { tl.Close() })

	gen := &fakeGenerator{reply: reply}
	factory := subagent.NewFactory(gen, mem, config.DefaultConfig().Learning, nil, nil)

	fs, err := store.NewFileStore(filepath.Join(dir, "state"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return Deps{
		Tasks:    task.NewManager(fs),
		Panel:    panel.New(gen, fields, time.Second, nil),
		Pool:     subagent.NewPool(factory, 4, time.Second, nil),
		Verifier: verify.New(nil, time.Second, nil),
		Decider:  decide.New(nil, nil),
		Monitor:  monitor.New(nil),
		Timeline: tl,
	}
}

func TestHappyPathSingleExpert(t *testing.T) {
	const story = "Once upon a time, there was a patient robot who answered questions."
	m := newTestMarvin(t, func(prompt string) (string, error) {
		if isExpertPrompt(prompt) {
			return "Generate a short story continuing the opening line.", nil
		}
		return story, nil
	}, []string{"Artificial Intelligence"})

	tk := task.NewTask("generate_text", map[string]any{"prompt": "Once upon a time"})
	if err := m.SubmitTask(tk); err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	d, err := m.ProcessCurrentTask(context.Background())
	if err != nil {
		t.Fatalf("ProcessCurrentTask: %v", err)
	}
	if d.Text != story {
		t.Errorf("decision = %q, want the generated text", d.Text)
	}
	if d.Flagged {
		t.Error("clean decision flagged")
	}
	if len(d.Provenance) != 1 {
		t.Errorf("provenance = %d results, want 1", len(d.Provenance))
	}

	if _, ok := m.CurrentTask(); ok {
		t.Error("task slot not cleared after processing")
	}
	got, ok := m.LatestDecision()
	if !ok || got.Text != story {
		t.Errorf("persisted decision = %+v, ok=%v", got, ok)
	}
	if m.State() != StateIdle {
		t.Errorf("state = %q, want idle", m.State())
	}
}

func TestZeroRecommendationsYieldsSentinel(t *testing.T) {
	m := newTestMarvin(t, func(prompt string) (string, error) {
		return "", errors.New("model offline")
	}, nil)

	tk := task.NewTask("generate_text", map[string]any{"prompt": "anything"})
	if err := m.SubmitTask(tk); err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	d, err := m.ProcessCurrentTask(context.Background())
	if err != nil {
		t.Fatalf("ProcessCurrentTask: %v", err)
	}
	if d.Text != task.NoValidResultText {
		t.Errorf("decision = %q, want sentinel", d.Text)
	}
	if _, ok := m.CurrentTask(); ok {
		t.Error("task slot not cleared")
	}
}

func TestOneOfTwoSubAgentsFails(t *testing.T) {
	const goodAnswer = "a solid, well-supported answer to the question"
	m := newTestMarvin(t, func(prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "As an expert in Artificial Intelligence"):
			return "GUIDE-BROKEN", nil
		case isExpertPrompt(prompt):
			return "GUIDE-GOOD", nil
		case strings.Contains(prompt, "GUIDE-BROKEN"):
			return "", errors.New("sub-agent model error")
		default:
			return goodAnswer, nil
		}
	}, []string{"Artificial Intelligence", "Data Science"})

	tk := task.NewTask("generate_text", map[string]any{"prompt": "what is entropy?"})
	if err := m.SubmitTask(tk); err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	d, err := m.ProcessCurrentTask(context.Background())
	if err != nil {
		t.Fatalf("ProcessCurrentTask: %v", err)
	}
	if d.Text != goodAnswer {
		t.Errorf("decision = %q, want the surviving result", d.Text)
	}
	// The failed slot was dropped at verification; only one result remains.
	if len(d.Provenance) != 1 {
		t.Errorf("provenance = %d results, want 1", len(d.Provenance))
	}
}

func TestHallucinatedDecisionIsDowngraded(t *testing.T) {
	m := newTestMarvin(t, func(prompt string) (string, error) {
		if isExpertPrompt(prompt) {
			return "answer confidently", nil
		}
		return "As everyone knows, the answer is certainly 42.", nil
	}, []string{"Artificial Intelligence"})

	tk := task.NewTask("generate_text", map[string]any{"prompt": "meaning of life"})
	if err := m.SubmitTask(tk); err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	d, err := m.ProcessCurrentTask(context.Background())
	if err != nil {
		t.Fatalf("ProcessCurrentTask: %v", err)
	}
	if d.Text != task.DisclaimerText {
		t.Errorf("decision = %q, want disclaimer", d.Text)
	}
	if !d.Flagged {
		t.Error("decision not flagged")
	}
}

func TestSubmitWhileInFlightFailsFast(t *testing.T) {
	m := newTestMarvin(t, func(string) (string, error) { return "ok", nil }, nil)

	if err := m.SubmitTask(task.NewTask("generate_text", nil)); err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	err := m.SubmitTask(task.NewTask("generate_text", nil))
	if !errors.Is(err, task.ErrTaskInFlight) {
		t.Fatalf("got %v, want ErrTaskInFlight", err)
	}
}

func TestProcessWithoutTask(t *testing.T) {
	m := newTestMarvin(t, func(string) (string, error) { return "ok", nil }, nil)
	_, err := m.ProcessCurrentTask(context.Background())
	if !errors.Is(err, ErrNoTask) {
		t.Fatalf("got %v, want ErrNoTask", err)
	}
}

func TestTimelineRecordsFullRun(t *testing.T) {
	dir := t.TempDir()
	tl, err := timeline.NewService(filepath.Join(dir, "marvin.db"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	defer tl.Close()

	cipher, err := secrets.OpenCipher(filepath.Join(dir, "master.key"))
	if err != nil {
		t.Fatalf("OpenCipher: %v", err)
	}
	gen := &fakeGenerator{reply: func(prompt string) (string, error) { return "fine answer", nil }}
	factory := subagent.NewFactory(gen, memory.NewStore(cipher, nil), config.DefaultConfig().Learning, nil, nil)
	fs, err := store.NewFileStore(filepath.Join(dir, "state"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	m := New(Deps{
		Tasks:    task.NewManager(fs),
		Panel:    panel.New(gen, []string{"Data Science"}, time.Second, nil),
		Pool:     subagent.NewPool(factory, 2, time.Second, nil),
		Verifier: verify.New(nil, time.Second, nil),
		Decider:  decide.New(nil, nil),
		Monitor:  monitor.New(nil),
		Timeline: tl,
	})

	tk := task.NewTask("generate_text", map[string]any{"prompt": "hello"})
	if err := m.SubmitTask(tk); err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	if _, err := m.ProcessCurrentTask(context.Background()); err != nil {
		t.Fatalf("ProcessCurrentTask: %v", err)
	}

	run, err := tl.Run(tk.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != timeline.RunStatusCompleted {
		t.Errorf("run status = %q", run.Status)
	}
	events, err := tl.Events(tk.ID)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	wantStages := []string{
		timeline.StageSubmitted,
		timeline.StageDeliberating,
		timeline.StageDispatching,
		timeline.StageVerifying,
		timeline.StageDeciding,
		timeline.StageMonitoring,
	}
	if len(events) != len(wantStages) {
		t.Fatalf("got %d events, want %d", len(events), len(wantStages))
	}
	for i, want := range wantStages {
		if events[i].Stage != want {
			t.Errorf("event %d = %q, want %q", i, events[i].Stage, want)
		}
	}
}

func TestDecisionSharedWithTeam(t *testing.T) {
	const answer = "A complete answer produced by the dispatched sub-agent."
	deps := newTestDeps(t, func(prompt string) (string, error) {
		if isExpertPrompt(prompt) {
			return "Answer the question directly.", nil
		}
		return answer, nil
	}, []string{"Artificial Intelligence"})

	cipher, err := secrets.OpenCipher(filepath.Join(t.TempDir(), "master.key"))
	if err != nil {
		t.Fatalf("OpenCipher: %v", err)
	}
	transport := bus.NewInProcBus()
	mem := memory.NewStore(cipher, nil)
	leader := collab.New("marvin", transport, mem, cipher, time.Second, nil)
	scout := collab.New("scout", transport, mem, cipher, time.Second, nil)

	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			if msg, ok := transport.Receive("scout", "", 20*time.Millisecond); ok {
				scout.HandleMessage(msg)
			}
		}
	}()

	if got := leader.FormTeam([]string{"scout"}); len(got) != 1 {
		t.Fatalf("FormTeam = %v, want scout to accept", got)
	}

	deps.Collab = leader
	m := New(deps)
	tk := task.NewTask("generate_text", map[string]any{"prompt": "Explain recursion"})
	if err := m.SubmitTask(tk); err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	if _, err := m.ProcessCurrentTask(context.Background()); err != nil {
		t.Fatalf("ProcessCurrentTask: %v", err)
	}

	// The scout's message loop decrypts the share and lands it in shared
	// memory under a sender-scoped key.
	var plain []byte
	deadline := time.Now().Add(2 * time.Second)
	for {
		plain, err = mem.Read("shared_knowledge_share_from_marvin", "scout")
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("shared decision never arrived: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	var payload map[string]any
	if err := json.Unmarshal(plain, &payload); err != nil {
		t.Fatalf("Unmarshal shared payload: %v", err)
	}
	if payload["decision"] != answer {
		t.Errorf("shared decision = %v, want %q", payload["decision"], answer)
	}
	if payload["task"] != tk.ID {
		t.Errorf("shared task = %v, want %q", payload["task"], tk.ID)
	}
}
