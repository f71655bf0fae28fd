// Package agent wires the pipeline stages into the Marvin core: deliberate,
// dispatch, verify, decide, monitor, persist.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/marvin-agent/marvin/internal/collab"
	"github.com/marvin-agent/marvin/internal/decide"
	"github.com/marvin-agent/marvin/internal/monitor"
	"github.com/marvin-agent/marvin/internal/notify"
	"github.com/marvin-agent/marvin/internal/panel"
	"github.com/marvin-agent/marvin/internal/subagent"
	"github.com/marvin-agent/marvin/internal/task"
	"github.com/marvin-agent/marvin/internal/timeline"
	"github.com/marvin-agent/marvin/internal/verify"
)

// ErrNoTask is returned by ProcessCurrentTask when no task is current.
var ErrNoTask = errors.New("no task to process")

// State is the pipeline's current phase. Flagging still completes the run;
// it is a content transform, not a failure.
type State string

const (
	StateIdle         State = "idle"
	StateDeliberating State = "deliberating"
	StateDispatching  State = "dispatching"
	StateVerifying    State = "verifying"
	StateDeciding     State = "deciding"
	StateMonitoring   State = "monitoring"
	StateCompleted    State = "completed"
	StateFlagged      State = "flagged"
)

// Deps are the collaborators a Marvin instance is assembled from. Tasks,
// Panel, Pool, Verifier, Decider and Monitor are required; Timeline,
// Notifier and Collab are optional. When Collab is set, every finished
// decision is shared with the current team over the message bus.
type Deps struct {
	Tasks    *task.Manager
	Panel    *panel.Panel
	Pool     *subagent.Pool
	Verifier *verify.Verifier
	Decider  *decide.Decider
	Monitor  *monitor.Monitor
	Timeline *timeline.Service
	Notifier notify.Notifier
	Collab   *collab.Collaborator
	Logger   *slog.Logger
}

// Marvin runs the task pipeline. At most one task is in flight and at most
// one pipeline run executes at a time.
type Marvin struct {
	deps Deps

	runMu sync.Mutex // serializes pipeline runs

	mu    sync.Mutex
	state State
}

// New assembles a Marvin from its collaborators.
func New(deps Deps) *Marvin {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Marvin{deps: deps, state: StateIdle}
}

// State returns the current pipeline phase.
func (m *Marvin) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Marvin) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// SubmitTask registers a new task. Fails fast with task.ErrTaskInFlight
// while another task is current.
func (m *Marvin) SubmitTask(t task.Task) error {
	if err := m.deps.Tasks.Submit(t); err != nil {
		return err
	}
	if m.deps.Timeline != nil {
		if err := m.deps.Timeline.StartRun(t.ID, t.Kind); err != nil {
			m.deps.Logger.Warn("failed to open timeline run", "task", t.ID, "error", err)
		}
	}
	m.deps.Logger.Info("task submitted", "task", t.ID, "kind", t.Kind)
	return nil
}

// CurrentTask returns the in-flight task, if any.
func (m *Marvin) CurrentTask() (task.Task, bool) {
	return m.deps.Tasks.Current()
}

// LatestDecision returns the most recently persisted decision.
func (m *Marvin) LatestDecision() (task.Decision, bool) {
	return m.deps.Tasks.LoadDecision()
}

// ClearTask drops the current task without processing it.
func (m *Marvin) ClearTask() error {
	return m.deps.Tasks.Clear()
}

// ProcessCurrentTask runs the full pipeline on the current task and returns
// the final decision. The decision is persisted before the task slot is
// cleared, so a caller never observes a cleared task with no stored result.
// Per-item failures inside the stages are contained there; only task
// bookkeeping errors surface here.
func (m *Marvin) ProcessCurrentTask(ctx context.Context) (task.Decision, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	t, ok := m.deps.Tasks.Current()
	if !ok {
		return task.Decision{}, ErrNoTask
	}
	m.deps.Logger.Info("processing task", "task", t.ID, "kind", t.Kind)

	m.setState(StateDeliberating)
	m.recordStage(t.ID, timeline.StageDeliberating, "")
	recs := m.deps.Panel.Deliberate(ctx, t)

	m.setState(StateDispatching)
	m.recordStage(t.ID, timeline.StageDispatching, "")
	results := m.deps.Pool.Execute(ctx, t, recs)

	m.setState(StateVerifying)
	m.recordStage(t.ID, timeline.StageVerifying, "")
	verified := m.deps.Verifier.Verify(ctx, results)

	m.setState(StateDeciding)
	m.recordStage(t.ID, timeline.StageDeciding, "")
	decision := m.deps.Decider.Decide(verified)

	m.setState(StateMonitoring)
	m.recordStage(t.ID, timeline.StageMonitoring, "")
	final := StateCompleted
	if m.deps.Monitor.Detect(decision) {
		m.deps.Logger.Warn("hallucination detected in decision", "task", t.ID)
		decision.Text = task.DisclaimerText
		decision.Flagged = true
		final = StateFlagged
	}

	if err := m.deps.Tasks.SaveDecision(decision); err != nil {
		m.setState(StateIdle)
		return task.Decision{}, err
	}
	if err := m.deps.Tasks.Clear(); err != nil {
		m.setState(StateIdle)
		return task.Decision{}, err
	}

	m.setState(final)
	m.finishRun(t, decision, final)
	m.shareDecision(t, decision)

	if err := m.deps.Notifier.AnnounceDecision(ctx, t, decision); err != nil {
		m.deps.Logger.Warn("failed to announce decision", "task", t.ID, "error", err)
	}

	m.setState(StateIdle)
	m.deps.Logger.Info("task completed", "task", t.ID, "flagged", decision.Flagged)
	return decision, nil
}

func (m *Marvin) recordStage(taskID, stage, detail string) {
	if m.deps.Timeline == nil {
		return
	}
	if err := m.deps.Timeline.RecordStage(taskID, stage, detail); err != nil {
		m.deps.Logger.Warn("failed to record stage", "task", taskID, "stage", stage, "error", err)
	}
}

// Collaborator exposes the agent's collaboration surface, if one is wired.
func (m *Marvin) Collaborator() *collab.Collaborator {
	return m.deps.Collab
}

func (m *Marvin) shareDecision(t task.Task, d task.Decision) {
	if m.deps.Collab == nil || len(m.deps.Collab.Team()) == 0 {
		return
	}
	err := m.deps.Collab.ShareKnowledge(map[string]any{
		"task":     t.ID,
		"kind":     t.Kind,
		"decision": d.Text,
		"flagged":  d.Flagged,
	})
	if err != nil {
		m.deps.Logger.Warn("failed to share decision with team", "task", t.ID, "error", err)
	}
}

func (m *Marvin) finishRun(t task.Task, d task.Decision, final State) {
	if m.deps.Timeline == nil {
		return
	}
	status := timeline.RunStatusCompleted
	if final == StateFlagged {
		status = timeline.RunStatusFlagged
	}
	if err := m.deps.Timeline.FinishRun(t.ID, status, d.Text, d.Flagged); err != nil {
		m.deps.Logger.Warn("failed to close timeline run", "task", t.ID, "error", err)
	}
}
