package subagent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marvin-agent/marvin/internal/task"
)

// Pool runs one sub-agent per recommendation with a concurrency cap. A batch
// of N recommendations always produces exactly N results; failures are
// recorded in their slot, never dropped.
type Pool struct {
	factory *Factory
	max     int
	timeout time.Duration
	logger  *slog.Logger
}

// NewPool creates a pool. max <= 0 means unlimited fan-out; a non-positive
// timeout disables the per-agent deadline.
func NewPool(factory *Factory, max int, timeout time.Duration, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{factory: factory, max: max, timeout: timeout, logger: logger}
}

// Execute instantiates and runs every recommended sub-agent against the
// task, joining all of them before returning. Result order matches the
// recommendation order.
func (p *Pool) Execute(ctx context.Context, t task.Task, recs []task.Recommendation) []task.Result {
	results := make([]task.Result, len(recs))

	var sem chan struct{}
	if p.max > 0 {
		sem = make(chan struct{}, p.max)
	}

	var wg sync.WaitGroup
	for i, rec := range recs {
		wg.Add(1)
		go func(i int, rec task.Recommendation) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = p.runOne(ctx, t, rec)
		}(i, rec)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	p.logger.Info("sub-agent batch finished", "task", t.ID, "agents", len(recs), "failed", failed)
	return results
}

func (p *Pool) runOne(ctx context.Context, t task.Task, rec task.Recommendation) (res task.Result) {
	res = task.Result{Kind: rec.Kind}

	// A panicking variant must not take down the batch; it becomes an
	// error result in its slot.
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("sub-agent panicked", "task", t.ID, "kind", rec.Kind, "panic", r)
			res.Err = fmt.Sprintf("sub-agent panic: %v", r)
		}
	}()

	agent, err := p.factory.New(rec)
	if err != nil {
		p.logger.Warn("sub-agent creation failed", "task", t.ID, "kind", rec.Kind, "error", err)
		res.Err = err.Error()
		return res
	}
	res.AgentID = agent.ID()
	res.Kind = string(agent.Kind())

	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	payload, err := agent.PerformTask(callCtx, t)
	if err != nil {
		p.logger.Warn("sub-agent failed", "task", t.ID, "agent", agent.ID(), "error", err)
		res.Err = err.Error()
		return res
	}
	res.Payload = payload
	return res
}
