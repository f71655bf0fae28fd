// Package panel implements the expert panel that deliberates on a task and
// produces the recommendations driving sub-agent assembly.
package panel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marvin-agent/marvin/internal/provider"
	"github.com/marvin-agent/marvin/internal/subagent"
	"github.com/marvin-agent/marvin/internal/task"
)

// DefaultFields is the standing panel used when the config names none.
var DefaultFields = []string{"Artificial Intelligence", "Data Science", "Cybersecurity"}

var expertNames = map[string]string{
	"Artificial Intelligence": "Dr. Alan Turing",
	"Data Science":            "Dr. Cynthia Rudin",
	"Cybersecurity":           "Dr. Bruce Schneier",
}

// ExpertName returns the panel member representing a field.
func ExpertName(field string) string {
	if name, ok := expertNames[field]; ok {
		return name
	}
	return "Dr. Jane Doe"
}

// Panel consults one expert per field concurrently and collects their
// recommendations.
type Panel struct {
	generator provider.TextGenerator
	fields    []string
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a panel. Empty fields fall back to the default panel; a
// non-positive timeout disables the per-expert deadline.
func New(generator provider.TextGenerator, fields []string, timeout time.Duration, logger *slog.Logger) *Panel {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Panel{generator: generator, fields: fields, timeout: timeout, logger: logger}
}

// Deliberate asks every expert for a recommendation, one goroutine per
// field, and joins them all before returning. A failing expert is logged and
// omitted; zero recommendations is a valid outcome meaning no applicable
// sub-agents. Order of the returned list is not significant.
func (p *Panel) Deliberate(ctx context.Context, t task.Task) []task.Recommendation {
	kind := subagent.KindForTask(t)

	var (
		mu   sync.Mutex
		recs []task.Recommendation
		wg   sync.WaitGroup
	)
	for _, field := range p.fields {
		wg.Add(1)
		go func(field string) {
			defer wg.Done()

			callCtx := ctx
			if p.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, p.timeout)
				defer cancel()
			}

			expert := ExpertName(field)
			prompt := fmt.Sprintf(
				"As an expert in %s, provide a detailed recommendation for the following task.\nTask kind: %s\nTask: %s",
				field, t.Kind, t.String("prompt"),
			)
			text, err := p.generator.Generate(callCtx, prompt, provider.Options{})
			if err != nil {
				p.logger.Warn("expert deliberation failed", "field", field, "expert", expert, "error", err)
				return
			}

			mu.Lock()
			recs = append(recs, task.Recommendation{
				ExpertID: expert,
				Field:    field,
				Text:     text,
				Kind:     string(kind),
			})
			mu.Unlock()
		}(field)
	}
	wg.Wait()

	p.logger.Info("expert panel deliberated", "task", t.ID, "fields", len(p.fields), "recommendations", len(recs))
	return recs
}
