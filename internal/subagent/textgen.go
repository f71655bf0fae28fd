package subagent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marvin-agent/marvin/internal/provider"
	"github.com/marvin-agent/marvin/internal/task"
)

// textAgent produces free text for a task, steered by the expert
// recommendation that spawned it.
type textAgent struct {
	id        string
	kind      Kind
	generator provider.TextGenerator
	guidance  string
}

func (a *textAgent) ID() string { return a.id }

func (a *textAgent) Kind() Kind { return a.kind }

func (a *textAgent) PerformTask(ctx context.Context, t task.Task) (any, error) {
	if a.generator == nil {
		return nil, errors.New("no text generator configured")
	}
	prompt := t.String("prompt")
	if prompt == "" {
		prompt = t.String("content")
	}
	if prompt == "" {
		return nil, errors.New("task payload has no prompt")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Complete the following task.\nTask: %s\n", prompt)
	if a.guidance != "" {
		fmt.Fprintf(&b, "Guidance from the expert panel:\n%s\n", a.guidance)
	}
	return a.generator.Generate(ctx, b.String(), provider.Options{})
}

// summaryAgent condenses the task's content into a short summary.
type summaryAgent struct {
	id        string
	generator provider.TextGenerator
}

func (a *summaryAgent) ID() string { return a.id }

func (a *summaryAgent) Kind() Kind { return KindContentSummarization }

func (a *summaryAgent) PerformTask(ctx context.Context, t task.Task) (any, error) {
	if a.generator == nil {
		return nil, errors.New("no text generator configured")
	}
	content := t.String("content")
	if content == "" {
		content = t.String("prompt")
	}
	if content == "" {
		return nil, errors.New("task payload has no content")
	}
	prompt := fmt.Sprintf("Summarize the following content in a few sentences, preserving key facts:\n\n%s", content)
	return a.generator.Generate(ctx, prompt, provider.Options{})
}
