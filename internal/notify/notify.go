// Package notify announces finalized decisions to external channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/marvin-agent/marvin/internal/config"
	"github.com/marvin-agent/marvin/internal/task"
)

// Notifier announces one finalized decision. Announcement failures are the
// caller's to log; they never affect the pipeline outcome.
type Notifier interface {
	AnnounceDecision(ctx context.Context, t task.Task, d task.Decision) error
}

// Nop discards announcements. Used when no channel is configured.
type Nop struct{}

func (Nop) AnnounceDecision(context.Context, task.Task, task.Decision) error { return nil }

// SlackNotifier posts decisions to a Slack channel.
type SlackNotifier struct {
	api     *slack.Client
	channel string
	logger  *slog.Logger
}

// NewSlack builds a notifier from config. Returns an error when the token or
// channel is missing.
func NewSlack(cfg config.NotifyConfig, logger *slog.Logger) (*SlackNotifier, error) {
	token := strings.TrimSpace(cfg.SlackToken)
	if token == "" {
		return nil, errors.New("missing slack token")
	}
	channel := strings.TrimSpace(cfg.SlackChannel)
	if channel == "" {
		return nil, errors.New("missing slack channel")
	}

	opts := []slack.Option{}
	if base := strings.TrimSpace(cfg.SlackAPIBase); base != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(base, "/")+"/"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackNotifier{api: slack.New(token, opts...), channel: channel, logger: logger}, nil
}

// AnnounceDecision posts the decision text, marking flagged decisions.
func (n *SlackNotifier) AnnounceDecision(ctx context.Context, t task.Task, d task.Decision) error {
	header := fmt.Sprintf("Task %s (%s) decided", t.ID, t.Kind)
	if d.Flagged {
		header += " [flagged]"
	}
	text := header + ":\n" + d.Text

	_, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	n.logger.Info("decision announced", "task", t.ID, "channel", n.channel)
	return nil
}
