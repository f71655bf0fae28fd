package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/marvin-agent/marvin/internal/agent"
	"github.com/marvin-agent/marvin/internal/broker"
	"github.com/marvin-agent/marvin/internal/bus"
	"github.com/marvin-agent/marvin/internal/collab"
	"github.com/marvin-agent/marvin/internal/config"
	"github.com/marvin-agent/marvin/internal/decide"
	"github.com/marvin-agent/marvin/internal/memory"
	"github.com/marvin-agent/marvin/internal/monitor"
	"github.com/marvin-agent/marvin/internal/notify"
	"github.com/marvin-agent/marvin/internal/panel"
	"github.com/marvin-agent/marvin/internal/provider"
	"github.com/marvin-agent/marvin/internal/secrets"
	"github.com/marvin-agent/marvin/internal/store"
	"github.com/marvin-agent/marvin/internal/subagent"
	"github.com/marvin-agent/marvin/internal/task"
	"github.com/marvin-agent/marvin/internal/timeline"
	"github.com/marvin-agent/marvin/internal/verify"
)

// runtime bundles everything a command needs for one invocation.
type runtime struct {
	cfg      *config.Config
	marvin   *agent.Marvin
	timeline *timeline.Service

	closers []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

// buildRuntime assembles the full pipeline from config.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	rt := &runtime{cfg: cfg}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	blobs, err := store.OpenSQLite(cfg.Paths.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.closers = append(rt.closers, blobs.Close)

	tl, err := timeline.NewService(cfg.Paths.DBPath)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open timeline: %w", err)
	}
	rt.timeline = tl
	rt.closers = append(rt.closers, tl.Close)

	cipher, err := secrets.OpenCipher(cfg.Memory.KeyPath)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open cipher: %w", err)
	}
	mem := memory.NewStore(cipher, nil)

	// Collaboration runs in-process unless a Kafka broker is configured.
	var transport bus.Transport = bus.NewInProcBus()
	if cfg.Broker.Enabled {
		kafka := broker.NewKafkaTransport(cfg.Broker)
		rt.closers = append(rt.closers, kafka.Close)
		transport = kafka
	}

	gen := provider.NewOpenAIProvider(
		cfg.Model.APIKey, cfg.Model.APIBase, cfg.Model.Name,
		cfg.Model.MaxTokens, cfg.Model.Temperature,
	)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notify.SlackEnabled {
		slackNotifier, err := notify.NewSlack(cfg.Notify, nil)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("slack notifier: %w", err)
		}
		notifier = slackNotifier
	}

	timeout := cfg.Pipeline.AgentTimeout()
	factory := subagent.NewFactory(gen, mem, cfg.Learning, nil, nil)
	rt.marvin = agent.New(agent.Deps{
		Tasks:    task.NewManager(blobs),
		Panel:    panel.New(gen, cfg.Pipeline.Fields, timeout, nil),
		Pool:     subagent.NewPool(factory, cfg.Pipeline.MaxConcurrent, timeout, nil),
		Verifier: verify.New(nil, timeout, nil),
		Decider:  decide.New(nil, nil),
		Monitor:  monitor.New(nil),
		Timeline: tl,
		Notifier: notifier,
		Collab:   collab.New("marvin", transport, mem, cipher, timeout, nil),
	})
	return rt, nil
}
