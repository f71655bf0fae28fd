package collab

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/marvin-agent/marvin/internal/bus"
)

// Interrogation message types.
const (
	TypeInterrogation = "interrogation"
	TypeExplanation   = "explanation"
)

const defaultInterrogateTimeout = 15 * time.Second

// Interrogator questions agents about their decisions and collects their
// explanations.
type Interrogator struct {
	id      string
	bus     bus.Transport
	timeout time.Duration
	logger  *slog.Logger
}

// NewInterrogator builds an interrogator speaking on the given transport.
func NewInterrogator(transport bus.Transport, timeout time.Duration, logger *slog.Logger) *Interrogator {
	if timeout <= 0 {
		timeout = defaultInterrogateTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Interrogator{id: "interrogator", bus: transport, timeout: timeout, logger: logger}
}

// Interrogate asks an agent to explain a decision and waits for the
// explanation. The bool reports whether an explanation arrived in time;
// responses from other agents are discarded.
func (q *Interrogator) Interrogate(agentID, decision string) (string, bool) {
	prompt := fmt.Sprintf("Please explain your decision: %q", decision)
	if err := q.bus.Send(q.id, agentID, TypeInterrogation, prompt); err != nil {
		q.logger.Warn("failed to send interrogation", "agent", agentID, "error", err)
		return "", false
	}
	for {
		reply, ok := q.bus.Receive(q.id, TypeExplanation, q.timeout)
		if !ok {
			q.logger.Warn("no explanation received", "agent", agentID)
			return "", false
		}
		if reply.SenderID != agentID {
			continue
		}
		q.logger.Info("explanation received", "agent", agentID)
		return reply.Content, true
	}
}
