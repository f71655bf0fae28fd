// Package collab implements inter-agent collaboration: team formation,
// knowledge sharing, task delegation and conflict resolution over the
// message bus.
package collab

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/marvin-agent/marvin/internal/bus"
	"github.com/marvin-agent/marvin/internal/memory"
	"github.com/marvin-agent/marvin/internal/secrets"
)

// Message types exchanged between collaborating agents.
const (
	TypeTeamInvitation     = "team_invitation"
	TypeTeamResponse       = "team_response"
	TypeKnowledgeShare     = "knowledge_share"
	TypeTaskDelegation     = "task_delegation"
	TypeConflictResolution = "conflict_resolution"
	TypeDataSync           = "data_synchronization"

	acceptReply = "accept"
)

const defaultInviteTimeout = 10 * time.Second

// Collaborator gives one agent a collaboration surface. Knowledge and
// delegated tasks travel encrypted on the bus; received knowledge lands in
// shared memory under the recipient's ownership.
type Collaborator struct {
	agentID string
	bus     bus.Transport
	mem     *memory.Store
	cipher  *secrets.Cipher
	timeout time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	team map[string]struct{}
}

// New wires a collaborator for agentID. A non-positive timeout falls back
// to the default invitation timeout.
func New(agentID string, transport bus.Transport, mem *memory.Store, cipher *secrets.Cipher, timeout time.Duration, logger *slog.Logger) *Collaborator {
	if timeout <= 0 {
		timeout = defaultInviteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collaborator{
		agentID: agentID,
		bus:     transport,
		mem:     mem,
		cipher:  cipher,
		timeout: timeout,
		logger:  logger,
		team:    make(map[string]struct{}),
	}
}

// Team returns the current members in sorted order.
func (c *Collaborator) Team() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	members := make([]string, 0, len(c.team))
	for m := range c.team {
		members = append(members, m)
	}
	sort.Strings(members)
	return members
}

// FormTeam invites every listed agent and returns those that accepted.
// Declines and timeouts are logged and skipped; a partial team is a valid
// outcome.
func (c *Collaborator) FormTeam(agents []string) []string {
	var accepted []string
	for _, agentID := range agents {
		if c.invite(agentID) {
			c.mu.Lock()
			c.team[agentID] = struct{}{}
			c.mu.Unlock()
			accepted = append(accepted, agentID)
		} else {
			c.logger.Warn("team invitation declined or unanswered", "agent", agentID)
		}
	}
	c.logger.Info("team formed", "leader", c.agentID, "members", len(accepted))
	return accepted
}

func (c *Collaborator) invite(agentID string) bool {
	err := c.bus.Send(c.agentID, agentID, TypeTeamInvitation,
		"Would you like to join my team for task collaboration?")
	if err != nil {
		c.logger.Warn("failed to send invitation", "agent", agentID, "error", err)
		return false
	}
	for {
		reply, ok := c.bus.Receive(c.agentID, TypeTeamResponse, c.timeout)
		if !ok {
			return false
		}
		// A stale response from a different invitee is discarded.
		if reply.SenderID != agentID {
			continue
		}
		return reply.Content == acceptReply
	}
}

// ShareKnowledge encrypts the data and sends it to every team member.
func (c *Collaborator) ShareKnowledge(data map[string]any) error {
	plain, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal knowledge: %w", err)
	}
	sealed, err := c.cipher.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("encrypt knowledge: %w", err)
	}
	for _, member := range c.Team() {
		if err := c.bus.Send(c.agentID, member, TypeKnowledgeShare, string(sealed)); err != nil {
			return fmt.Errorf("share with %s: %w", member, err)
		}
	}
	return nil
}

// DelegateTask sends an encrypted subtask description to a specific agent.
// The target does not need to be a team member.
func (c *Collaborator) DelegateTask(description, agentID string) error {
	sealed, err := c.cipher.Encrypt([]byte(description))
	if err != nil {
		return fmt.Errorf("encrypt delegation: %w", err)
	}
	if err := c.bus.Send(c.agentID, agentID, TypeTaskDelegation, string(sealed)); err != nil {
		return fmt.Errorf("delegate to %s: %w", agentID, err)
	}
	c.logger.Info("task delegated", "from", c.agentID, "to", agentID)
	return nil
}

// ResolveConflict reaches a deterministic consensus over competing options
// (the most substantive option wins, first-seen on ties) and announces it to
// the team. Empty input is an error.
func (c *Collaborator) ResolveConflict(options []string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options to resolve")
	}
	winner := options[0]
	for _, opt := range options[1:] {
		if len(opt) > len(winner) {
			winner = opt
		}
	}
	for _, member := range c.Team() {
		if err := c.bus.Send(c.agentID, member, TypeConflictResolution, winner); err != nil {
			return "", fmt.Errorf("announce to %s: %w", member, err)
		}
	}
	c.logger.Info("conflict resolved", "options", len(options))
	return winner, nil
}

// SynchronizeData reads a shared-memory key the agent can access and pushes
// the encrypted value to every team member.
func (c *Collaborator) SynchronizeData(key string) error {
	value, err := c.mem.Read(key, c.agentID)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	sealed, err := c.cipher.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt sync payload: %w", err)
	}
	for _, member := range c.Team() {
		if err := c.bus.Send(c.agentID, member, TypeDataSync, string(sealed)); err != nil {
			return fmt.Errorf("sync with %s: %w", member, err)
		}
	}
	return nil
}

// HandleMessage processes one incoming collaboration message. Invitations
// are auto-accepted; shared knowledge and synced data are decrypted and
// stored in shared memory under a sender-scoped key.
func (c *Collaborator) HandleMessage(msg bus.Message) {
	switch msg.Type {
	case TypeTeamInvitation:
		if err := c.bus.Send(c.agentID, msg.SenderID, TypeTeamResponse, acceptReply); err != nil {
			c.logger.Warn("failed to answer invitation", "from", msg.SenderID, "error", err)
			return
		}
		c.mu.Lock()
		c.team[msg.SenderID] = struct{}{}
		c.mu.Unlock()
	case TypeKnowledgeShare, TypeDataSync:
		plain, err := c.cipher.Decrypt([]byte(msg.Content))
		if err != nil {
			c.logger.Warn("failed to decrypt shared payload", "from", msg.SenderID, "error", err)
			return
		}
		key := "shared_" + msg.Type + "_from_" + msg.SenderID
		if err := c.mem.Write(key, plain, c.agentID); err != nil {
			c.logger.Warn("failed to store shared payload", "key", key, "error", err)
		}
	case TypeTaskDelegation:
		plain, err := c.cipher.Decrypt([]byte(msg.Content))
		if err != nil {
			c.logger.Warn("failed to decrypt delegated task", "from", msg.SenderID, "error", err)
			return
		}
		key := "delegated_task_from_" + msg.SenderID
		if err := c.mem.Write(key, plain, c.agentID); err != nil {
			c.logger.Warn("failed to store delegated task", "key", key, "error", err)
		}
	case TypeConflictResolution:
		c.logger.Info("conflict resolution received", "from", msg.SenderID)
	default:
		c.logger.Debug("unhandled collaboration message", "type", msg.Type, "from", msg.SenderID)
	}
}
