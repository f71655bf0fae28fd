// Package bus provides the messaging capability agents use for direct
// exchanges: team invitations, interrogations and knowledge announcements.
// The in-process bus is the default transport; the Kafka broker implements
// the same interface for cross-process deployments.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one agent-to-agent message.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// Transport moves messages between agents.
type Transport interface {
	// Send delivers a message to the receiver's mailbox.
	Send(senderID, receiverID, msgType, content string) error
	// Receive returns the oldest pending message for receiverID matching
	// expectedType (any type if empty), waiting up to timeout. The bool
	// reports whether a message arrived.
	Receive(receiverID, expectedType string, timeout time.Duration) (Message, bool)
}

type mailbox struct {
	queue  []Message
	notify chan struct{}
}

// InProcBus is a Transport backed by per-receiver in-memory mailboxes.
type InProcBus struct {
	mu        sync.Mutex
	mailboxes map[string]*mailbox
}

// NewInProcBus creates an empty bus.
func NewInProcBus() *InProcBus {
	return &InProcBus{mailboxes: make(map[string]*mailbox)}
}

func (b *InProcBus) box(receiverID string) *mailbox {
	mb, ok := b.mailboxes[receiverID]
	if !ok {
		mb = &mailbox{notify: make(chan struct{}, 1)}
		b.mailboxes[receiverID] = mb
	}
	return mb
}

// Send appends the message to the receiver's mailbox and wakes any waiter.
func (b *InProcBus) Send(senderID, receiverID, msgType, content string) error {
	msg := Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Type:       msgType,
		Content:    content,
		Timestamp:  time.Now(),
	}

	b.mu.Lock()
	mb := b.box(receiverID)
	mb.queue = append(mb.queue, msg)
	b.mu.Unlock()

	select {
	case mb.notify <- struct{}{}:
	default:
	}
	return nil
}

// Receive waits up to timeout for a message of expectedType.
func (b *InProcBus) Receive(receiverID, expectedType string, timeout time.Duration) (Message, bool) {
	deadline := time.Now().Add(timeout)
	for {
		b.mu.Lock()
		mb := b.box(receiverID)
		for i, msg := range mb.queue {
			if expectedType != "" && msg.Type != expectedType {
				continue
			}
			mb.queue = append(mb.queue[:i], mb.queue[i+1:]...)
			b.mu.Unlock()
			return msg, true
		}
		notify := mb.notify
		b.mu.Unlock()

		wait := time.Until(deadline)
		if wait <= 0 {
			return Message{}, false
		}
		timer := time.NewTimer(wait)
		select {
		case <-notify:
			timer.Stop()
		case <-timer.C:
			return Message{}, false
		}
	}
}
