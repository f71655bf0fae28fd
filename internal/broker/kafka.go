// Package broker provides a Kafka-backed implementation of the agent
// messaging transport for deployments where agents run in separate
// processes. Each agent has its own topic; consumed messages land in an
// in-memory mailbox so Receive keeps the same filtering semantics as the
// in-process bus.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/marvin-agent/marvin/internal/bus"
	"github.com/marvin-agent/marvin/internal/config"
)

// KafkaTransport implements bus.Transport over Kafka topics.
type KafkaTransport struct {
	mu      sync.Mutex
	brokers []string
	group   string
	prefix  string
	writer  *kafka.Writer
	local   *bus.InProcBus
	readers map[string]*kafka.Reader
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewKafkaTransport creates a transport from broker config.
func NewKafkaTransport(cfg config.BrokerConfig) *KafkaTransport {
	brokerList := strings.Split(cfg.Brokers, ",")
	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaTransport{
		brokers: brokerList,
		group:   cfg.ConsumerGroup,
		prefix:  strings.TrimSpace(cfg.TopicPrefix),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokerList...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		local:   bus.NewInProcBus(),
		readers: make(map[string]*kafka.Reader),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (t *KafkaTransport) topic(receiverID string) string {
	prefix := t.prefix
	if prefix == "" {
		prefix = "marvin"
	}
	safe := strings.NewReplacer("/", "-", " ", "-").Replace(receiverID)
	return prefix + ".agent." + safe
}

// Send publishes the message to the receiver's topic, retrying transient
// leader errors.
func (t *KafkaTransport) Send(senderID, receiverID, msgType, content string) error {
	msg := bus.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Type:       msgType,
		Content:    content,
		Timestamp:  time.Now(),
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	record := kafka.Message{
		Topic: t.topic(receiverID),
		Key:   []byte(receiverID),
		Value: value,
		Time:  msg.Timestamp,
	}

	var writeErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
		}
		writeCtx, cancel := context.WithTimeout(t.ctx, 10*time.Second)
		writeErr = t.writer.WriteMessages(writeCtx, record)
		cancel()
		if writeErr == nil {
			return nil
		}
	}
	return fmt.Errorf("produce to %s: %w", record.Topic, writeErr)
}

// Subscribe starts consuming the receiver's topic into the local mailbox.
// Safe to call repeatedly; Receive subscribes implicitly.
func (t *KafkaTransport) Subscribe(receiverID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	topic := t.topic(receiverID)
	if _, ok := t.readers[topic]; ok {
		return
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  t.brokers,
		Topic:    topic,
		GroupID:  t.group,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	t.readers[topic] = reader

	go func() {
		for {
			record, err := reader.ReadMessage(t.ctx)
			if err != nil {
				if t.ctx.Err() != nil {
					return
				}
				slog.Warn("Kafka read error", "topic", topic, "error", err)
				continue
			}
			var msg bus.Message
			if err := json.Unmarshal(record.Value, &msg); err != nil {
				slog.Warn("Kafka message parse error", "topic", topic, "error", err)
				continue
			}
			t.local.Send(msg.SenderID, msg.ReceiverID, msg.Type, msg.Content)
		}
	}()
}

// Receive waits for a consumed message matching expectedType.
func (t *KafkaTransport) Receive(receiverID, expectedType string, timeout time.Duration) (bus.Message, bool) {
	t.Subscribe(receiverID)
	return t.local.Receive(receiverID, expectedType, timeout)
}

// Close stops all readers and the producer.
func (t *KafkaTransport) Close() error {
	t.cancel()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.readers {
		_ = r.Close()
	}
	return t.writer.Close()
}
