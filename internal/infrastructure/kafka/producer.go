package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/event"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type ProducerConfig struct {
	Brokers  []string
	Producer string
	// Topics maps event_type to the topic it is published on.
	Topics map[string]string
}

// Producer is the publish primitive into the broker. Emit stamps the
// envelope: the message_id is generated here, once, and survives every
// downstream hop and retry.
type Producer struct {
	writer *kafka.Writer
	cfg    ProducerConfig
}

func NewProducer(cfg ProducerConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}

	return &Producer{writer: w, cfg: cfg}
}

func (p *Producer) Emit(ctx context.Context, eventType string, payload any) error {
	topic, ok := p.cfg.Topics[eventType]
	if !ok {
		return fmt.Errorf("no topic configured for event type %q", eventType)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	msg := event.Message{
		ID:         uuid.New().String(),
		Type:       eventType,
		Producer:   p.cfg.Producer,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(msg.ID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
