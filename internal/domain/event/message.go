package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types carried through the pipeline.
const (
	TypeAdoptionRequested = "adoption.request"
	TypeAdoptionCreated   = "adoption.created"
	TypeWebhookPublish    = "webhook.publish"
)

// Message is the envelope published to Kafka.
// ID is generated once by the producer and preserved unchanged through every
// hop and retry; it is the deduplication key for the whole pipeline.
// Payload is kept as raw JSON produced by the originating service.
type Message struct {
	ID         string          `json:"message_id"`
	Type       string          `json:"event_type"`
	Producer   string          `json:"producer,omitempty"`
	OccurredAt time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// AdoptionRequested is the payload of an adoption.request message.
type AdoptionRequested struct {
	AnimalID     string `json:"animal_id"`
	AdopterName  string `json:"adopter_name"`
	AdopterEmail string `json:"adopter_email"`
}

// AdoptionCreated is the payload of an adoption.created message.
type AdoptionCreated struct {
	AnimalID string `json:"animal_id"`
}

// AdoptionSummary is the payload of a webhook.publish message, the shape
// external subscribers receive.
type AdoptionSummary struct {
	AdoptionID   string    `json:"adoption_id"`
	AnimalID     string    `json:"animal_id"`
	AdopterName  string    `json:"adopter_name"`
	AdopterEmail string    `json:"adopter_email"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// DecodePayload unmarshals the envelope payload into dst. A malformed payload
// is a boundary validation error, not a crash.
func (m *Message) DecodePayload(dst any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("event %s: empty payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}
