package messaging

import "context"

// Publisher is the emit primitive into the broker. Implementations stamp the
// envelope (message_id, producer, timestamp) and route eventType to a topic.
type Publisher interface {
	Emit(ctx context.Context, eventType string, payload any) error
}
