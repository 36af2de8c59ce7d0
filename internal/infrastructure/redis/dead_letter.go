package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/event"
	"github.com/justinz12xd/practicaweb-resilencia/internal/messaging"

	"github.com/redis/go-redis/v9"
)

// DeadLetterQueue stores events that exhausted their delivery attempts in a
// Redis list an operator can inspect and replay.
type DeadLetterQueue struct {
	client *redis.Client
	key    string
}

func NewDeadLetterQueue(client *redis.Client, key string) *DeadLetterQueue {
	return &DeadLetterQueue{client: client, key: key}
}

func (q *DeadLetterQueue) Push(ctx context.Context, msg *event.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("rpush dead letter: %w", err)
	}

	return nil
}

// Entries returns up to limit dead-lettered events, oldest first, without
// removing them.
func (q *DeadLetterQueue) Entries(ctx context.Context, limit int64) ([]*event.Message, error) {
	if limit <= 0 {
		limit = -1 // full list
	}

	raw, err := q.client.LRange(ctx, q.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange dead letters: %w", err)
	}

	msgs := make([]*event.Message, 0, len(raw))
	for _, item := range raw {
		msg := &event.Message{}
		if err := json.Unmarshal([]byte(item), msg); err != nil {
			return nil, fmt.Errorf("unmarshal dead letter: %w", err)
		}
		msgs = append(msgs, msg)
	}

	return msgs, nil
}

// Replay drains the list and re-emits each event through the publisher. Each
// replayed event gets a fresh message_id, so the guarded consumer will treat
// it as a new delivery attempt.
func (q *DeadLetterQueue) Replay(ctx context.Context, pub messaging.Publisher) (int, error) {
	replayed := 0

	for {
		item, err := q.client.LPop(ctx, q.key).Result()
		if errors.Is(err, redis.Nil) {
			return replayed, nil
		}
		if err != nil {
			return replayed, fmt.Errorf("lpop dead letter: %w", err)
		}

		msg := &event.Message{}
		if err := json.Unmarshal([]byte(item), msg); err != nil {
			return replayed, fmt.Errorf("unmarshal dead letter: %w", err)
		}

		if err := pub.Emit(ctx, msg.Type, msg.Payload); err != nil {
			// Put the event back so nothing is lost
			if pushErr := q.client.LPush(ctx, q.key, item).Err(); pushErr != nil {
				return replayed, fmt.Errorf("re-emit dead letter %s: %w (restore failed: %v)", msg.ID, err, pushErr)
			}
			return replayed, fmt.Errorf("re-emit dead letter %s: %w", msg.ID, err)
		}

		replayed++
	}
}
