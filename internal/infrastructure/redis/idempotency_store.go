package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore is a SetNX-backed ledger used by consumers that need a
// lightweight dedup claim without a relational row. Keys are written with no
// TTL: a claimed message_id is never released, even when processing failed.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
}

func NewIdempotencyStore(client *redis.Client, prefix string) *IdempotencyStore {
	return &IdempotencyStore{client: client, prefix: prefix}
}

// TryRegister claims messageID atomically via SETNX. Exactly one caller per
// ID gets true; everyone else, including concurrent callers, gets false.
func (s *IdempotencyStore) TryRegister(ctx context.Context, messageID string) (bool, error) {
	key := fmt.Sprintf("%s:%s", s.prefix, messageID)

	claimed, err := s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), 0).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}

	return claimed, nil
}
