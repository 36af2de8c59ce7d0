package redis

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/event"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
}

func TestIdempotencyStoreClaimsOncePerID(t *testing.T) {
	store := NewIdempotencyStore(newTestClient(t), "test:processed")
	ctx := context.Background()

	claimed, err := store.TryRegister(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.TryRegister(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = store.TryRegister(ctx, "msg-2")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestIdempotencyStoreConcurrentClaims(t *testing.T) {
	store := NewIdempotencyStore(newTestClient(t), "test:processed")
	ctx := context.Background()

	const workers = 20
	var wins int64
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.TryRegister(ctx, "msg-race")
			assert.NoError(t, err)
			if claimed {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&wins))
}

func TestIdempotencyStoreUnreachable(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:1"})
	store := NewIdempotencyStore(client, "test:processed")

	_, err := store.TryRegister(context.Background(), "msg-1")
	assert.Error(t, err)
}

func deadLetterMessage(id string) *event.Message {
	return &event.Message{
		ID:         id,
		Type:       event.TypeWebhookPublish,
		OccurredAt: time.Now().UTC().Truncate(time.Second),
		Payload:    json.RawMessage(`{"adoption_id":"adoption-1"}`),
	}
}

func TestDeadLetterQueuePushAndEntries(t *testing.T) {
	q := NewDeadLetterQueue(newTestClient(t), "test:dlq")
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, deadLetterMessage("evt-1")))
	require.NoError(t, q.Push(ctx, deadLetterMessage("evt-2")))

	entries, err := q.Entries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "evt-1", entries[0].ID)
	assert.Equal(t, "evt-2", entries[1].ID)

	// Entries does not consume the list.
	entries, err = q.Entries(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

type capturePublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *capturePublisher) Emit(_ context.Context, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	return nil
}

func TestDeadLetterQueueReplay(t *testing.T) {
	q := NewDeadLetterQueue(newTestClient(t), "test:dlq")
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, deadLetterMessage("evt-1")))
	require.NoError(t, q.Push(ctx, deadLetterMessage("evt-2")))

	pub := &capturePublisher{}
	n, err := q.Replay(ctx, pub)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{event.TypeWebhookPublish, event.TypeWebhookPublish}, pub.types)

	entries, err := q.Entries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries, "replayed events leave the queue")
}
