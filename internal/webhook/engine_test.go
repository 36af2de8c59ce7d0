package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/event"
	"github.com/justinz12xd/practicaweb-resilencia/internal/idempotency"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeadLetterer struct {
	mu     sync.Mutex
	pushed []*event.Message
}

func (f *fakeDeadLetterer) Push(_ context.Context, msg *event.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, msg)
	return nil
}

func (f *fakeDeadLetterer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushed)
}

func testConfig(url string) Config {
	return Config{
		URL:         url,
		Secret:      "test-secret",
		MaxRetries:  6,
		HTTPTimeout: 2 * time.Second,
		BackoffBase: time.Millisecond,
		BackoffCap:  2 * time.Millisecond,
	}
}

func testMessage(t *testing.T) *event.Message {
	t.Helper()
	payload, err := json.Marshal(event.AdoptionSummary{
		AdoptionID: "adoption-1",
		AnimalID:   "animal-1",
		Status:     "COMPLETED",
	})
	require.NoError(t, err)
	return &event.Message{
		ID:         "evt-1",
		Type:       event.TypeWebhookPublish,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

func TestPublishEventDeliversFirstAttempt(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dlq := &fakeDeadLetterer{}
	engine := NewEngine(testConfig(srv.URL), dlq)

	outcome, err := engine.PublishEvent(context.Background(), testMessage(t))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, outcome)
	assert.Equal(t, 1, attempts)
	assert.Zero(t, dlq.count())
}

func TestPublishEventExhaustsRetriesThenDeadLetters(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dlq := &fakeDeadLetterer{}
	cfg := testConfig(srv.URL)
	engine := NewEngine(cfg, dlq)

	msg := testMessage(t)
	outcome, err := engine.PublishEvent(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeadLettered, outcome)
	assert.Equal(t, cfg.MaxRetries, attempts)
	require.Equal(t, 1, dlq.count())
	assert.Equal(t, msg.ID, dlq.pushed[0].ID)
}

func TestPublishEventRecoversMidRetry(t *testing.T) {
	// Receiver fails the first 3 attempts, then succeeds.
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dlq := &fakeDeadLetterer{}
	engine := NewEngine(testConfig(srv.URL), dlq)

	outcome, err := engine.PublishEvent(context.Background(), testMessage(t))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, outcome)
	assert.Equal(t, 4, attempts)
	assert.Zero(t, dlq.count())
}

func TestPublishEventTreatsNon2xxAsFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dlq := &fakeDeadLetterer{}
	engine := NewEngine(testConfig(srv.URL), dlq)

	outcome, err := engine.PublishEvent(context.Background(), testMessage(t))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeadLettered, outcome)
	assert.Equal(t, 6, attempts)
}

func TestSignatureMatchesDeliveredBody(t *testing.T) {
	var gotBody []byte
	var gotSignature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = body
		gotSignature = r.Header.Get("X-Webhook-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	engine := NewEngine(cfg, &fakeDeadLetterer{})

	_, err := engine.PublishEvent(context.Background(), testMessage(t))
	require.NoError(t, err)
	require.NotEmpty(t, gotSignature)

	// The receiver recomputes the HMAC over the exact delivered bytes.
	mac := hmac.New(sha256.New, []byte(cfg.Secret))
	mac.Write(gotBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSignature)

	// Altering one byte of the body invalidates the signature.
	tampered := append([]byte{}, gotBody...)
	tampered[0] ^= 0xFF
	mac = hmac.New(sha256.New, []byte(cfg.Secret))
	mac.Write(tampered)
	assert.NotEqual(t, hex.EncodeToString(mac.Sum(nil)), gotSignature)
}

func TestConsumerSuppressesDuplicatePublishes(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	engine := NewEngine(testConfig(srv.URL), &fakeDeadLetterer{})
	consumer := NewConsumer(idempotency.NewGuard(newMemoryStore()), engine)

	msg := testMessage(t)
	require.NoError(t, consumer.HandleWebhookPublish(context.Background(), msg))
	require.NoError(t, consumer.HandleWebhookPublish(context.Background(), msg))

	assert.Equal(t, 1, attempts, "redelivered webhook.publish must not reach the receiver twice")
}

// memoryStore is a test double for the idempotency ledger.
type memoryStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{seen: make(map[string]bool)}
}

func (s *memoryStore) TryRegister(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[messageID] {
		return false, nil
	}
	s.seen[messageID] = true
	return true, nil
}
