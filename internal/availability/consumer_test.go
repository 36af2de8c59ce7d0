package availability

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/animal"
	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryAnimalStore struct {
	mu      sync.Mutex
	animals map[string]*animal.Animal
	getErr  error
}

func (s *memoryAnimalStore) GetByID(_ context.Context, id string) (*animal.Animal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	a, ok := s.animals[id]
	if !ok {
		return nil, animal.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memoryAnimalStore) MarkUnavailable(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.animals[id]
	if !ok {
		return false, animal.ErrNotFound
	}
	if !a.Available {
		return false, nil
	}
	a.Available = false
	return true, nil
}

func adoptionCreated(t *testing.T, messageID, animalID string) *event.Message {
	t.Helper()
	payload, err := json.Marshal(event.AdoptionCreated{AnimalID: animalID})
	require.NoError(t, err)
	return &event.Message{ID: messageID, Type: event.TypeAdoptionCreated, Payload: payload}
}

func TestHandleAdoptionCreatedFlipsAvailability(t *testing.T) {
	store := &memoryAnimalStore{animals: map[string]*animal.Animal{
		"animal-1": {ID: "animal-1", Name: "Rocky", Species: "dog", Available: true},
	}}
	c := NewConsumer(store)

	err := c.HandleAdoptionCreated(context.Background(), adoptionCreated(t, "msg-1", "animal-1"))
	require.NoError(t, err)
	assert.False(t, store.animals["animal-1"].Available)
}

func TestHandleAdoptionCreatedRepeatedDeliveriesAreNoOps(t *testing.T) {
	store := &memoryAnimalStore{animals: map[string]*animal.Animal{
		"animal-1": {ID: "animal-1", Name: "Rocky", Species: "dog", Available: true},
	}}
	c := NewConsumer(store)

	for i := 0; i < 3; i++ {
		err := c.HandleAdoptionCreated(context.Background(), adoptionCreated(t, "msg-1", "animal-1"))
		require.NoError(t, err, "re-delivery must never surface an error")
	}

	assert.False(t, store.animals["animal-1"].Available)
}

func TestHandleAdoptionCreatedUnknownAnimalIsHandled(t *testing.T) {
	c := NewConsumer(&memoryAnimalStore{animals: map[string]*animal.Animal{}})

	err := c.HandleAdoptionCreated(context.Background(), adoptionCreated(t, "msg-1", "ghost"))
	assert.NoError(t, err)
}

func TestHandleAdoptionCreatedMalformedPayloadIsHandled(t *testing.T) {
	c := NewConsumer(&memoryAnimalStore{})

	msg := &event.Message{ID: "msg-1", Type: event.TypeAdoptionCreated, Payload: json.RawMessage(`"oops"`)}
	assert.NoError(t, c.HandleAdoptionCreated(context.Background(), msg))
}

func TestHandleAdoptionCreatedLookupFailurePropagates(t *testing.T) {
	store := &memoryAnimalStore{getErr: errors.New("connection reset")}
	c := NewConsumer(store)

	err := c.HandleAdoptionCreated(context.Background(), adoptionCreated(t, "msg-1", "animal-1"))
	assert.Error(t, err)
}
