package animal

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("animal not found")

// Animal is the availability projection owned by the animal service.
type Animal struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Species   string `json:"species"`
	Available bool   `json:"available"`
}

// Store reads and updates the availability projection. MarkUnavailable is a
// one-way flip: it reports false when the animal was already unavailable, so
// re-application of the same event is a no-op rather than a fault.
type Store interface {
	GetByID(ctx context.Context, id string) (*Animal, error)
	MarkUnavailable(ctx context.Context, id string) (bool, error)
}
