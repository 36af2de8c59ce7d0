package adoption

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Adoption is the workflow record persisted by the orchestrator. Immutable
// after creation except for Status transitions.
type Adoption struct {
	ID           string    `json:"id"`
	AnimalID     string    `json:"animal_id"`
	AdopterName  string    `json:"adopter_name"`
	AdopterEmail string    `json:"adopter_email"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, a *Adoption) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	// ListPendingBefore returns adoptions still PENDING that were created
	// before cutoff, used by the reconciliation sweep.
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*Adoption, error)
}
