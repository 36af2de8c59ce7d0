package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/animal"
	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/event"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	animalsAdopted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "availability_animals_adopted_total",
		Help: "The total number of animals transitioned to unavailable",
	})
	duplicateTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "availability_duplicate_transitions_total",
		Help: "The total number of adoption.created deliveries for already-unavailable animals",
	})
	animalsNotFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "availability_animals_not_found_total",
		Help: "The total number of adoption.created events referencing unknown animals",
	})
)

// Consumer reacts to adoption.created by flipping the animal's availability.
// It needs no dedup ledger: availability is a monotone one-way flag, so
// re-applying the same event is naturally safe.
type Consumer struct {
	animals animal.Store
}

func NewConsumer(animals animal.Store) *Consumer {
	return &Consumer{animals: animals}
}

func (c *Consumer) HandleAdoptionCreated(ctx context.Context, msg *event.Message) error {
	var payload event.AdoptionCreated
	if err := msg.DecodePayload(&payload); err != nil {
		slog.Error("invalid adoption.created payload", "message_id", msg.ID, "error", err)
		return nil
	}
	if payload.AnimalID == "" {
		slog.Error("adoption.created missing animal_id", "message_id", msg.ID)
		return nil
	}

	a, err := c.animals.GetByID(ctx, payload.AnimalID)
	if errors.Is(err, animal.ErrNotFound) {
		// No retry path: the message is acknowledged regardless of outcome.
		animalsNotFound.Inc()
		slog.Warn("animal not found for adoption.created", "animal_id", payload.AnimalID, "message_id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load animal %s: %w", payload.AnimalID, err)
	}

	if !a.Available {
		duplicateTransitions.Inc()
		slog.Info("animal already adopted, duplicate delivery ignored",
			"animal_id", payload.AnimalID, "message_id", msg.ID)
		return nil
	}

	flipped, err := c.animals.MarkUnavailable(ctx, payload.AnimalID)
	if err != nil {
		return fmt.Errorf("mark animal %s unavailable: %w", payload.AnimalID, err)
	}
	if !flipped {
		// Another worker completed the transition between the read and the
		// update; same outcome as a duplicate delivery.
		duplicateTransitions.Inc()
		slog.Info("animal transition already applied", "animal_id", payload.AnimalID, "message_id", msg.ID)
		return nil
	}

	animalsAdopted.Inc()
	slog.Info("animal marked unavailable", "animal_id", payload.AnimalID, "message_id", msg.ID)
	return nil
}
