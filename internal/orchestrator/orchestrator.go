package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/adoption"
	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/animal"
	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/event"
	"github.com/justinz12xd/practicaweb-resilencia/internal/idempotency"
	"github.com/justinz12xd/practicaweb-resilencia/internal/messaging"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	adoptionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_adoptions_completed_total",
		Help: "The total number of adoption requests that reached COMPLETED",
	})
	adoptionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_adoptions_rejected_total",
		Help: "The total number of adoption requests rejected, by reason",
	}, []string{"reason"})
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Orchestrator drives an adoption request through
// RECEIVED → VALID|REJECTED → PENDING → COMPLETED.
// REJECTED is terminal: no persistence, no downstream events.
type Orchestrator struct {
	guard     *idempotency.Guard
	animals   animal.Store
	adoptions adoption.Repository
	publisher messaging.Publisher
}

func New(guard *idempotency.Guard, animals animal.Store, adoptions adoption.Repository, publisher messaging.Publisher) *Orchestrator {
	return &Orchestrator{
		guard:     guard,
		animals:   animals,
		adoptions: adoptions,
		publisher: publisher,
	}
}

// HandleAdoptionRequest processes one adoption.request message. The guard
// guarantees the side effects below run at most once per message_id, however
// many times the broker delivers it.
func (o *Orchestrator) HandleAdoptionRequest(ctx context.Context, msg *event.Message) error {
	return o.guard.Run(ctx, msg.ID, func(ctx context.Context) error {
		var req event.AdoptionRequested
		if err := msg.DecodePayload(&req); err != nil {
			o.reject(msg.ID, "malformed_payload", err.Error())
			return nil
		}

		if reason := validate(req); reason != "" {
			o.reject(msg.ID, "invalid_request", reason)
			return nil
		}

		a, err := o.animals.GetByID(ctx, req.AnimalID)
		if errors.Is(err, animal.ErrNotFound) {
			o.reject(msg.ID, "animal_not_found", fmt.Sprintf("animal %s not found", req.AnimalID))
			return nil
		}
		if err != nil {
			return fmt.Errorf("check availability of %s: %w", req.AnimalID, err)
		}
		if !a.Available {
			o.reject(msg.ID, "already_adopted", fmt.Sprintf("animal %s is already adopted", req.AnimalID))
			return nil
		}

		rec := &adoption.Adoption{
			ID:           uuid.New().String(),
			AnimalID:     req.AnimalID,
			AdopterName:  req.AdopterName,
			AdopterEmail: req.AdopterEmail,
			Status:       adoption.StatusPending,
			CreatedAt:    time.Now().UTC(),
		}

		if err := o.adoptions.Create(ctx, rec); err != nil {
			return fmt.Errorf("persist adoption: %w", err)
		}

		// A crash between here and UpdateStatus leaves the record PENDING
		// with no events published; the reconciler sweep re-emits those.
		if err := emitAdoptionEvents(ctx, o.publisher, rec); err != nil {
			return err
		}

		if err := o.adoptions.UpdateStatus(ctx, rec.ID, adoption.StatusCompleted); err != nil {
			return fmt.Errorf("complete adoption %s: %w", rec.ID, err)
		}

		adoptionsCompleted.Inc()
		slog.Info("adoption completed",
			"adoption_id", rec.ID, "animal_id", rec.AnimalID, "message_id", msg.ID)
		return nil
	})
}

func (o *Orchestrator) reject(messageID, code, reason string) {
	adoptionsRejected.WithLabelValues(code).Inc()
	slog.Warn("adoption request rejected", "message_id", messageID, "reason", reason)
}

func validate(req event.AdoptionRequested) string {
	switch {
	case strings.TrimSpace(req.AnimalID) == "":
		return "animal_id is required"
	case strings.TrimSpace(req.AdopterName) == "":
		return "adopter_name is required"
	case strings.TrimSpace(req.AdopterEmail) == "":
		return "adopter_email is required"
	case !emailPattern.MatchString(req.AdopterEmail):
		return fmt.Sprintf("adopter_email %q is not a valid address", req.AdopterEmail)
	}
	return ""
}

// emitAdoptionEvents publishes the adoption.created / webhook.publish pair
// for a persisted adoption record.
func emitAdoptionEvents(ctx context.Context, pub messaging.Publisher, rec *adoption.Adoption) error {
	created := event.AdoptionCreated{AnimalID: rec.AnimalID}
	if err := pub.Emit(ctx, event.TypeAdoptionCreated, created); err != nil {
		return fmt.Errorf("emit adoption.created for %s: %w", rec.ID, err)
	}

	summary := event.AdoptionSummary{
		AdoptionID:   rec.ID,
		AnimalID:     rec.AnimalID,
		AdopterName:  rec.AdopterName,
		AdopterEmail: rec.AdopterEmail,
		Status:       string(adoption.StatusCompleted),
		CreatedAt:    rec.CreatedAt,
	}
	if err := pub.Emit(ctx, event.TypeWebhookPublish, summary); err != nil {
		return fmt.Errorf("emit webhook.publish for %s: %w", rec.ID, err)
	}

	return nil
}
