package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/adoption"
	"github.com/justinz12xd/practicaweb-resilencia/internal/messaging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var adoptionsReconciled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "reconciler_adoptions_reconciled_total",
	Help: "The total number of PENDING adoptions whose events were re-emitted",
})

// Reconciler closes the partial-completion window: a crash between persisting
// an adoption and publishing its events leaves the record PENDING with no
// events. The sweep re-emits the event pair for stale PENDING records and
// marks them COMPLETED. Downstream consumers tolerate the occasional
// re-emission because they are idempotent.
type Reconciler struct {
	adoptions  adoption.Repository
	publisher  messaging.Publisher
	pendingAge time.Duration
}

func NewReconciler(adoptions adoption.Repository, publisher messaging.Publisher, pendingAge time.Duration) *Reconciler {
	return &Reconciler{
		adoptions:  adoptions,
		publisher:  publisher,
		pendingAge: pendingAge,
	}
}

// Run sweeps on a ticker until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("reconciler started", "interval", interval, "pending_age", r.pendingAge)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				slog.Error("reconciliation sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("reconciliation sweep re-emitted events", "adoptions", n)
			}
		}
	}
}

// Sweep processes one batch of stale PENDING adoptions and returns how many
// were completed.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.pendingAge)

	pending, err := r.adoptions.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list pending adoptions: %w", err)
	}

	completed := 0
	for _, rec := range pending {
		if err := emitAdoptionEvents(ctx, r.publisher, rec); err != nil {
			return completed, err
		}

		if err := r.adoptions.UpdateStatus(ctx, rec.ID, adoption.StatusCompleted); err != nil {
			return completed, fmt.Errorf("complete reconciled adoption %s: %w", rec.ID, err)
		}

		adoptionsReconciled.Inc()
		completed++
	}

	return completed, nil
}
