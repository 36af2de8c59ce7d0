package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var duplicatesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "idempotency_duplicates_suppressed_total",
	Help: "The total number of duplicate deliveries suppressed by the guard",
})

// ErrStoreUnavailable reports that the ledger could not answer a TryRegister
// call. The handler must not run in that case: no claim was committed, so
// broker redelivery will retry the whole decision safely later.
var ErrStoreUnavailable = errors.New("idempotency store unavailable")

// Store is a durable ledger of processed message IDs. TryRegister must be a
// single atomic insert-if-absent against the store: it returns true to
// exactly one caller per distinct ID, even across processes. A read-then-write
// implementation is incorrect under concurrent competing consumers.
type Store interface {
	TryRegister(ctx context.Context, messageID string) (bool, error)
}

type Guard struct {
	store Store
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Run executes handler at most once per messageID. A duplicate delivery is
// logged and swallowed without error. A handler failure propagates to the
// caller, but the claim is never rolled back: a registered ID stays claimed
// so a failing message cannot cause a reprocessing storm.
func (g *Guard) Run(ctx context.Context, messageID string, handler func(ctx context.Context) error) error {
	isNew, err := g.store.TryRegister(ctx, messageID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !isNew {
		duplicatesSuppressed.Inc()
		slog.Info("duplicate message suppressed", "message_id", messageID)
		return nil
	}

	return handler(ctx)
}
