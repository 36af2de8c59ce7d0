package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/event"
	"github.com/justinz12xd/practicaweb-resilencia/internal/idempotency"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	malformedEnvelopes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_malformed_envelopes_total",
		Help: "The total number of messages dropped because the envelope could not be decoded",
	})
	unknownEventTypes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_unknown_event_types_total",
		Help: "The total number of messages dropped because no handler is registered for their type",
	})
	handlerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_handler_failures_total",
		Help: "The total number of handler invocations that returned an error",
	})
)

// Handler processes one decoded message envelope.
type Handler func(ctx context.Context, msg *event.Message) error

// Dispatcher routes messages to handlers through an explicit dispatch table
// built at startup, keyed by event_type.
type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(eventType string, h Handler) {
	d.handlers[eventType] = h
}

// Dispatch decodes a raw envelope and runs the handler registered for its
// type. The returned ack flag tells the consumer whether to commit the
// message to the broker.
//
// Malformed envelopes, missing IDs and unknown types are validation errors:
// logged, counted, and acknowledged so they are never redelivered. A handler
// error is also acknowledged — retry for a given message type lives inside
// its handler — with one exception: when the idempotency store was
// unreachable no claim was committed, so the message is left unacked for the
// broker to redeliver.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) (ack bool, err error) {
	msg := &event.Message{}
	if err := json.Unmarshal(raw, msg); err != nil {
		malformedEnvelopes.Inc()
		slog.Error("failed to unmarshal event envelope", "error", err)
		return true, nil
	}

	if msg.ID == "" {
		malformedEnvelopes.Inc()
		slog.Error("message envelope missing message_id", "event_type", msg.Type)
		return true, nil
	}

	handler, ok := d.handlers[msg.Type]
	if !ok {
		unknownEventTypes.Inc()
		slog.Warn("no handler for event type", "event_type", msg.Type, "message_id", msg.ID)
		return true, nil
	}

	if err := handler(ctx, msg); err != nil {
		handlerFailures.Inc()
		if errors.Is(err, idempotency.ErrStoreUnavailable) {
			return false, err
		}
		return true, err
	}

	return true, nil
}
