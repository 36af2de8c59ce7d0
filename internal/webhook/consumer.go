package webhook

import (
	"context"

	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/event"
	"github.com/justinz12xd/practicaweb-resilencia/internal/idempotency"
)

// Consumer glues the idempotency guard to the delivery engine. Delivery is
// not naturally idempotent (the receiver would see the same notification
// twice), so duplicate webhook.publish deliveries are suppressed by the
// guard before any attempt is made.
type Consumer struct {
	guard  *idempotency.Guard
	engine *Engine
}

func NewConsumer(guard *idempotency.Guard, engine *Engine) *Consumer {
	return &Consumer{guard: guard, engine: engine}
}

func (c *Consumer) HandleWebhookPublish(ctx context.Context, msg *event.Message) error {
	return c.guard.Run(ctx, msg.ID, func(ctx context.Context) error {
		_, err := c.engine.PublishEvent(ctx, msg)
		return err
	})
}
