package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessedMessageRepository is the durable idempotency ledger. The primary
// key on message_id makes TryRegister a single atomic insert-if-absent, so
// concurrent competing consumers cannot both claim the same ID.
type ProcessedMessageRepository struct {
	pool *pgxpool.Pool
}

func NewProcessedMessageRepository(pool *pgxpool.Pool) *ProcessedMessageRepository {
	return &ProcessedMessageRepository{pool: pool}
}

// TryRegister returns true if the message ID was claimed (is new), false if
// it was already registered.
func (r *ProcessedMessageRepository) TryRegister(ctx context.Context, messageID string) (bool, error) {
	const query = `
		INSERT INTO processed_messages (message_id, processed_at)
		VALUES ($1, NOW())
		ON CONFLICT (message_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, messageID)
	if err != nil {
		return false, fmt.Errorf("insert processed message: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
