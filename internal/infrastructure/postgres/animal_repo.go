package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/animal"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnimalRepository reads and updates the availability projection owned by the
// animal service.
type AnimalRepository struct {
	pool *pgxpool.Pool
}

func NewAnimalRepository(pool *pgxpool.Pool) *AnimalRepository {
	return &AnimalRepository{pool: pool}
}

func (r *AnimalRepository) GetByID(ctx context.Context, id string) (*animal.Animal, error) {
	const sql = `
		SELECT id, name, species, available
		FROM animals
		WHERE id = $1
	`

	a := &animal.Animal{}
	err := r.pool.QueryRow(ctx, sql, id).Scan(&a.ID, &a.Name, &a.Species, &a.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, animal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get animal by id: %w", err)
	}

	return a, nil
}

// MarkUnavailable flips available to false and reports whether this call did
// the flip. The WHERE guard keeps the flag one-way even when two consumers
// race on the same animal.
func (r *AnimalRepository) MarkUnavailable(ctx context.Context, id string) (bool, error) {
	const sql = `
		UPDATE animals
		SET available = FALSE
		WHERE id = $1 AND available = TRUE
	`

	tag, err := r.pool.Exec(ctx, sql, id)
	if err != nil {
		return false, fmt.Errorf("mark animal unavailable: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
