package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/adoption"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AdoptionRepository struct {
	pool *pgxpool.Pool
}

func NewAdoptionRepository(pool *pgxpool.Pool) *AdoptionRepository {
	return &AdoptionRepository{pool: pool}
}

func (r *AdoptionRepository) Create(ctx context.Context, a *adoption.Adoption) error {
	const sql = `
		INSERT INTO adoptions (id, animal_id, adopter_name, adopter_email, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, sql,
		a.ID, a.AnimalID, a.AdopterName, a.AdopterEmail, string(a.Status), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert adoption: %w", err)
	}

	return nil
}

func (r *AdoptionRepository) UpdateStatus(ctx context.Context, id string, status adoption.Status) error {
	const sql = `
		UPDATE adoptions
		SET status = $2
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, sql, id, string(status))
	if err != nil {
		return fmt.Errorf("update adoption status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("adoption not found")
	}

	return nil
}

func (r *AdoptionRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*adoption.Adoption, error) {
	const sql = `
		SELECT id, animal_id, adopter_name, adopter_email, status, created_at
		FROM adoptions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, sql, string(adoption.StatusPending), cutoff)
	if err != nil {
		return nil, fmt.Errorf("query pending adoptions: %w", err)
	}
	defer rows.Close()

	var out []*adoption.Adoption
	for rows.Next() {
		a := &adoption.Adoption{}
		var status string
		if err := rows.Scan(&a.ID, &a.AnimalID, &a.AdopterName, &a.AdopterEmail, &status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan adoption: %w", err)
		}
		a.Status = adoption.Status(status)
		out = append(out, a)
	}

	return out, nil
}
