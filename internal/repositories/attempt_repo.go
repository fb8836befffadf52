package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/chefguard/internal/database"
	"github.com/BradenHooton/chefguard/internal/models"
)

// AttemptRepository handles database operations for the auth_rate_limits attempt log
type AttemptRepository struct {
	db *database.DB
}

// NewAttemptRepository creates a new AttemptRepository
func NewAttemptRepository(db *database.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// RecordAttempt appends one attempt. A zero AttemptedAt lets the database stamp it.
func (r *AttemptRepository) RecordAttempt(ctx context.Context, record *models.AttemptRecord) error {
	query := `
		INSERT INTO auth_rate_limits (identifier, attempt_type, attempted_at)
		VALUES ($1, $2, COALESCE($3, now()))
		RETURNING id, attempted_at
	`

	var attemptedAt *time.Time
	if !record.AttemptedAt.IsZero() {
		attemptedAt = &record.AttemptedAt
	}

	err := r.db.Pool.QueryRow(ctx, query,
		record.Identifier,
		string(record.AttemptType),
		attemptedAt,
	).Scan(&record.ID, &record.AttemptedAt)
	if err != nil {
		return fmt.Errorf("record attempt: %w", database.MapPostgresError(err))
	}

	return nil
}

// CountAttemptsSince returns how many attempts exist for the pair at or after since
func (r *AttemptRepository) CountAttemptsSince(ctx context.Context, identifier string, attemptType models.AttemptType, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM auth_rate_limits
		WHERE identifier = $1 AND attempt_type = $2 AND attempted_at >= $3
	`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, identifier, string(attemptType), since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

// DeleteAttemptsBefore removes attempts older than cutoff and returns the number deleted
func (r *AttemptRepository) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM auth_rate_limits WHERE attempted_at < $1`

	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}
