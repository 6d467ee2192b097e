package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	"github.com/aliskhannn/ielts-mock-engine/internal/infra/postgres"
	repo "github.com/aliskhannn/ielts-mock-engine/internal/repository"
)

const attemptColumns = `
	id, user_id, test_id, module, status, progress, started_at, expires_at,
	completed_at, submitted_at, time_spent, score, band_score, percentage, version
`

// AttemptRepository provides access to module attempts in the database.
type AttemptRepository struct {
	db postgres.DBTX
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(db postgres.DBTX) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create inserts a new attempt.
func (r *AttemptRepository) Create(ctx context.Context, a *entities.ModuleAttempt) error {
	query := `
		INSERT INTO module_attempts (
			id, user_id, test_id, module, status, progress,
			started_at, expires_at, time_spent, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		a.ID,
		a.UserID,
		a.TestID,
		string(a.Module),
		string(a.Status),
		a.Progress,
		a.StartedAt,
		a.ExpiresAt,
		a.TimeSpent,
		a.Version,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return repo.ErrConflict
		}
		return fmt.Errorf("create attempt: %w", err)
	}

	return nil
}

// Get retrieves an attempt by ID.
func (r *AttemptRepository) Get(ctx context.Context, id string) (*entities.ModuleAttempt, error) {
	return r.get(ctx, `SELECT `+attemptColumns+` FROM module_attempts WHERE id = $1`, id)
}

// GetForUpdate retrieves an attempt with a row-level lock held until the transaction ends.
func (r *AttemptRepository) GetForUpdate(ctx context.Context, id string) (*entities.ModuleAttempt, error) {
	return r.get(ctx, `SELECT `+attemptColumns+` FROM module_attempts WHERE id = $1 FOR UPDATE`, id)
}

func (r *AttemptRepository) get(ctx context.Context, query, id string) (*entities.ModuleAttempt, error) {
	var a entities.ModuleAttempt
	var module, status string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.UserID,
		&a.TestID,
		&module,
		&status,
		&a.Progress,
		&a.StartedAt,
		&a.ExpiresAt,
		&a.CompletedAt,
		&a.SubmittedAt,
		&a.TimeSpent,
		&a.Score,
		&a.BandScore,
		&a.Percentage,
		&a.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	a.Module = entities.Module(module)
	a.Status = entities.SessionStatus(status)

	return &a, nil
}

// Update writes the attempt using optimistic locking on both status and version.
func (r *AttemptRepository) Update(ctx context.Context, a *entities.ModuleAttempt, expected entities.SessionStatus) error {
	query := `
		UPDATE module_attempts
		SET status = $1,
		    progress = $2,
		    completed_at = $3,
		    submitted_at = $4,
		    time_spent = $5,
		    score = $6,
		    band_score = $7,
		    percentage = $8,
		    version = version + 1
		WHERE id = $9 AND status = $10 AND version = $11
	`

	tag, err := r.db.Exec(
		ctx,
		query,
		string(a.Status),
		a.Progress,
		a.CompletedAt,
		a.SubmittedAt,
		a.TimeSpent,
		a.Score,
		a.BandScore,
		a.Percentage,
		a.ID,
		string(expected),
		a.Version,
	)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrStaleState
	}

	a.Version++

	return nil
}

// Expire moves an open attempt to EXPIRED.
func (r *AttemptRepository) Expire(ctx context.Context, id string, _ time.Time) (bool, error) {
	query := `
		UPDATE module_attempts
		SET status = 'EXPIRED', version = version + 1
		WHERE id = $1 AND status IN ('NOT_STARTED', 'IN_PROGRESS')
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("expire attempt: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// CountFinished counts submitted or completed attempts of a user in a module.
func (r *AttemptRepository) CountFinished(ctx context.Context, userID string, module entities.Module) (int, error) {
	query := `
		SELECT COUNT(*) FROM module_attempts
		WHERE user_id = $1 AND module = $2 AND status IN ('SUBMITTED', 'COMPLETED')
	`

	var n int
	if err := r.db.QueryRow(ctx, query, userID, string(module)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count finished attempts: %w", err)
	}

	return n, nil
}
