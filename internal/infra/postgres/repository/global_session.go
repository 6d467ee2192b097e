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

const globalSessionColumns = `
	id, user_id, module, module_test_id, module_attempt_id, status,
	started_at, last_activity_at, expires_at, time_limit_seconds, is_active
`

// GlobalSessionRepository stores cross-module exclusivity claims.
type GlobalSessionRepository struct {
	db postgres.DBTX
}

// NewGlobalSessionRepository creates a new GlobalSessionRepository.
func NewGlobalSessionRepository(db postgres.DBTX) *GlobalSessionRepository {
	return &GlobalSessionRepository{db: db}
}

// Insert creates an active claim. The partial unique index on (user_id) WHERE is_active
// makes the check and the insert a single atomic statement.
func (r *GlobalSessionRepository) Insert(ctx context.Context, s *entities.GlobalSession) error {
	query := `
		INSERT INTO global_sessions (` + globalSessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) WHERE is_active DO NOTHING
	`

	tag, err := r.db.Exec(
		ctx,
		query,
		s.ID,
		s.UserID,
		string(s.Module),
		s.ModuleTestID,
		s.ModuleAttemptID,
		string(s.Status),
		s.StartedAt,
		s.LastActivityAt,
		s.ExpiresAt,
		s.TimeLimitSeconds,
		s.IsActive,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return repo.ErrConflict
		}
		return fmt.Errorf("insert global session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrConflict
	}

	return nil
}

// GetActive returns the active claim of a user.
func (r *GlobalSessionRepository) GetActive(ctx context.Context, userID string) (*entities.GlobalSession, error) {
	query := `SELECT ` + globalSessionColumns + ` FROM global_sessions WHERE user_id = $1 AND is_active`

	s, err := scanGlobalSession(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get active global session: %w", err)
	}

	return s, nil
}

// Transition changes the status of an active claim. Terminal statuses clear is_active.
func (r *GlobalSessionRepository) Transition(
	ctx context.Context, userID, attemptID string, to entities.SessionStatus, now time.Time,
) (bool, error) {
	query := `
		UPDATE global_sessions
		SET status = $1,
		    is_active = $2,
		    last_activity_at = $3
		WHERE user_id = $4 AND module_attempt_id = $5 AND is_active
	`

	tag, err := r.db.Exec(ctx, query, string(to), to.IsOpen(), now, userID, attemptID)
	if err != nil {
		return false, fmt.Errorf("transition global session: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Touch records learner activity.
func (r *GlobalSessionRepository) Touch(ctx context.Context, userID, attemptID string, now time.Time) error {
	query := `
		UPDATE global_sessions SET last_activity_at = $1
		WHERE user_id = $2 AND module_attempt_id = $3 AND is_active
	`

	if _, err := r.db.Exec(ctx, query, now, userID, attemptID); err != nil {
		return fmt.Errorf("touch global session: %w", err)
	}

	return nil
}

// ExpireDue deactivates claims whose deadline has passed. Rows locked by other
// transactions are skipped so concurrent sweeps do not block each other.
func (r *GlobalSessionRepository) ExpireDue(
	ctx context.Context, userID string, now time.Time, limit int,
) ([]*entities.GlobalSession, error) {
	query := `
		UPDATE global_sessions
		SET status = 'EXPIRED', is_active = FALSE
		WHERE id IN (
			SELECT id FROM global_sessions
			WHERE is_active AND expires_at <= $1 AND ($2 = '' OR user_id = $2)
			ORDER BY expires_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + globalSessionColumns

	rows, err := r.db.Query(ctx, query, now, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("expire global sessions: %w", err)
	}
	defer rows.Close()

	var out []*entities.GlobalSession
	for rows.Next() {
		s, err := scanGlobalSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan global session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate global sessions: %w", err)
	}

	return out, nil
}

func scanGlobalSession(row pgx.Row) (*entities.GlobalSession, error) {
	var s entities.GlobalSession
	var module, status string
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&module,
		&s.ModuleTestID,
		&s.ModuleAttemptID,
		&status,
		&s.StartedAt,
		&s.LastActivityAt,
		&s.ExpiresAt,
		&s.TimeLimitSeconds,
		&s.IsActive,
	)
	if err != nil {
		return nil, err
	}
	s.Module = entities.Module(module)
	s.Status = entities.SessionStatus(status)

	return &s, nil
}
