package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	repo "github.com/aliskhannn/ielts-mock-engine/internal/repository"
)

// Registry is the cross-module exclusivity lock. Every method runs inside the
// caller's unit of work so the lock changes commit together with the attempt.
type Registry struct {
	logger *zap.Logger
}

// NewRegistry creates a new Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{logger: logger}
}

// AcquireRequest describes the claim to create.
type AcquireRequest struct {
	SessionID        string
	UserID           string
	Module           entities.Module
	TestID           string
	AttemptID        string
	TimeLimitSeconds int
}

// Acquire creates the learner's active claim. A claim left active past its
// deadline is expired first; a live one yields a ConflictError naming it.
func (r *Registry) Acquire(ctx context.Context, tx repo.Tx, req AcquireRequest, now time.Time) (*entities.GlobalSession, error) {
	stale, err := tx.Sessions().ExpireDue(ctx, req.UserID, now, 1)
	if err != nil {
		return nil, fmt.Errorf("expire stale session: %w", err)
	}
	for _, s := range stale {
		if _, err := tx.Attempts().Expire(ctx, s.ModuleAttemptID, now); err != nil {
			return nil, fmt.Errorf("expire stale attempt: %w", err)
		}
		r.logger.Debug("stale session expired on acquire",
			zap.String("user_id", s.UserID),
			zap.String("attempt_id", s.ModuleAttemptID),
		)
	}

	s := entities.NewGlobalSession(req.SessionID, req.UserID, req.Module, req.TestID, req.AttemptID, req.TimeLimitSeconds, now)
	err = tx.Sessions().Insert(ctx, s)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, repo.ErrConflict) {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	conflict := &ConflictError{Err: ErrSessionConflict, Reason: "active session exists"}
	active, err := tx.Sessions().GetActive(ctx, req.UserID)
	if err == nil {
		expiresAt := active.ExpiresAt
		conflict.Module = active.Module
		conflict.TestID = active.ModuleTestID
		conflict.AttemptID = active.ModuleAttemptID
		conflict.ExpiresAt = &expiresAt
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("get active session: %w", err)
	}

	return nil, conflict
}

// MarkInProgress records that the learner has begun the attempt.
func (r *Registry) MarkInProgress(ctx context.Context, tx repo.Tx, userID, attemptID string, now time.Time) error {
	return r.transition(ctx, tx, userID, attemptID, entities.StatusInProgress, now)
}

// Complete releases the claim after a successful submission.
func (r *Registry) Complete(ctx context.Context, tx repo.Tx, userID, attemptID string, now time.Time) error {
	return r.transition(ctx, tx, userID, attemptID, entities.StatusCompleted, now)
}

// Abandon releases the claim without scoring.
func (r *Registry) Abandon(ctx context.Context, tx repo.Tx, userID, attemptID string, now time.Time) error {
	return r.transition(ctx, tx, userID, attemptID, entities.StatusExpired, now)
}

// transition is a no-op when the claim is already inactive. Closed claims are never reopened.
func (r *Registry) transition(ctx context.Context, tx repo.Tx, userID, attemptID string, to entities.SessionStatus, now time.Time) error {
	changed, err := tx.Sessions().Transition(ctx, userID, attemptID, to, now)
	if err != nil {
		return fmt.Errorf("transition session to %s: %w", to, err)
	}
	if !changed {
		r.logger.Debug("session already inactive",
			zap.String("user_id", userID),
			zap.String("attempt_id", attemptID),
			zap.String("status", string(to)),
		)
	}
	return nil
}

// ActiveSessionFor returns the learner's open claim with time-dependent fields
// evaluated at now, or nil. A claim past its deadline is reported with IsExpired set.
func (r *Registry) ActiveSessionFor(ctx context.Context, tx repo.Tx, userID string, now time.Time) (*entities.GlobalSessionSummary, error) {
	s, err := tx.Sessions().GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}
	if s.State(now) == entities.StateTerminal {
		return nil, nil
	}
	return s.Summary(now), nil
}

// SweepExpired closes up to limit claims past their deadline together with their attempts.
func (r *Registry) SweepExpired(ctx context.Context, tx repo.Tx, now time.Time, limit int) (int, error) {
	expired, err := tx.Sessions().ExpireDue(ctx, "", now, limit)
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	for _, s := range expired {
		if _, err := tx.Attempts().Expire(ctx, s.ModuleAttemptID, now); err != nil {
			return 0, fmt.Errorf("expire attempt %s: %w", s.ModuleAttemptID, err)
		}
	}
	return len(expired), nil
}
