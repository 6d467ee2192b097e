package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrConflict   = errors.New("record conflicts with an existing one")
	ErrStaleState = errors.New("record was modified by another process")
)

// GlobalSessionRepository stores exclusivity claims.
// At most one active row per user is enforced by the storage layer.
type GlobalSessionRepository interface {
	// Insert stores a new active claim or fails with ErrConflict if the user already holds one.
	Insert(ctx context.Context, s *entities.GlobalSession) error
	// GetActive returns the user's active claim (possibly past its deadline) or ErrNotFound.
	GetActive(ctx context.Context, userID string) (*entities.GlobalSession, error)
	// Transition changes the status of an active claim; terminal statuses deactivate it.
	// It reports false when the claim is already inactive.
	Transition(ctx context.Context, userID, attemptID string, to entities.SessionStatus, now time.Time) (bool, error)
	// Touch records learner activity on an active claim.
	Touch(ctx context.Context, userID, attemptID string, now time.Time) error
	// ExpireDue deactivates up to limit active claims whose deadline is not after now.
	// An empty userID matches every user.
	ExpireDue(ctx context.Context, userID string, now time.Time, limit int) ([]*entities.GlobalSession, error)
}

// AttemptRepository stores module attempts.
type AttemptRepository interface {
	Create(ctx context.Context, a *entities.ModuleAttempt) error
	Get(ctx context.Context, id string) (*entities.ModuleAttempt, error)
	// GetForUpdate reads the attempt and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*entities.ModuleAttempt, error)
	// Update writes the attempt only if its stored status still equals expected and
	// its version is unchanged; otherwise it returns ErrStaleState.
	Update(ctx context.Context, a *entities.ModuleAttempt, expected entities.SessionStatus) error
	// Expire moves an open attempt to EXPIRED and reports whether it did.
	Expire(ctx context.Context, id string, now time.Time) (bool, error)
	// CountFinished counts SUBMITTED or COMPLETED attempts of a user in a module.
	CountFinished(ctx context.Context, userID string, module entities.Module) (int, error)
}

// AnswerRepository stores learner answers.
type AnswerRepository interface {
	// Upsert overwrites the answer text and adds TimeSpent to the stored total.
	Upsert(ctx context.Context, a *entities.Answer) error
	ListByAttempt(ctx context.Context, attemptID string) ([]*entities.Answer, error)
	// SaveEvaluations writes IsCorrect and PointsEarned of evaluated answers.
	SaveEvaluations(ctx context.Context, answers []*entities.Answer) error
	// CountAnswered counts non-blank answers of an attempt.
	CountAnswered(ctx context.Context, attemptID string) (int, error)
}

// TestRepository reads immutable test content.
type TestRepository interface {
	Get(ctx context.Context, id string) (*entities.Test, error)
}

// ResultRepository stores scoring snapshots. Exactly one per attempt.
type ResultRepository interface {
	Create(ctx context.Context, r *entities.TestResult) error
	GetByAttempt(ctx context.Context, attemptID string) (*entities.TestResult, error)
	SetFeedback(ctx context.Context, attemptID string, payload json.RawMessage) error
}

// AnalyticsRepository stores rolling per-user aggregates.
type AnalyticsRepository interface {
	Get(ctx context.Context, userID string, module entities.Module) (*entities.PerformanceAnalytics, error)
	// GetForUpdate reads and locks the row so concurrent updates for one user serialize.
	GetForUpdate(ctx context.Context, userID string, module entities.Module) (*entities.PerformanceAnalytics, error)
	Upsert(ctx context.Context, a *entities.PerformanceAnalytics) error
}

// UserRepository reads learner subscription data.
type UserRepository interface {
	Get(ctx context.Context, id string) (*entities.User, error)
}

// Tx exposes every repository bound to one unit of work.
type Tx interface {
	Sessions() GlobalSessionRepository
	Attempts() AttemptRepository
	Answers() AnswerRepository
	Tests() TestRepository
	Results() ResultRepository
	Analytics() AnalyticsRepository
	Users() UserRepository
}

// Transactor runs fn inside a unit of work that commits only if fn returns nil.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
