package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
)

var (
	ErrTestNotFound     = errors.New("test not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrResultNotFound   = errors.New("result not found")
	ErrSessionConflict  = errors.New("another test is already in progress")
	ErrQuotaExceeded    = errors.New("attempt quota exceeded")
	ErrNotActive        = errors.New("attempt is not in progress")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	ErrExpired          = errors.New("attempt time limit has passed")
	ErrEvaluation       = errors.New("failed to evaluate attempt")
	ErrInvalidInput     = errors.New("invalid input")
)

// ConflictError explains why a test cannot be started. It wraps
// ErrSessionConflict or ErrQuotaExceeded.
type ConflictError struct {
	Err    error
	Reason string

	// Blocking session, set for ErrSessionConflict.
	Module    entities.Module
	TestID    string
	AttemptID string
	ExpiresAt *time.Time

	// Earliest time a new attempt is allowed, set for cooldown denials.
	RetryAt *time.Time
}

func (e *ConflictError) Error() string {
	switch {
	case e.AttemptID != "":
		return fmt.Sprintf("%v: finish or abandon %s attempt %s first", e.Err, e.Module, e.AttemptID)
	case e.RetryAt != nil:
		return fmt.Sprintf("%v: %s, retry at %s", e.Err, e.Reason, e.RetryAt.Format(time.RFC3339))
	case e.Reason != "":
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	default:
		return e.Err.Error()
	}
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
