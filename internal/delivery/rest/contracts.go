package rest

import (
	"context"
	"encoding/json"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	"github.com/aliskhannn/ielts-mock-engine/internal/service"
)

// SessionService is the per-module test session engine.
type SessionService interface {
	StartTest(ctx context.Context, userID, testID string) (*service.StartedTest, error)
	UpdateProgress(ctx context.Context, userID, attemptID string, u entities.ProgressUpdate) (*entities.AttemptSummary, error)
	SaveAnswer(ctx context.Context, userID, attemptID, questionID, userAnswer string, timeSpent int) error
	Submit(ctx context.Context, userID, attemptID string, in service.SubmitInput) (*entities.Outcome, error)
	Abandon(ctx context.Context, userID, attemptID string) error
	GetStats(ctx context.Context, userID, attemptID string) (*entities.AttemptStats, error)
	GetResult(ctx context.Context, userID, attemptID string) (*entities.TestResult, error)
	AttachFeedback(ctx context.Context, userID, attemptID string, payload json.RawMessage) error
	Analytics(ctx context.Context, userID string) (*entities.PerformanceAnalytics, error)
}

// ActiveSessionService reports the learner's in-flight test across modules.
type ActiveSessionService interface {
	ActiveSession(ctx context.Context, userID string) (*entities.GlobalSessionSummary, error)
}
