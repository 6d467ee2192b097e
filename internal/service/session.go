package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	repo "github.com/aliskhannn/ielts-mock-engine/internal/repository"
	"github.com/aliskhannn/ielts-mock-engine/internal/scoring"
)

// StartedTest is returned by StartTest.
type StartedTest struct {
	AttemptID        string                 `json:"attemptId"`
	SessionID        string                 `json:"sessionId"`
	Module           entities.Module        `json:"module"`
	Status           entities.SessionStatus `json:"status"`
	Test             entities.Test          `json:"test"` // accepted answers stripped
	TimeLimitSeconds int                    `json:"timeLimitSeconds"`
	Deadline         time.Time              `json:"deadline"`
}

// SubmitInput carries the final answers of an attempt.
type SubmitInput struct {
	Answers   []entities.SubmittedAnswer `json:"answers"`
	TimeSpent int                        `json:"timeSpent,omitempty"`
	TaskBands map[int]float64            `json:"taskBands,omitempty"` // writing only, from the external assessor
	Feedback  json.RawMessage            `json:"feedback,omitempty"`  // stored unread
}

// SessionManager owns the attempt state machine of one module.
type SessionManager struct {
	module     entities.Module
	store      repo.Transactor
	quota      *QuotaPolicy
	registry   *Registry
	analytics  *AnalyticsUpdater
	evaluator  AnswerEvaluator
	aggregator ScoreAggregator
	logger     *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewSessionManager creates a SessionManager for the given module.
func NewSessionManager(
	module entities.Module,
	store repo.Transactor,
	quota *QuotaPolicy,
	registry *Registry,
	analytics *AnalyticsUpdater,
	evaluator AnswerEvaluator,
	aggregator ScoreAggregator,
	logger *zap.Logger,
) *SessionManager {
	return &SessionManager{
		module:     module,
		store:      store,
		quota:      quota,
		registry:   registry,
		analytics:  analytics,
		evaluator:  evaluator,
		aggregator: aggregator,
		logger:     logger.With(zap.String("module", string(module))),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// SetClock replaces the time source. Must be called before serving requests.
func (m *SessionManager) SetClock(now func() time.Time) {
	m.now = now
}

// SetIDGenerator replaces the id source. Must be called before serving requests.
func (m *SessionManager) SetIDGenerator(newID func() string) {
	m.newID = newID
}

// Module returns the module this manager serves.
func (m *SessionManager) Module() entities.Module {
	return m.module
}

// StartTest runs quota check, exclusivity acquire and attempt creation as one unit,
// so a denied or failed start never leaves a lock behind.
func (m *SessionManager) StartTest(ctx context.Context, userID, testID string) (*StartedTest, error) {
	now := m.now()
	var started *StartedTest

	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		decision, err := m.quota.CanStart(ctx, tx, userID, m.module, now)
		if err != nil {
			return err
		}
		if err := decision.Err(); err != nil {
			return err
		}

		test, err := tx.Tests().Get(ctx, testID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrTestNotFound
			}
			return fmt.Errorf("get test: %w", err)
		}
		if test.Module != m.module || !test.IsActive {
			return ErrTestNotFound
		}

		attempt := entities.NewModuleAttempt(m.newID(), userID, test.ID, m.module, test.TimeLimitSeconds, now)
		session, err := m.registry.Acquire(ctx, tx, AcquireRequest{
			SessionID:        m.newID(),
			UserID:           userID,
			Module:           m.module,
			TestID:           test.ID,
			AttemptID:        attempt.ID,
			TimeLimitSeconds: test.TimeLimitSeconds,
		}, now)
		if err != nil {
			return err
		}

		if err := tx.Attempts().Create(ctx, attempt); err != nil {
			return fmt.Errorf("create attempt: %w", err)
		}
		if err := attempt.Transition(entities.StatusInProgress, now); err != nil {
			return err
		}
		if err := tx.Attempts().Update(ctx, attempt, entities.StatusNotStarted); err != nil {
			return fmt.Errorf("start attempt: %w", err)
		}
		if err := m.registry.MarkInProgress(ctx, tx, userID, attempt.ID, now); err != nil {
			return err
		}

		started = &StartedTest{
			AttemptID:        attempt.ID,
			SessionID:        session.ID,
			Module:           m.module,
			Status:           attempt.Status,
			Test:             test.Public(),
			TimeLimitSeconds: test.TimeLimitSeconds,
			Deadline:         attempt.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		m.logFailure("start test failed", err, zap.String("user_id", userID), zap.String("test_id", testID))
		return nil, err
	}

	m.logger.Info("test started",
		zap.String("user_id", userID),
		zap.String("test_id", testID),
		zap.String("attempt_id", started.AttemptID),
		zap.Time("deadline", started.Deadline),
	)

	return started, nil
}

// UpdateProgress merges client progress fields into an in-progress attempt.
func (m *SessionManager) UpdateProgress(ctx context.Context, userID, attemptID string, u entities.ProgressUpdate) (*entities.AttemptSummary, error) {
	now := m.now()
	var summary *entities.AttemptSummary

	err := m.withOpenAttempt(ctx, userID, attemptID, now, false, func(ctx context.Context, tx repo.Tx, a *entities.ModuleAttempt) error {
		a.ApplyProgress(u)
		if err := tx.Attempts().Update(ctx, a, entities.StatusInProgress); err != nil {
			if errors.Is(err, repo.ErrStaleState) {
				return ErrNotActive
			}
			return fmt.Errorf("update attempt: %w", err)
		}
		if err := tx.Sessions().Touch(ctx, userID, attemptID, now); err != nil {
			return err
		}
		summary = a.Summary(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// SaveAnswer upserts one answer. Repeated saves overwrite the text and add up time spent.
func (m *SessionManager) SaveAnswer(ctx context.Context, userID, attemptID, questionID, userAnswer string, timeSpent int) error {
	now := m.now()

	return m.withOpenAttempt(ctx, userID, attemptID, now, false, func(ctx context.Context, tx repo.Tx, a *entities.ModuleAttempt) error {
		test, err := tx.Tests().Get(ctx, a.TestID)
		if err != nil {
			return fmt.Errorf("get test: %w", err)
		}
		if _, ok := test.QuestionByID(questionID); !ok {
			return ErrQuestionNotFound
		}

		if err := tx.Answers().Upsert(ctx, entities.NewAnswer(m.newID(), attemptID, questionID, userAnswer, timeSpent, now)); err != nil {
			return fmt.Errorf("save answer: %w", err)
		}
		return tx.Sessions().Touch(ctx, userID, attemptID, now)
	})
}

// Submit merges final answers, scores the attempt and releases the lock.
// Scoring, the result, the COMPLETED transition and analytics commit as one unit;
// on evaluation failure the attempt stays IN_PROGRESS and may be resubmitted.
func (m *SessionManager) Submit(ctx context.Context, userID, attemptID string, in SubmitInput) (*entities.Outcome, error) {
	if len(in.Feedback) > 0 && !json.Valid(in.Feedback) {
		return nil, fmt.Errorf("%w: feedback is not valid JSON", ErrInvalidInput)
	}

	now := m.now()

	if len(in.Answers) > 0 {
		err := m.withOpenAttempt(ctx, userID, attemptID, now, true, func(ctx context.Context, tx repo.Tx, a *entities.ModuleAttempt) error {
			return m.mergeAnswers(ctx, tx, a, in.Answers, now)
		})
		if err != nil {
			return nil, err
		}
	}

	var outcome *entities.Outcome
	err := m.withOpenAttempt(ctx, userID, attemptID, now, true, func(ctx context.Context, tx repo.Tx, a *entities.ModuleAttempt) error {
		test, err := tx.Tests().Get(ctx, a.TestID)
		if err != nil {
			return fmt.Errorf("get test: %w", err)
		}

		res, err := m.score(ctx, tx, a, test, in, now)
		if err != nil {
			return err
		}

		if err := tx.Results().Create(ctx, res); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return ErrAlreadySubmitted
			}
			return fmt.Errorf("create result: %w", err)
		}

		if err := a.Transition(entities.StatusCompleted, now); err != nil {
			return ErrNotActive
		}
		a.TimeSpent = res.TimeSpent
		a.Score = &res.Score
		a.BandScore = &res.BandScore
		a.Percentage = &res.Percentage
		if err := tx.Attempts().Update(ctx, a, entities.StatusInProgress); err != nil {
			if errors.Is(err, repo.ErrStaleState) {
				return ErrNotActive
			}
			return fmt.Errorf("complete attempt: %w", err)
		}

		analytics, err := m.analytics.Update(ctx, tx, res, now)
		if err != nil {
			return err
		}

		if err := m.registry.Complete(ctx, tx, userID, attemptID, now); err != nil {
			return err
		}

		outcome = &entities.Outcome{Result: res, Analytics: analytics.Rounded()}
		return nil
	})
	if err != nil {
		m.logFailure("submit failed", err, zap.String("user_id", userID), zap.String("attempt_id", attemptID))
		return nil, err
	}

	m.logger.Info("attempt completed",
		zap.String("user_id", userID),
		zap.String("attempt_id", attemptID),
		zap.Float64("band_score", outcome.Result.BandScore),
	)

	return outcome, nil
}

func (m *SessionManager) mergeAnswers(ctx context.Context, tx repo.Tx, a *entities.ModuleAttempt, answers []entities.SubmittedAnswer, now time.Time) error {
	test, err := tx.Tests().Get(ctx, a.TestID)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}
	for _, sa := range answers {
		if _, ok := test.QuestionByID(sa.QuestionID); !ok {
			return fmt.Errorf("%w: %s", ErrQuestionNotFound, sa.QuestionID)
		}
		ans := entities.NewAnswer(m.newID(), a.ID, sa.QuestionID, sa.UserAnswer, sa.TimeSpent, now)
		if err := tx.Answers().Upsert(ctx, ans); err != nil {
			return fmt.Errorf("save answer: %w", err)
		}
	}
	return nil
}

// score evaluates every question and builds the result.
func (m *SessionManager) score(ctx context.Context, tx repo.Tx, a *entities.ModuleAttempt, test *entities.Test, in SubmitInput, now time.Time) (*entities.TestResult, error) {
	stored, err := tx.Answers().ListByAttempt(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	answers := make(map[string]*entities.Answer, len(stored))
	for _, ans := range stored {
		answers[ans.QuestionID] = ans
	}

	timeSpent := in.TimeSpent
	if timeSpent <= 0 {
		timeSpent = a.TimeSpent
	}
	if timeSpent <= 0 {
		timeSpent = int(now.Sub(a.StartedAt) / time.Second)
	}

	var res *entities.TestResult
	if m.module == entities.ModuleWriting {
		res, err = m.aggregator.Writing(scoring.WritingInput{
			Test:      *test,
			Answers:   answers,
			TaskBands: in.TaskBands,
			TimeSpent: timeSpent,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEvaluation, err)
		}
	} else {
		evaluations := make(map[string]scoring.Evaluation, len(test.Questions))
		evaluated := make([]*entities.Answer, 0, len(test.Questions))
		for _, q := range test.Questions {
			ans, ok := answers[q.ID]
			if !ok {
				ans = entities.NewAnswer(m.newID(), a.ID, q.ID, "", 0, now)
			}
			ev, err := m.evaluator.Evaluate(ans.UserAnswer, q)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrEvaluation, err)
			}
			evaluations[q.ID] = ev
			correct := ev.IsCorrect
			ans.IsCorrect = &correct
			ans.PointsEarned = ev.PointsEarned
			evaluated = append(evaluated, ans)
		}

		res, err = m.aggregator.Objective(scoring.ObjectiveInput{
			Test:           *test,
			Answers:        answers,
			Evaluations:    evaluations,
			TimeSpent:      timeSpent,
			AudioTimeSpent: a.Progress.AudioTimeSpent,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEvaluation, err)
		}

		if err := tx.Answers().SaveEvaluations(ctx, evaluated); err != nil {
			return nil, fmt.Errorf("save evaluations: %w", err)
		}
	}

	res.ID = m.newID()
	res.AttemptID = a.ID
	res.UserID = a.UserID
	res.AIFeedback = in.Feedback
	res.CreatedAt = now

	return res, nil
}

// Abandon closes an attempt without scoring and releases the lock.
// Abandoning an already expired attempt is acknowledged.
func (m *SessionManager) Abandon(ctx context.Context, userID, attemptID string) error {
	now := m.now()

	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		a, err := m.loadAttempt(ctx, tx, userID, attemptID, true)
		if err != nil {
			return err
		}

		switch a.Status {
		case entities.StatusExpired:
			return m.registry.Abandon(ctx, tx, userID, attemptID, now)
		case entities.StatusSubmitted, entities.StatusCompleted:
			return ErrAlreadySubmitted
		}

		if _, err := tx.Attempts().Expire(ctx, attemptID, now); err != nil {
			return err
		}
		return m.registry.Abandon(ctx, tx, userID, attemptID, now)
	})
	if err != nil {
		m.logFailure("abandon failed", err, zap.String("user_id", userID), zap.String("attempt_id", attemptID))
		return err
	}

	m.logger.Info("attempt abandoned", zap.String("user_id", userID), zap.String("attempt_id", attemptID))

	return nil
}

// GetStats returns answered and total counts with the remaining time.
func (m *SessionManager) GetStats(ctx context.Context, userID, attemptID string) (*entities.AttemptStats, error) {
	now := m.now()
	var stats *entities.AttemptStats

	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		a, err := m.loadAttempt(ctx, tx, userID, attemptID, false)
		if err != nil {
			return err
		}
		test, err := tx.Tests().Get(ctx, a.TestID)
		if err != nil {
			return fmt.Errorf("get test: %w", err)
		}
		answered, err := tx.Answers().CountAnswered(ctx, attemptID)
		if err != nil {
			return err
		}

		total := len(test.Questions)
		stats = &entities.AttemptStats{
			Answered:             answered,
			Total:                total,
			TimeRemainingSeconds: int(a.TimeRemaining(now) / time.Second),
		}
		if total > 0 {
			stats.CompletionRate = float64(answered) / float64(total) * 100
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// GetResult returns the scoring snapshot of a completed attempt.
func (m *SessionManager) GetResult(ctx context.Context, userID, attemptID string) (*entities.TestResult, error) {
	var res *entities.TestResult

	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		if _, err := m.loadAttempt(ctx, tx, userID, attemptID, false); err != nil {
			return err
		}
		r, err := tx.Results().GetByAttempt(ctx, attemptID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrResultNotFound
			}
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// AttachFeedback stores externally generated commentary on an existing result.
func (m *SessionManager) AttachFeedback(ctx context.Context, userID, attemptID string, payload json.RawMessage) error {
	if len(payload) == 0 || !json.Valid(payload) {
		return fmt.Errorf("%w: feedback is not valid JSON", ErrInvalidInput)
	}

	return m.store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		if _, err := m.loadAttempt(ctx, tx, userID, attemptID, false); err != nil {
			return err
		}
		if err := tx.Results().SetFeedback(ctx, attemptID, payload); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrResultNotFound
			}
			return err
		}
		return nil
	})
}

// Analytics returns the learner's rolling aggregates; empty if no test was completed yet.
func (m *SessionManager) Analytics(ctx context.Context, userID string) (*entities.PerformanceAnalytics, error) {
	var out *entities.PerformanceAnalytics

	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		a, err := tx.Analytics().Get(ctx, userID, m.module)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				out = entities.NewPerformanceAnalytics(userID, m.module)
				return nil
			}
			return err
		}
		out = a.Rounded()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// withOpenAttempt locks an attempt, checks that it is still in progress and before
// its deadline, then runs fn. A passed deadline is written back in a separate unit
// of work so the rejection itself does not depend on that write.
func (m *SessionManager) withOpenAttempt(
	ctx context.Context,
	userID, attemptID string,
	now time.Time,
	submitting bool,
	fn func(ctx context.Context, tx repo.Tx, a *entities.ModuleAttempt) error,
) error {
	deadlinePassed := false

	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		a, err := m.loadAttempt(ctx, tx, userID, attemptID, true)
		if err != nil {
			return err
		}

		switch a.Status {
		case entities.StatusInProgress:
		case entities.StatusExpired:
			return ErrExpired
		case entities.StatusSubmitted, entities.StatusCompleted:
			if submitting {
				return ErrAlreadySubmitted
			}
			return ErrNotActive
		default:
			return ErrNotActive
		}

		if a.IsExpired(now) {
			deadlinePassed = true
			return ErrExpired
		}

		return fn(ctx, tx, a)
	})

	if deadlinePassed {
		m.expire(ctx, userID, attemptID, now)
	}

	return err
}

// expire closes an attempt found past its deadline together with its session.
func (m *SessionManager) expire(ctx context.Context, userID, attemptID string, now time.Time) {
	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		if _, err := tx.Attempts().Expire(ctx, attemptID, now); err != nil {
			return err
		}
		return m.registry.Abandon(ctx, tx, userID, attemptID, now)
	})
	if err != nil {
		m.logger.Warn("failed to write back expiry",
			zap.String("user_id", userID),
			zap.String("attempt_id", attemptID),
			zap.Error(err),
		)
		return
	}

	m.logger.Info("attempt expired", zap.String("user_id", userID), zap.String("attempt_id", attemptID))
}

// loadAttempt hides attempts of other learners and other modules behind ErrAttemptNotFound.
func (m *SessionManager) loadAttempt(ctx context.Context, tx repo.Tx, userID, attemptID string, lock bool) (*entities.ModuleAttempt, error) {
	get := tx.Attempts().Get
	if lock {
		get = tx.Attempts().GetForUpdate
	}

	a, err := get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if a.UserID != userID || a.Module != m.module {
		return nil, ErrAttemptNotFound
	}

	return a, nil
}

// logFailure logs expected outcomes quietly and everything else as an error.
func (m *SessionManager) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if isExpected(err) {
		m.logger.Debug(msg, fields...)
		return
	}
	m.logger.Error(msg, fields...)
}

func isExpected(err error) bool {
	for _, target := range []error{
		ErrSessionConflict, ErrQuotaExceeded, ErrTestNotFound, ErrAttemptNotFound,
		ErrQuestionNotFound, ErrNotActive, ErrAlreadySubmitted, ErrExpired, ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
