package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	"github.com/aliskhannn/ielts-mock-engine/internal/infra/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

const (
	userFree      = "free-user"
	userPremium   = "premium-user"
	userUnlimited = "unlimited-user"
)

func listeningFixture() entities.Test {
	return entities.Test{
		ID:                   "listening-1",
		Module:               entities.ModuleListening,
		Title:                "Listening 1",
		TimeLimitSeconds:     1800,
		AudioDurationSeconds: 1200,
		IsActive:             true,
		Sections: []entities.Section{
			{ID: "s1", Number: 1, Title: "Section 1"},
			{ID: "s2", Number: 2, Title: "Section 2"},
		},
		Questions: []entities.Question{
			{ID: "q1", SectionID: "s1", QuestionNumber: 1, Type: entities.QuestionMultipleChoice, CorrectAnswer: "A", Points: 1},
			{ID: "q2", SectionID: "s1", QuestionNumber: 2, Type: entities.QuestionMultipleChoice, CorrectAnswer: "B", Points: 1},
			{ID: "q3", SectionID: "s2", QuestionNumber: 3, Type: entities.QuestionSentenceCompletion, CorrectAnswer: "Paris", Points: 1},
			{ID: "q4", SectionID: "s2", QuestionNumber: 4, Type: entities.QuestionNoteCompletion, CorrectAnswer: "river", Points: 1},
		},
	}
}

func readingFixture() entities.Test {
	return entities.Test{
		ID:               "reading-1",
		Module:           entities.ModuleReading,
		Title:            "Reading 1",
		TimeLimitSeconds: 3600,
		IsActive:         true,
		Sections:         []entities.Section{{ID: "p1", Number: 1, Title: "Passage 1"}},
		Questions: []entities.Question{
			{ID: "r1", SectionID: "p1", QuestionNumber: 1, Type: entities.QuestionTrueFalseNotGiven, CorrectAnswer: "TRUE", Points: 1},
			{ID: "r2", SectionID: "p1", QuestionNumber: 2, Type: entities.QuestionFillBlank, CorrectAnswer: "1990", Points: 1},
		},
	}
}

func writingFixture() entities.Test {
	return entities.Test{
		ID:               "writing-1",
		Module:           entities.ModuleWriting,
		Title:            "Writing 1",
		TimeLimitSeconds: 3600,
		IsActive:         true,
		Sections: []entities.Section{
			{ID: "task1", Number: 1, Title: "Task 1"},
			{ID: "task2", Number: 2, Title: "Task 2"},
		},
		Questions: []entities.Question{
			{ID: "w1", SectionID: "task1", QuestionNumber: 1, Type: entities.QuestionEssay},
			{ID: "w2", SectionID: "task2", QuestionNumber: 2, Type: entities.QuestionEssay},
		},
	}
}

func newEngine(t *testing.T) (*Sessions, *memory.Store, *fakeClock) {
	t.Helper()

	store := memory.NewStore()
	store.PutTest(listeningFixture())
	store.PutTest(readingFixture())
	store.PutTest(writingFixture())

	inactive := listeningFixture()
	inactive.ID = "listening-old"
	inactive.IsActive = false
	store.PutTest(inactive)

	store.PutUser(entities.User{ID: userPremium, Tier: entities.TierPremium})
	store.PutUser(entities.User{ID: userUnlimited, Tier: entities.TierUnlimited})

	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	sessions := NewSessions(store, DefaultQuotaConfig(), zap.NewNop())
	sessions.SetClock(clock.Now)

	return sessions, store, clock
}

func manager(t *testing.T, s *Sessions, m entities.Module) *SessionManager {
	t.Helper()
	mgr, ok := s.Module(m)
	require.True(t, ok)
	return mgr
}

func TestStartTest(t *testing.T) {
	s, store, clock := newEngine(t)
	ctx := context.Background()
	listening := manager(t, s, entities.ModuleListening)

	started, err := listening.StartTest(ctx, userUnlimited, "listening-1")
	require.NoError(t, err)

	assert.Equal(t, entities.StatusInProgress, started.Status)
	assert.Equal(t, 1800, started.TimeLimitSeconds)
	assert.Equal(t, clock.Now().Add(30*time.Minute), started.Deadline)
	require.Len(t, started.Test.Questions, 4)
	for _, q := range started.Test.Questions {
		assert.Empty(t, q.CorrectAnswer)
		assert.Empty(t, q.AcceptableAnswers)
	}

	active, err := s.ActiveSession(ctx, userUnlimited)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, started.AttemptID, active.AttemptID)
	assert.Equal(t, entities.StatusInProgress, active.Status)
	assert.Equal(t, entities.StateActive, active.State)
	assert.Equal(t, 1800, active.TimeRemainingSeconds)
	assert.False(t, active.IsExpired)
	assert.Equal(t, 1, store.ActiveSessions(userUnlimited))
}

func TestStartTestNotFound(t *testing.T) {
	s, store, _ := newEngine(t)
	ctx := context.Background()
	listening := manager(t, s, entities.ModuleListening)

	for _, id := range []string{"missing", "listening-old", "reading-1"} {
		_, err := listening.StartTest(ctx, userUnlimited, id)
		assert.ErrorIs(t, err, ErrTestNotFound, id)
	}
	assert.Zero(t, store.ActiveSessions(userUnlimited))
}

func TestStartTestConcurrentExclusivity(t *testing.T) {
	s, store, _ := newEngine(t)
	ctx := context.Background()

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// spread the calls across modules: exclusivity is global
			module := entities.Modules[i%2]
			testID := map[entities.Module]string{
				entities.ModuleListening: "listening-1",
				entities.ModuleReading:   "reading-1",
			}[module]

			_, err := manager(t, s, module).StartTest(ctx, userUnlimited, testID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSessionConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 1, store.ActiveSessions(userUnlimited))
}

func TestStartTestConflictNamesBlockingSession(t *testing.T) {
	s, _, _ := newEngine(t)
	ctx := context.Background()

	started, err := manager(t, s, entities.ModuleListening).StartTest(ctx, userUnlimited, "listening-1")
	require.NoError(t, err)

	_, err = manager(t, s, entities.ModuleReading).StartTest(ctx, userUnlimited, "reading-1")
	require.ErrorIs(t, err, ErrSessionConflict)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, entities.ModuleListening, conflict.Module)
	assert.Equal(t, started.AttemptID, conflict.AttemptID)
	assert.Equal(t, "listening-1", conflict.TestID)
	require.NotNil(t, conflict.ExpiresAt)
	assert.Equal(t, started.Deadline, *conflict.ExpiresAt)
}

func submitListening(t *testing.T, mgr *SessionManager, userID string) (*StartedTest, *entities.Outcome) {
	t.Helper()
	ctx := context.Background()

	started, err := mgr.StartTest(ctx, userID, "listening-1")
	require.NoError(t, err)

	require.NoError(t, mgr.SaveAnswer(ctx, userID, started.AttemptID, "q1", "a", 20))
	require.NoError(t, mgr.SaveAnswer(ctx, userID, started.AttemptID, "q2", "C", 15))

	outcome, err := mgr.Submit(ctx, userID, started.AttemptID, SubmitInput{
		Answers:   []entities.SubmittedAnswer{{QuestionID: "q3", UserAnswer: "paris "}},
		TimeSpent: 900,
	})
	require.NoError(t, err)

	return started, outcome
}

func TestSubmitListening(t *testing.T) {
	s, _, clock := newEngine(t)
	ctx := context.Background()
	listening := manager(t, s, entities.ModuleListening)

	started, err := listening.StartTest(ctx, userUnlimited, "listening-1")
	require.NoError(t, err)

	listened := 600
	_, err = listening.UpdateProgress(ctx, userUnlimited, started.AttemptID, entities.ProgressUpdate{AudioTimeSpent: &listened})
	require.NoError(t, err)
	require.NoError(t, listening.SaveAnswer(ctx, userUnlimited, started.AttemptID, "q1", "a", 20))
	require.NoError(t, listening.SaveAnswer(ctx, userUnlimited, started.AttemptID, "q2", "C", 15))

	outcome, err := listening.Submit(ctx, userUnlimited, started.AttemptID, SubmitInput{
		Answers:   []entities.SubmittedAnswer{{QuestionID: "q3", UserAnswer: "paris "}},
		TimeSpent: 900,
	})
	require.NoError(t, err)

	res := outcome.Result
	assert.Equal(t, started.AttemptID, res.AttemptID)
	assert.Equal(t, userUnlimited, res.UserID)
	assert.Equal(t, 2, res.CorrectAnswers)
	assert.Equal(t, 1, res.WrongAnswers)
	assert.Equal(t, 1, res.SkippedAnswers)
	assert.Equal(t, 1.0, res.BandScore)
	assert.Equal(t, 50.0, res.Percentage)
	assert.Equal(t, 75.0, res.CompletionRate)
	assert.Equal(t, 900, res.TimeSpent)
	require.NotNil(t, res.AudioUtilization)
	assert.Equal(t, 50.0, *res.AudioUtilization)

	a := outcome.Analytics
	assert.Equal(t, 1, a.TotalTests)
	assert.Equal(t, 1.0, a.LatestBandScore)
	assert.Equal(t, 50.0, a.AverageUtilizationRate)
	require.NotNil(t, a.NextAllowedAttemptAt)
	assert.Equal(t, clock.Now().Add(24*time.Hour), *a.NextAllowedAttemptAt)

	active, err := s.ActiveSession(ctx, userUnlimited)
	require.NoError(t, err)
	assert.Nil(t, active)

	stored, err := listening.GetResult(ctx, userUnlimited, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, stored.ID)
}

func TestSubmitIsIdempotent(t *testing.T) {
	s, store, _ := newEngine(t)
	ctx := context.Background()
	listening := manager(t, s, entities.ModuleListening)

	started, _ := submitListening(t, listening, userUnlimited)

	_, err := listening.Submit(ctx, userUnlimited, started.AttemptID, SubmitInput{})
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, 1, store.ResultCount(started.AttemptID))

	analytics, err := listening.Analytics(ctx, userUnlimited)
	require.NoError(t, err)
	assert.Equal(t, 1, analytics.TotalTests)
}

func TestStatusIsMonotonic(t *testing.T) {
	s, _, _ := newEngine(t)
	ctx := context.Background()
	listening := manager(t, s, entities.ModuleListening)

	completed, _ := submitListening(t, listening, userUnlimited)

	page := 2
	_, err := listening.UpdateProgress(ctx, userUnlimited, completed.AttemptID, entities.ProgressUpdate{CurrentPage: &page})
	assert.ErrorIs(t, err, ErrNotActive)
	assert.ErrorIs(t, listening.SaveAnswer(ctx, userUnlimited, completed.AttemptID, "q4", "river", 1), ErrNotActive)
	assert.ErrorIs(t, listening.Abandon(ctx, userUnlimited, completed.AttemptID), ErrAlreadySubmitted)

	abandoned, err := listening.StartTest(ctx, userUnlimited, "listening-1")
	require.NoError(t, err)
	require.NoError(t, listening.Abandon(ctx, userUnlimited, abandoned.AttemptID))
	require.NoError(t, listening.Abandon(ctx, userUnlimited, abandoned.AttemptID))

	_, err = listening.Submit(ctx, userUnlimited, abandoned.AttemptID, SubmitInput{})
	assert.ErrorIs(t, err, ErrExpired)
	assert.ErrorIs(t, listening.SaveAnswer(ctx, userUnlimited, abandoned.AttemptID, "q1", "A", 1), ErrExpired)
	_, err = listening.GetResult(ctx, userUnlimited, abandoned.AttemptID)
	assert.ErrorIs(t, err, ErrResultNotFound)
}

func TestLazyExpiry(t *testing.T) {
	s, store, clock := newEngine(t)
	ctx := context.Background()
	listening := manager(t, s, entities.ModuleListening)

	started, err := listening.StartTest(ctx, userUnlimited, "listening-1")
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)

	active, err := s.ActiveSession(ctx, userUnlimited)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.True(t, active.IsExpired)
	assert.Equal(t, entities.StateExpired, active.State)
	assert.Zero(t, active.TimeRemainingSeconds)

	err = listening.SaveAnswer(ctx, userUnlimited, started.AttemptID, "q1", "A", 5)
	assert.ErrorIs(t, err, ErrExpired)
	_, err = listening.Submit(ctx, userUnlimited, started.AttemptID, SubmitInput{})
	assert.ErrorIs(t, err, ErrExpired)

	// the rejection wrote the expiry back
	assert.Zero(t, store.ActiveSessions(userUnlimited))
	active, err = s.ActiveSession(ctx, userUnlimited)
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Zero(t, store.ResultCount(started.AttemptID))

	_, err = manager(t, s, entities.ModuleReading).StartTest(ctx, userUnlimited, "reading-1")
	assert.NoError(t, err)
}

func TestExpiredSessionDoesNotBlockStart(t *testing.T) {
	s, _, clock := newEngine(t)
	ctx := context.Background()
	listening := manager(t, s, entities.ModuleListening)

	first, err := listening.StartTest(ctx, userUnlimited, "listening-1")
	require.NoError(t, err)

	clock.Advance(time.Hour)

	second, err := manager(t, s, entities.ModuleReading).StartTest(ctx, userUnlimited, "reading-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.AttemptID, second.AttemptID)

	_, err = listening.Submit(ctx, userUnlimited, first.AttemptID, SubmitInput{})
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCooldownDeniesWithRetryAt(t *testing.T) {
	s, store, clock := newEngine(t)
	ctx := context.Background()

	retryAt := clock.Now().Add(3 * time.Hour)
	store.PutAnalytics(entities.PerformanceAnalytics{
		UserID:               userPremium,
		Module:               entities.ModuleReading,
		TotalTests:           1,
		NextAllowedAttemptAt: &retryAt,
	})

	_, err := manager(t, s, entities.ModuleReading).StartTest(ctx, userPremium, "reading-1")
	require.ErrorIs(t, err, ErrQuotaExceeded)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ReasonCooldown, conflict.Reason)
	require.NotNil(t, conflict.RetryAt)
	assert.Equal(t, retryAt, *conflict.RetryAt)
	assert.Zero(t, store.ActiveSessions(userPremium))

	// other modules are not affected
	_, err = manager(t, s, entities.ModuleListening).StartTest(ctx, userPremium, "listening-1")
	assert.NoError(t, err)
}

func TestCooldownStartsAfterSubmit(t *testing.T) {
	s, _, clock := newEngine(t)
	ctx := context.Background()
	listening := manager(t, s, entities.ModuleListening)

	submitListening(t, listening, userPremium)

	_, err := listening.StartTest(ctx, userPremium, "listening-1")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.NotNil(t, conflict.RetryAt)
	assert.Equal(t, clock.Now().Add(24*time.Hour), *conflict.RetryAt)

	clock.Advance(24 * time.Hour)
	_, err = listening.StartTest(ctx, userPremium, "listening-1")
	assert.NoError(t, err)
}

func TestFreeTierCap(t *testing.T) {
	s, _, _ := newEngine(t)
	ctx := context.Background()
	reading := manager(t, s, entities.ModuleReading)

	// abandoned attempts do not count against the cap
	abandoned, err := reading.StartTest(ctx, userFree, "reading-1")
	require.NoError(t, err)
	require.NoError(t, reading.Abandon(ctx, userFree, abandoned.AttemptID))

	started, err := reading.StartTest(ctx, userFree, "reading-1")
	require.NoError(t, err)
	_, err = reading.Submit(ctx, userFree, started.AttemptID, SubmitInput{
		Answers: []entities.SubmittedAnswer{{QuestionID: "r1", UserAnswer: "true"}},
	})
	require.NoError(t, err)

	_, err = reading.StartTest(ctx, userFree, "reading-1")
	require.ErrorIs(t, err, ErrQuotaExceeded)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ReasonFreeLimit, conflict.Reason)
	assert.Nil(t, conflict.RetryAt)

	// listening allows five
	_, err = manager(t, s, entities.ModuleListening).StartTest(ctx, userFree, "listening-1")
	assert.NoError(t, err)
}

func submitWriting(t *testing.T, mgr *SessionManager, task1, task2 float64) *entities.Outcome {
	t.Helper()
	ctx := context.Background()

	started, err := mgr.StartTest(ctx, userUnlimited, "writing-1")
	require.NoError(t, err)

	outcome, err := mgr.Submit(ctx, userUnlimited, started.AttemptID, SubmitInput{
		Answers: []entities.SubmittedAnswer{
			{QuestionID: "w1", UserAnswer: "The chart shows a steady rise."},
			{QuestionID: "w2", UserAnswer: "Some people believe that cities should ban cars."},
		},
		TaskBands: map[int]float64{1: task1, 2: task2},
	})
	require.NoError(t, err)

	return outcome
}

func TestWritingRollingAverage(t *testing.T) {
	s, _, _ := newEngine(t)
	writing := manager(t, s, entities.ModuleWriting)

	submitWriting(t, writing, 6, 6)
	submitWriting(t, writing, 7, 7)
	outcome := submitWriting(t, writing, 8, 8)

	assert.Equal(t, 8.0, outcome.Result.BandScore)
	a := outcome.Analytics
	assert.Equal(t, 3, a.TotalTests)
	assert.Equal(t, 7.0, a.AverageBandScore)
	assert.Equal(t, 8.0, a.BestBandScore)
	assert.Equal(t, 8.0, a.LatestBandScore)
}

func TestWritingEvaluationFailureKeepsAttemptOpen(t *testing.T) {
	s, store, _ := newEngine(t)
	ctx := context.Background()
	writing := manager(t, s, entities.ModuleWriting)

	started, err := writing.StartTest(ctx, userUnlimited, "writing-1")
	require.NoError(t, err)

	_, err = writing.Submit(ctx, userUnlimited, started.AttemptID, SubmitInput{
		Answers:   []entities.SubmittedAnswer{{QuestionID: "w1", UserAnswer: "one two three"}},
		TaskBands: map[int]float64{1: 6},
	})
	require.ErrorIs(t, err, ErrEvaluation)
	assert.Zero(t, store.ResultCount(started.AttemptID))
	assert.Equal(t, 1, store.ActiveSessions(userUnlimited))

	// answers merged before scoring survive the failure
	stats, err := writing.GetStats(ctx, userUnlimited, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Answered)

	outcome, err := writing.Submit(ctx, userUnlimited, started.AttemptID, SubmitInput{
		TaskBands: map[int]float64{1: 6, 2: 7},
		Feedback:  json.RawMessage(`{"summary":"clear position"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 6.5, outcome.Result.BandScore)
	assert.JSONEq(t, `{"summary":"clear position"}`, string(outcome.Result.AIFeedback))
	require.Len(t, outcome.Result.TaskScores, 2)
	assert.Equal(t, 3, outcome.Result.TaskScores[0].WordCount)
}

func TestAbandonSubmitRace(t *testing.T) {
	for i := 0; i < 20; i++ {
		s, store, _ := newEngine(t)
		ctx := context.Background()
		listening := manager(t, s, entities.ModuleListening)

		started, err := listening.StartTest(ctx, userUnlimited, "listening-1")
		require.NoError(t, err)

		var wg sync.WaitGroup
		var submitErr, abandonErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, submitErr = listening.Submit(ctx, userUnlimited, started.AttemptID, SubmitInput{})
		}()
		go func() {
			defer wg.Done()
			abandonErr = listening.Abandon(ctx, userUnlimited, started.AttemptID)
		}()
		wg.Wait()

		if submitErr == nil {
			assert.ErrorIs(t, abandonErr, ErrAlreadySubmitted)
			assert.Equal(t, 1, store.ResultCount(started.AttemptID))
		} else {
			assert.ErrorIs(t, submitErr, ErrExpired)
			assert.NoError(t, abandonErr)
			assert.Zero(t, store.ResultCount(started.AttemptID))
		}
		assert.Zero(t, store.ActiveSessions(userUnlimited))
	}
}

func TestOwnershipAndModuleScoping(t *testing.T) {
	s, _, _ := newEngine(t)
	ctx := context.Background()
	listening := manager(t, s, entities.ModuleListening)

	started, err := listening.StartTest(ctx, userUnlimited, "listening-1")
	require.NoError(t, err)

	assert.ErrorIs(t, listening.SaveAnswer(ctx, userPremium, started.AttemptID, "q1", "A", 1), ErrAttemptNotFound)
	assert.ErrorIs(t, listening.Abandon(ctx, userPremium, started.AttemptID), ErrAttemptNotFound)
	_, err = manager(t, s, entities.ModuleReading).GetStats(ctx, userUnlimited, started.AttemptID)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
	assert.ErrorIs(t, listening.SaveAnswer(ctx, userUnlimited, started.AttemptID, "r1", "TRUE", 1), ErrQuestionNotFound)
}

func TestProgressAndStats(t *testing.T) {
	s, _, clock := newEngine(t)
	ctx := context.Background()
	listening := manager(t, s, entities.ModuleListening)

	started, err := listening.StartTest(ctx, userUnlimited, "listening-1")
	require.NoError(t, err)

	section, spent, position := 2, 300, 412.5
	summary, err := listening.UpdateProgress(ctx, userUnlimited, started.AttemptID, entities.ProgressUpdate{
		CurrentSection: &section,
		TimeSpent:      &spent,
		AudioPosition:  &position,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Progress.CurrentSection)
	assert.Equal(t, 412.5, summary.Progress.AudioPosition)
	assert.Equal(t, 300, summary.TimeSpent)

	require.NoError(t, listening.SaveAnswer(ctx, userUnlimited, started.AttemptID, "q1", "A", 10))
	require.NoError(t, listening.SaveAnswer(ctx, userUnlimited, started.AttemptID, "q1", "B", 10))
	require.NoError(t, listening.SaveAnswer(ctx, userUnlimited, started.AttemptID, "q2", "  ", 10))

	clock.Advance(10 * time.Minute)

	stats, err := listening.GetStats(ctx, userUnlimited, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Answered)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 25.0, stats.CompletionRate)
	assert.Equal(t, 1200, stats.TimeRemainingSeconds)
}

func TestAttachFeedback(t *testing.T) {
	s, _, _ := newEngine(t)
	ctx := context.Background()
	listening := manager(t, s, entities.ModuleListening)

	started, _ := submitListening(t, listening, userUnlimited)

	assert.ErrorIs(t, listening.AttachFeedback(ctx, userUnlimited, started.AttemptID, json.RawMessage(`{bad`)), ErrInvalidInput)
	require.NoError(t, listening.AttachFeedback(ctx, userUnlimited, started.AttemptID, json.RawMessage(`{"tips":["slow down"]}`)))

	res, err := listening.GetResult(ctx, userUnlimited, started.AttemptID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tips":["slow down"]}`, string(res.AIFeedback))
}

func TestAnalyticsEmptyBeforeFirstTest(t *testing.T) {
	s, _, _ := newEngine(t)

	a, err := manager(t, s, entities.ModuleReading).Analytics(context.Background(), userFree)
	require.NoError(t, err)
	assert.Zero(t, a.TotalTests)
	assert.Nil(t, a.NextAllowedAttemptAt)
}
