package memory

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	repo "github.com/aliskhannn/ielts-mock-engine/internal/repository"
)

type sessionRepo struct{ st *state }

func (r sessionRepo) Insert(_ context.Context, s *entities.GlobalSession) error {
	for _, gs := range r.st.sessions {
		if gs.UserID == s.UserID && gs.IsActive {
			return repo.ErrConflict
		}
	}
	if _, ok := r.st.sessions[s.ID]; ok {
		return repo.ErrConflict
	}
	r.st.sessions[s.ID] = *s
	return nil
}

func (r sessionRepo) GetActive(_ context.Context, userID string) (*entities.GlobalSession, error) {
	for _, gs := range r.st.sessions {
		if gs.UserID == userID && gs.IsActive {
			return &gs, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r sessionRepo) Transition(_ context.Context, userID, attemptID string, to entities.SessionStatus, now time.Time) (bool, error) {
	for id, gs := range r.st.sessions {
		if gs.UserID != userID || gs.ModuleAttemptID != attemptID || !gs.IsActive {
			continue
		}
		gs.Status = to
		gs.IsActive = to.IsOpen()
		gs.LastActivityAt = now
		r.st.sessions[id] = gs
		return true, nil
	}
	return false, nil
}

func (r sessionRepo) Touch(_ context.Context, userID, attemptID string, now time.Time) error {
	for id, gs := range r.st.sessions {
		if gs.UserID == userID && gs.ModuleAttemptID == attemptID && gs.IsActive {
			gs.LastActivityAt = now
			r.st.sessions[id] = gs
		}
	}
	return nil
}

func (r sessionRepo) ExpireDue(_ context.Context, userID string, now time.Time, limit int) ([]*entities.GlobalSession, error) {
	var due []entities.GlobalSession
	for _, gs := range r.st.sessions {
		if !gs.IsActive || gs.ExpiresAt.After(now) {
			continue
		}
		if userID != "" && gs.UserID != userID {
			continue
		}
		due = append(due, gs)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	out := make([]*entities.GlobalSession, 0, len(due))
	for _, gs := range due {
		gs.Status = entities.StatusExpired
		gs.IsActive = false
		r.st.sessions[gs.ID] = gs
		out = append(out, &gs)
	}
	return out, nil
}

type attemptRepo struct{ st *state }

func (r attemptRepo) Create(_ context.Context, a *entities.ModuleAttempt) error {
	if _, ok := r.st.attempts[a.ID]; ok {
		return repo.ErrConflict
	}
	r.st.attempts[a.ID] = *a
	return nil
}

func (r attemptRepo) Get(_ context.Context, id string) (*entities.ModuleAttempt, error) {
	a, ok := r.st.attempts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &a, nil
}

func (r attemptRepo) GetForUpdate(ctx context.Context, id string) (*entities.ModuleAttempt, error) {
	return r.Get(ctx, id)
}

func (r attemptRepo) Update(_ context.Context, a *entities.ModuleAttempt, expected entities.SessionStatus) error {
	cur, ok := r.st.attempts[a.ID]
	if !ok || cur.Status != expected || cur.Version != a.Version {
		return repo.ErrStaleState
	}
	a.Version++
	r.st.attempts[a.ID] = *a
	return nil
}

func (r attemptRepo) Expire(_ context.Context, id string, _ time.Time) (bool, error) {
	a, ok := r.st.attempts[id]
	if !ok || !a.Status.IsOpen() {
		return false, nil
	}
	a.Status = entities.StatusExpired
	a.Version++
	r.st.attempts[id] = a
	return true, nil
}

func (r attemptRepo) CountFinished(_ context.Context, userID string, module entities.Module) (int, error) {
	n := 0
	for _, a := range r.st.attempts {
		if a.UserID != userID || a.Module != module {
			continue
		}
		if a.Status == entities.StatusSubmitted || a.Status == entities.StatusCompleted {
			n++
		}
	}
	return n, nil
}

type answerRepo struct{ st *state }

func (r answerRepo) Upsert(_ context.Context, a *entities.Answer) error {
	byQuestion, ok := r.st.answers[a.AttemptID]
	if !ok {
		byQuestion = map[string]entities.Answer{}
		r.st.answers[a.AttemptID] = byQuestion
	}
	if prev, ok := byQuestion[a.QuestionID]; ok {
		a.ID = prev.ID
		a.TimeSpent += prev.TimeSpent
	}
	byQuestion[a.QuestionID] = *a
	return nil
}

func (r answerRepo) ListByAttempt(_ context.Context, attemptID string) ([]*entities.Answer, error) {
	byQuestion := r.st.answers[attemptID]
	out := make([]*entities.Answer, 0, len(byQuestion))
	for _, a := range byQuestion {
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (r answerRepo) SaveEvaluations(_ context.Context, answers []*entities.Answer) error {
	for _, a := range answers {
		byQuestion, ok := r.st.answers[a.AttemptID]
		if !ok {
			byQuestion = map[string]entities.Answer{}
			r.st.answers[a.AttemptID] = byQuestion
		}
		cur, ok := byQuestion[a.QuestionID]
		if !ok {
			cur = *a
		}
		cur.IsCorrect = a.IsCorrect
		cur.PointsEarned = a.PointsEarned
		byQuestion[a.QuestionID] = cur
	}
	return nil
}

func (r answerRepo) CountAnswered(_ context.Context, attemptID string) (int, error) {
	n := 0
	for _, a := range r.st.answers[attemptID] {
		if !a.IsBlank() {
			n++
		}
	}
	return n, nil
}

type testRepo struct{ st *state }

func (r testRepo) Get(_ context.Context, id string) (*entities.Test, error) {
	t, ok := r.st.tests[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	t = copyTest(t)
	return &t, nil
}

type resultRepo struct{ st *state }

func (r resultRepo) Create(_ context.Context, res *entities.TestResult) error {
	if _, ok := r.st.results[res.AttemptID]; ok {
		return repo.ErrConflict
	}
	r.st.results[res.AttemptID] = *res
	return nil
}

func (r resultRepo) GetByAttempt(_ context.Context, attemptID string) (*entities.TestResult, error) {
	res, ok := r.st.results[attemptID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &res, nil
}

func (r resultRepo) SetFeedback(_ context.Context, attemptID string, payload json.RawMessage) error {
	res, ok := r.st.results[attemptID]
	if !ok {
		return repo.ErrNotFound
	}
	res.AIFeedback = append(json.RawMessage(nil), payload...)
	r.st.results[attemptID] = res
	return nil
}

type analyticsRepo struct{ st *state }

func (r analyticsRepo) Get(_ context.Context, userID string, module entities.Module) (*entities.PerformanceAnalytics, error) {
	a, ok := r.st.analytics[analyticsKey{userID, module}]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &a, nil
}

func (r analyticsRepo) GetForUpdate(ctx context.Context, userID string, module entities.Module) (*entities.PerformanceAnalytics, error) {
	return r.Get(ctx, userID, module)
}

func (r analyticsRepo) Upsert(_ context.Context, a *entities.PerformanceAnalytics) error {
	r.st.analytics[analyticsKey{a.UserID, a.Module}] = *a
	return nil
}

type userRepo struct{ st *state }

func (r userRepo) Get(_ context.Context, id string) (*entities.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &u, nil
}
