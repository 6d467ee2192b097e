// Package memory is an in-process implementation of the storage contracts.
// Units of work are serialized by a single mutex and rolled back from a snapshot on error.
package memory

import (
	"context"
	"sync"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	repo "github.com/aliskhannn/ielts-mock-engine/internal/repository"
)

type analyticsKey struct {
	userID string
	module entities.Module
}

type state struct {
	users     map[string]entities.User
	tests     map[string]entities.Test
	attempts  map[string]entities.ModuleAttempt
	sessions  map[string]entities.GlobalSession
	answers   map[string]map[string]entities.Answer // attempt id → question id
	results   map[string]entities.TestResult        // by attempt id
	analytics map[analyticsKey]entities.PerformanceAnalytics
}

func newState() *state {
	return &state{
		users:     map[string]entities.User{},
		tests:     map[string]entities.Test{},
		attempts:  map[string]entities.ModuleAttempt{},
		sessions:  map[string]entities.GlobalSession{},
		answers:   map[string]map[string]entities.Answer{},
		results:   map[string]entities.TestResult{},
		analytics: map[analyticsKey]entities.PerformanceAnalytics{},
	}
}

func (s *state) clone() *state {
	c := &state{
		users:     cloneMap(s.users),
		tests:     cloneMap(s.tests),
		attempts:  cloneMap(s.attempts),
		sessions:  cloneMap(s.sessions),
		answers:   make(map[string]map[string]entities.Answer, len(s.answers)),
		results:   cloneMap(s.results),
		analytics: cloneMap(s.analytics),
	}
	for k, v := range s.answers {
		c.answers[k] = cloneMap(v)
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store holds every record in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// WithinTx runs fn with exclusive access to the store. Changes made by fn are
// discarded if it returns an error.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repo.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, &tx{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}

	return nil
}

// PutTest stores test content.
func (s *Store) PutTest(t entities.Test) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.tests[t.ID] = copyTest(t)
}

// PutUser stores a learner with a subscription tier.
func (s *Store) PutUser(u entities.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}

// SaveTest stores test content. It satisfies catalog.Writer.
func (s *Store) SaveTest(_ context.Context, t *entities.Test) error {
	s.PutTest(*t)
	return nil
}

// SaveUser stores a learner. It satisfies catalog.Writer.
func (s *Store) SaveUser(_ context.Context, u *entities.User) error {
	s.PutUser(*u)
	return nil
}

// PutAnalytics overwrites the analytics of a learner. Used to set up cooldowns.
func (s *Store) PutAnalytics(a entities.PerformanceAnalytics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.analytics[analyticsKey{a.UserID, a.Module}] = a
}

// ActiveSessions counts active claims of a user regardless of deadline.
func (s *Store) ActiveSessions(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, gs := range s.st.sessions {
		if gs.UserID == userID && gs.IsActive {
			n++
		}
	}
	return n
}

// ResultCount counts stored results of an attempt.
func (s *Store) ResultCount(attemptID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.results[attemptID]; ok {
		return 1
	}
	return 0
}

func copyTest(t entities.Test) entities.Test {
	t.Sections = append([]entities.Section(nil), t.Sections...)
	qs := make([]entities.Question, len(t.Questions))
	for i, q := range t.Questions {
		q.Options = append([]string(nil), q.Options...)
		q.AcceptableAnswers = append([]string(nil), q.AcceptableAnswers...)
		qs[i] = q
	}
	t.Questions = qs
	return t
}

type tx struct {
	st *state
}

func (t *tx) Sessions() repo.GlobalSessionRepository { return sessionRepo{t.st} }
func (t *tx) Attempts() repo.AttemptRepository       { return attemptRepo{t.st} }
func (t *tx) Answers() repo.AnswerRepository         { return answerRepo{t.st} }
func (t *tx) Tests() repo.TestRepository             { return testRepo{t.st} }
func (t *tx) Results() repo.ResultRepository         { return resultRepo{t.st} }
func (t *tx) Analytics() repo.AnalyticsRepository    { return analyticsRepo{t.st} }
func (t *tx) Users() repo.UserRepository             { return userRepo{t.st} }
