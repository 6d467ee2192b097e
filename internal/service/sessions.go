package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	repo "github.com/aliskhannn/ielts-mock-engine/internal/repository"
	"github.com/aliskhannn/ielts-mock-engine/internal/scoring"
)

// Sessions wires one SessionManager per module around a shared registry.
type Sessions struct {
	store    repo.Transactor
	registry *Registry
	managers map[entities.Module]*SessionManager
	now      func() time.Time
}

// NewSessions builds the session engine for every module.
func NewSessions(store repo.Transactor, quota QuotaConfig, logger *zap.Logger) *Sessions {
	policy := NewQuotaPolicy(quota)
	registry := NewRegistry(logger)
	analytics := NewAnalyticsUpdater(policy.Cooldown())
	evaluator := scoring.NewEvaluator()
	aggregator := scoring.NewAggregator(scoring.StandardBandTable)

	s := &Sessions{
		store:    store,
		registry: registry,
		managers: make(map[entities.Module]*SessionManager, len(entities.Modules)),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, m := range entities.Modules {
		s.managers[m] = NewSessionManager(m, store, policy, registry, analytics, evaluator, aggregator, logger)
	}

	return s
}

// SetClock replaces the time source of every manager.
func (s *Sessions) SetClock(now func() time.Time) {
	s.now = now
	for _, m := range s.managers {
		m.SetClock(now)
	}
}

// SetIDGenerator replaces the id source of every manager.
func (s *Sessions) SetIDGenerator(newID func() string) {
	for _, m := range s.managers {
		m.SetIDGenerator(newID)
	}
}

// Module returns the manager of a module.
func (s *Sessions) Module(m entities.Module) (*SessionManager, bool) {
	mgr, ok := s.managers[m]
	return mgr, ok
}

// Registry returns the shared exclusivity registry.
func (s *Sessions) Registry() *Registry {
	return s.registry
}

// ActiveSession returns the learner's in-flight session across all modules, or nil.
func (s *Sessions) ActiveSession(ctx context.Context, userID string) (*entities.GlobalSessionSummary, error) {
	now := s.now()
	var out *entities.GlobalSessionSummary

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		summary, err := s.registry.ActiveSessionFor(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		out = summary
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
