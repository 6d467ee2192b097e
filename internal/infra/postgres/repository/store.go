package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	"github.com/aliskhannn/ielts-mock-engine/internal/infra/postgres"
	repo "github.com/aliskhannn/ielts-mock-engine/internal/repository"
)

// Store runs units of work against PostgreSQL.
type Store struct {
	tr *postgres.Transactor
}

// NewStore creates a Store on top of a connection pool.
func NewStore(pool *pgxpool.Pool, opts ...postgres.TxOption) *Store {
	return &Store{tr: postgres.NewTransactor(pool, opts...)}
}

// WithinTx runs fn in a transaction with every repository bound to it.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repo.Tx) error) error {
	return s.tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, newTxRepos(tx))
	})
}

// SaveTest stores a test with its questions in one transaction.
func (s *Store) SaveTest(ctx context.Context, t *entities.Test) error {
	return s.tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return NewTestRepository(tx).Save(ctx, t)
	})
}

// SaveUser inserts a learner or updates their tier.
func (s *Store) SaveUser(ctx context.Context, u *entities.User) error {
	return s.tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return NewUserRepository(tx).Save(ctx, u)
	})
}

type txRepos struct {
	sessions  *GlobalSessionRepository
	attempts  *AttemptRepository
	answers   *AnswerRepository
	tests     *TestRepository
	results   *ResultRepository
	analytics *AnalyticsRepository
	users     *UserRepository
}

func newTxRepos(db postgres.DBTX) *txRepos {
	return &txRepos{
		sessions:  NewGlobalSessionRepository(db),
		attempts:  NewAttemptRepository(db),
		answers:   NewAnswerRepository(db),
		tests:     NewTestRepository(db),
		results:   NewResultRepository(db),
		analytics: NewAnalyticsRepository(db),
		users:     NewUserRepository(db),
	}
}

func (t *txRepos) Sessions() repo.GlobalSessionRepository { return t.sessions }
func (t *txRepos) Attempts() repo.AttemptRepository       { return t.attempts }
func (t *txRepos) Answers() repo.AnswerRepository         { return t.answers }
func (t *txRepos) Tests() repo.TestRepository             { return t.tests }
func (t *txRepos) Results() repo.ResultRepository         { return t.results }
func (t *txRepos) Analytics() repo.AnalyticsRepository    { return t.analytics }
func (t *txRepos) Users() repo.UserRepository             { return t.users }
