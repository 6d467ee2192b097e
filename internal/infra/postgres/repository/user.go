package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	"github.com/aliskhannn/ielts-mock-engine/internal/infra/postgres"
	repo "github.com/aliskhannn/ielts-mock-engine/internal/repository"
)

// UserRepository provides access to learner subscription data in the database.
type UserRepository struct {
	db postgres.DBTX
}

// NewUserRepository creates a new UserRepository with the provided database handle.
func NewUserRepository(db postgres.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*entities.User, error) {
	query := `SELECT id, tier FROM users WHERE id = $1`

	var u entities.User
	var tier string
	if err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &tier); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Tier = entities.Tier(tier)

	return &u, nil
}

// Save inserts a user or updates the tier of an existing one.
func (r *UserRepository) Save(ctx context.Context, u *entities.User) error {
	query := `
		INSERT INTO users (id, tier) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET tier = EXCLUDED.tier
	`

	if _, err := r.db.Exec(ctx, query, u.ID, string(u.Tier)); err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	return nil
}
