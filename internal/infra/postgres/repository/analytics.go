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

const analyticsColumns = `
	user_id, module, total_tests, average_band_score, best_band_score, latest_band_score,
	average_time_spent, average_percentage, average_completion_rate, average_utilization_rate,
	last_test_at, next_allowed_attempt_at, updated_at
`

// AnalyticsRepository provides access to performance analytics in the database.
type AnalyticsRepository struct {
	db postgres.DBTX
}

// NewAnalyticsRepository creates a new AnalyticsRepository.
func NewAnalyticsRepository(db postgres.DBTX) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Get retrieves analytics for a user and module.
func (r *AnalyticsRepository) Get(ctx context.Context, userID string, module entities.Module) (*entities.PerformanceAnalytics, error) {
	return r.get(ctx, `SELECT `+analyticsColumns+` FROM performance_analytics WHERE user_id = $1 AND module = $2`, userID, module)
}

// GetForUpdate retrieves analytics with a row-level lock.
func (r *AnalyticsRepository) GetForUpdate(ctx context.Context, userID string, module entities.Module) (*entities.PerformanceAnalytics, error) {
	return r.get(ctx, `SELECT `+analyticsColumns+` FROM performance_analytics WHERE user_id = $1 AND module = $2 FOR UPDATE`, userID, module)
}

func (r *AnalyticsRepository) get(ctx context.Context, query, userID string, module entities.Module) (*entities.PerformanceAnalytics, error) {
	var a entities.PerformanceAnalytics
	var m string
	err := r.db.QueryRow(ctx, query, userID, string(module)).Scan(
		&a.UserID,
		&m,
		&a.TotalTests,
		&a.AverageBandScore,
		&a.BestBandScore,
		&a.LatestBandScore,
		&a.AverageTimeSpent,
		&a.AveragePercentage,
		&a.AverageCompletionRate,
		&a.AverageUtilizationRate,
		&a.LastTestAt,
		&a.NextAllowedAttemptAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get analytics: %w", err)
	}
	a.Module = entities.Module(m)

	return &a, nil
}

// Upsert creates or replaces the analytics row.
func (r *AnalyticsRepository) Upsert(ctx context.Context, a *entities.PerformanceAnalytics) error {
	query := `
		INSERT INTO performance_analytics (` + analyticsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, module) DO UPDATE SET
			total_tests = EXCLUDED.total_tests,
			average_band_score = EXCLUDED.average_band_score,
			best_band_score = EXCLUDED.best_band_score,
			latest_band_score = EXCLUDED.latest_band_score,
			average_time_spent = EXCLUDED.average_time_spent,
			average_percentage = EXCLUDED.average_percentage,
			average_completion_rate = EXCLUDED.average_completion_rate,
			average_utilization_rate = EXCLUDED.average_utilization_rate,
			last_test_at = EXCLUDED.last_test_at,
			next_allowed_attempt_at = EXCLUDED.next_allowed_attempt_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(
		ctx,
		query,
		a.UserID,
		string(a.Module),
		a.TotalTests,
		a.AverageBandScore,
		a.BestBandScore,
		a.LatestBandScore,
		a.AverageTimeSpent,
		a.AveragePercentage,
		a.AverageCompletionRate,
		a.AverageUtilizationRate,
		a.LastTestAt,
		a.NextAllowedAttemptAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert analytics: %w", err)
	}

	return nil
}
