package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	repo "github.com/aliskhannn/ielts-mock-engine/internal/repository"
)

// AnalyticsUpdater folds each new result into the learner's rolling aggregates.
type AnalyticsUpdater struct {
	cooldown time.Duration
}

// NewAnalyticsUpdater creates a new AnalyticsUpdater.
func NewAnalyticsUpdater(cooldown time.Duration) *AnalyticsUpdater {
	return &AnalyticsUpdater{cooldown: cooldown}
}

// Update must run after the result is persisted, in the same unit of work.
// The row is locked so updates for one learner and module serialize.
func (u *AnalyticsUpdater) Update(ctx context.Context, tx repo.Tx, res *entities.TestResult, now time.Time) (*entities.PerformanceAnalytics, error) {
	a, err := tx.Analytics().GetForUpdate(ctx, res.UserID, res.Module)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("get analytics: %w", err)
		}
		a = entities.NewPerformanceAnalytics(res.UserID, res.Module)
	}

	accumulate(a, res, u.cooldown, now)

	if err := tx.Analytics().Upsert(ctx, a); err != nil {
		return nil, fmt.Errorf("upsert analytics: %w", err)
	}

	return a, nil
}

// accumulate applies the incremental mean to every rolling metric.
// Averages are kept unrounded; see PerformanceAnalytics.Rounded.
func accumulate(a *entities.PerformanceAnalytics, res *entities.TestResult, cooldown time.Duration, now time.Time) {
	n := float64(a.TotalTests)
	mean := func(old, v float64) float64 {
		return (old*n + v) / (n + 1)
	}

	utilization := res.TimeUtilization
	if res.AudioUtilization != nil {
		utilization = *res.AudioUtilization
	}

	if a.TotalTests == 0 {
		a.AverageBandScore = res.BandScore
		a.BestBandScore = res.BandScore
		a.AverageTimeSpent = float64(res.TimeSpent)
		a.AveragePercentage = res.Percentage
		a.AverageCompletionRate = res.CompletionRate
		a.AverageUtilizationRate = utilization
	} else {
		a.AverageBandScore = mean(a.AverageBandScore, res.BandScore)
		a.BestBandScore = math.Max(a.BestBandScore, res.BandScore)
		a.AverageTimeSpent = mean(a.AverageTimeSpent, float64(res.TimeSpent))
		a.AveragePercentage = mean(a.AveragePercentage, res.Percentage)
		a.AverageCompletionRate = mean(a.AverageCompletionRate, res.CompletionRate)
		a.AverageUtilizationRate = mean(a.AverageUtilizationRate, utilization)
	}

	a.TotalTests++
	a.LatestBandScore = res.BandScore
	last := now
	a.LastTestAt = &last
	next := now.Add(cooldown)
	a.NextAllowedAttemptAt = &next
	a.UpdatedAt = now
}
