package entities

import (
	"math"
	"time"
)

// PerformanceAnalytics holds rolling aggregates for one learner in one module.
type PerformanceAnalytics struct {
	UserID                 string     `json:"userId"`
	Module                 Module     `json:"module"`
	TotalTests             int        `json:"totalTests"`
	AverageBandScore       float64    `json:"averageBandScore"`
	BestBandScore          float64    `json:"bestBandScore"`
	LatestBandScore        float64    `json:"latestBandScore"`
	AverageTimeSpent       float64    `json:"averageTimeSpent"`
	AveragePercentage      float64    `json:"averagePercentage"`
	AverageCompletionRate  float64    `json:"averageCompletionRate"`
	AverageUtilizationRate float64    `json:"averageUtilizationRate"`
	LastTestAt             *time.Time `json:"lastTestAt,omitempty"`
	NextAllowedAttemptAt   *time.Time `json:"nextAllowedAttemptAt,omitempty"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// NewPerformanceAnalytics returns an empty aggregate for a learner and module.
func NewPerformanceAnalytics(userID string, module Module) *PerformanceAnalytics {
	return &PerformanceAnalytics{UserID: userID, Module: module}
}

// Rounded returns a copy with averages rounded to two decimals for display.
// Stored averages keep full precision so later updates stay exact.
func (a PerformanceAnalytics) Rounded() *PerformanceAnalytics {
	a.AverageBandScore = round2(a.AverageBandScore)
	a.AverageTimeSpent = round2(a.AverageTimeSpent)
	a.AveragePercentage = round2(a.AveragePercentage)
	a.AverageCompletionRate = round2(a.AverageCompletionRate)
	a.AverageUtilizationRate = round2(a.AverageUtilizationRate)
	return &a
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// User carries the subscription tier of a learner. Registration lives elsewhere.
type User struct {
	ID   string `json:"id"`
	Tier Tier   `json:"tier"`
}
