package entities

import (
	"encoding/json"
	"time"
)

// GroupStats is the accuracy of one section or question type.
type GroupStats struct {
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"` // percent
}

// TaskScore is the band of one writing task as reported by the assessor.
type TaskScore struct {
	Task      int     `json:"task"`
	BandScore float64 `json:"bandScore"`
	WordCount int     `json:"wordCount"`
	MinWords  int     `json:"minWords"`
}

// TestResult is the immutable scoring snapshot of one attempt.
type TestResult struct {
	ID               string                `json:"id"`
	AttemptID        string                `json:"attemptId"`
	UserID           string                `json:"userId"`
	TestID           string                `json:"testId"`
	Module           Module                `json:"module"`
	Score            float64               `json:"score"`
	TotalScore       float64               `json:"totalScore"`
	BandScore        float64               `json:"bandScore"`
	Percentage       float64               `json:"percentage"`
	CorrectAnswers   int                   `json:"correctAnswers"`
	WrongAnswers     int                   `json:"wrongAnswers"`
	SkippedAnswers   int                   `json:"skippedAnswers"`
	TotalQuestions   int                   `json:"totalQuestions"`
	SectionStats     map[string]GroupStats `json:"sectionStats"`
	TypeStats        map[string]GroupStats `json:"typeStats"`
	TaskScores       []TaskScore           `json:"taskScores,omitempty"`
	Strengths        []string              `json:"strengths"`
	Weaknesses       []string              `json:"weaknesses"`
	Recommendations  []string              `json:"recommendations"`
	TimeSpent        int                   `json:"timeSpent"`
	CompletionRate   float64               `json:"completionRate"`
	TimeUtilization  float64               `json:"timeUtilization"`
	AudioUtilization *float64              `json:"audioUtilization,omitempty"`
	AIFeedback       json.RawMessage       `json:"aiFeedback,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
}

// Outcome is returned by a successful submission.
type Outcome struct {
	Result    *TestResult           `json:"result"`
	Analytics *PerformanceAnalytics `json:"analytics"`
}
