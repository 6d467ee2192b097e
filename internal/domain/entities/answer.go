package entities

import (
	"strings"
	"time"
)

// Answer is a learner's response to one question within one attempt.
// IsCorrect stays nil until the attempt is submitted and evaluated.
type Answer struct {
	ID           string    `json:"id"`
	AttemptID    string    `json:"attemptId"`
	QuestionID   string    `json:"questionId"`
	UserAnswer   string    `json:"userAnswer"`
	IsCorrect    *bool     `json:"isCorrect,omitempty"`
	PointsEarned float64   `json:"pointsEarned"`
	TimeSpent    int       `json:"timeSpent"` // seconds, accumulated across saves
	AnsweredAt   time.Time `json:"answeredAt"`
}

// NewAnswer creates a not-yet-evaluated answer.
func NewAnswer(id, attemptID, questionID, userAnswer string, timeSpent int, now time.Time) *Answer {
	if timeSpent < 0 {
		timeSpent = 0
	}
	return &Answer{
		ID:         id,
		AttemptID:  attemptID,
		QuestionID: questionID,
		UserAnswer: userAnswer,
		TimeSpent:  timeSpent,
		AnsweredAt: now,
	}
}

// IsBlank reports whether the answer is empty or whitespace only.
func (a *Answer) IsBlank() bool {
	return strings.TrimSpace(a.UserAnswer) == ""
}

// SubmittedAnswer is an answer carried in a Submit request.
type SubmittedAnswer struct {
	QuestionID string `json:"questionId"`
	UserAnswer string `json:"userAnswer"`
	TimeSpent  int    `json:"timeSpent,omitempty"`
}
