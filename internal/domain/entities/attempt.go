package entities

import (
	"errors"
	"time"
)

// ErrInvalidTransition is returned when a status change would move an attempt backwards
// or out of a terminal status.
var ErrInvalidTransition = errors.New("invalid attempt status transition")

// transitions lists the allowed forward moves of the attempt state machine.
var transitions = map[SessionStatus][]SessionStatus{
	StatusNotStarted: {StatusInProgress, StatusExpired},
	StatusInProgress: {StatusSubmitted, StatusCompleted, StatusExpired},
}

// CanTransition reports whether from → to is a valid forward transition.
func CanTransition(from, to SessionStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AttemptProgress holds module-specific progress fields reported by the client.
// Listening uses the audio fields, reading uses CurrentPassage, writing uses CurrentTask.
type AttemptProgress struct {
	CurrentSection int     `json:"currentSection"`
	CurrentPage    int     `json:"currentPage"`
	CurrentPassage int     `json:"currentPassage,omitempty"`
	CurrentTask    int     `json:"currentTask,omitempty"`
	AudioTimeSpent int     `json:"audioTimeSpent,omitempty"` // seconds of audio listened to
	AudioPosition  float64 `json:"audioPosition,omitempty"`  // playback position in seconds
}

// ProgressUpdate is a partial progress patch; nil fields are left untouched.
type ProgressUpdate struct {
	CurrentSection *int     `json:"currentSection,omitempty"`
	CurrentPage    *int     `json:"currentPage,omitempty"`
	CurrentPassage *int     `json:"currentPassage,omitempty"`
	CurrentTask    *int     `json:"currentTask,omitempty"`
	TimeSpent      *int     `json:"timeSpent,omitempty"`
	AudioTimeSpent *int     `json:"audioTimeSpent,omitempty"`
	AudioPosition  *float64 `json:"audioPosition,omitempty"`
}

// ModuleAttempt is one learner's pass through one test of one module.
type ModuleAttempt struct {
	ID          string
	UserID      string
	TestID      string
	Module      Module
	Status      SessionStatus
	Progress    AttemptProgress
	StartedAt   time.Time
	ExpiresAt   time.Time
	CompletedAt *time.Time
	SubmittedAt *time.Time
	TimeSpent   int // seconds
	Score       *float64
	BandScore   *float64
	Percentage  *float64
	Version     int
}

// NewModuleAttempt creates an attempt in NOT_STARTED with its deadline fixed at creation.
func NewModuleAttempt(id, userID, testID string, module Module, timeLimitSeconds int, now time.Time) *ModuleAttempt {
	return &ModuleAttempt{
		ID:        id,
		UserID:    userID,
		TestID:    testID,
		Module:    module,
		Status:    StatusNotStarted,
		StartedAt: now,
		ExpiresAt: now.Add(time.Duration(timeLimitSeconds) * time.Second),
	}
}

// Transition moves the attempt to the given status if the state machine allows it.
func (a *ModuleAttempt) Transition(to SessionStatus, now time.Time) error {
	if !CanTransition(a.Status, to) {
		return ErrInvalidTransition
	}
	a.Status = to
	switch to {
	case StatusSubmitted:
		a.SubmittedAt = &now
	case StatusCompleted:
		a.SubmittedAt = &now
		a.CompletedAt = &now
	}
	return nil
}

// IsExpired reports whether the deadline has passed at now, regardless of stored status.
func (a *ModuleAttempt) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// TimeRemaining returns max(0, expiresAt - now).
func (a *ModuleAttempt) TimeRemaining(now time.Time) time.Duration {
	if a.Status.IsTerminal() {
		return 0
	}
	return remaining(a.ExpiresAt, now)
}

// ApplyProgress merges a partial update. Answers are never touched here.
func (a *ModuleAttempt) ApplyProgress(u ProgressUpdate) {
	if u.CurrentSection != nil {
		a.Progress.CurrentSection = *u.CurrentSection
	}
	if u.CurrentPage != nil {
		a.Progress.CurrentPage = *u.CurrentPage
	}
	if u.CurrentPassage != nil {
		a.Progress.CurrentPassage = *u.CurrentPassage
	}
	if u.CurrentTask != nil {
		a.Progress.CurrentTask = *u.CurrentTask
	}
	if u.TimeSpent != nil && *u.TimeSpent >= 0 {
		a.TimeSpent = *u.TimeSpent
	}
	if u.AudioTimeSpent != nil && *u.AudioTimeSpent >= 0 {
		a.Progress.AudioTimeSpent = *u.AudioTimeSpent
	}
	if u.AudioPosition != nil && *u.AudioPosition >= 0 {
		a.Progress.AudioPosition = *u.AudioPosition
	}
}

// AttemptSummary is returned after a progress update.
type AttemptSummary struct {
	AttemptID            string          `json:"attemptId"`
	Module               Module          `json:"module"`
	Status               SessionStatus   `json:"status"`
	Progress             AttemptProgress `json:"progress"`
	TimeSpent            int             `json:"timeSpent"`
	TimeRemainingSeconds int             `json:"timeRemainingSeconds"`
}

// Summary builds the read model with time-dependent fields evaluated at now.
func (a *ModuleAttempt) Summary(now time.Time) *AttemptSummary {
	return &AttemptSummary{
		AttemptID:            a.ID,
		Module:               a.Module,
		Status:               a.Status,
		Progress:             a.Progress,
		TimeSpent:            a.TimeSpent,
		TimeRemainingSeconds: int(a.TimeRemaining(now) / time.Second),
	}
}

// AttemptStats is the lightweight progress view used by GetStats.
type AttemptStats struct {
	Answered             int     `json:"answered"`
	Total                int     `json:"total"`
	CompletionRate       float64 `json:"completionRate"`
	TimeRemainingSeconds int     `json:"timeRemainingSeconds"`
}
