package entities

import "time"

// SessionStatus is the lifecycle status shared by global sessions and module attempts.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "NOT_STARTED"
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusSubmitted  SessionStatus = "SUBMITTED"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusExpired    SessionStatus = "EXPIRED"
)

// IsOpen reports whether the status still allows the learner to work on the test.
func (s SessionStatus) IsOpen() bool {
	return s == StatusNotStarted || s == StatusInProgress
}

// IsTerminal reports whether no further transition is possible.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusSubmitted || s == StatusCompleted || s == StatusExpired
}

// SessionState is the time-sensitive view of a session, computed on read and never stored.
type SessionState string

const (
	StateActive   SessionState = "ACTIVE"
	StateExpired  SessionState = "EXPIRED"
	StateTerminal SessionState = "TERMINAL"
)

// GlobalSession is the cross-module exclusivity claim held by a learner
// while one test attempt is in flight.
type GlobalSession struct {
	ID               string
	UserID           string
	Module           Module
	ModuleTestID     string
	ModuleAttemptID  string
	Status           SessionStatus
	StartedAt        time.Time
	LastActivityAt   time.Time
	ExpiresAt        time.Time
	TimeLimitSeconds int
	IsActive         bool
}

// NewGlobalSession creates an active claim that expires timeLimitSeconds after now.
func NewGlobalSession(id, userID string, module Module, testID, attemptID string, timeLimitSeconds int, now time.Time) *GlobalSession {
	return &GlobalSession{
		ID:               id,
		UserID:           userID,
		Module:           module,
		ModuleTestID:     testID,
		ModuleAttemptID:  attemptID,
		Status:           StatusNotStarted,
		StartedAt:        now,
		LastActivityAt:   now,
		ExpiresAt:        now.Add(time.Duration(timeLimitSeconds) * time.Second),
		TimeLimitSeconds: timeLimitSeconds,
		IsActive:         true,
	}
}

// State computes whether the claim still blocks new attempts at the given instant.
func (s *GlobalSession) State(now time.Time) SessionState {
	if !s.IsActive || !s.Status.IsOpen() {
		return StateTerminal
	}
	if !now.Before(s.ExpiresAt) {
		return StateExpired
	}
	return StateActive
}

// Blocks reports whether the session counts against the one-active-session rule.
func (s *GlobalSession) Blocks(now time.Time) bool {
	return s.State(now) == StateActive
}

// TimeRemaining returns max(0, expiresAt - now).
func (s *GlobalSession) TimeRemaining(now time.Time) time.Duration {
	return remaining(s.ExpiresAt, now)
}

// GlobalSessionSummary is the read model returned to callers asking for the active session.
type GlobalSessionSummary struct {
	SessionID            string        `json:"sessionId"`
	Module               Module        `json:"module"`
	TestID               string        `json:"testId"`
	AttemptID            string        `json:"attemptId"`
	Status               SessionStatus `json:"status"`
	State                SessionState  `json:"state"`
	StartedAt            time.Time     `json:"startedAt"`
	ExpiresAt            time.Time     `json:"expiresAt"`
	TimeRemainingSeconds int           `json:"timeRemainingSeconds"`
	IsExpired            bool          `json:"isExpired"`
}

// Summary builds the read model with time-dependent fields evaluated at now.
func (s *GlobalSession) Summary(now time.Time) *GlobalSessionSummary {
	state := s.State(now)
	return &GlobalSessionSummary{
		SessionID:            s.ID,
		Module:               s.Module,
		TestID:               s.ModuleTestID,
		AttemptID:            s.ModuleAttemptID,
		Status:               s.Status,
		State:                state,
		StartedAt:            s.StartedAt,
		ExpiresAt:            s.ExpiresAt,
		TimeRemainingSeconds: int(s.TimeRemaining(now) / time.Second),
		IsExpired:            state == StateExpired,
	}
}

func remaining(deadline, now time.Time) time.Duration {
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
