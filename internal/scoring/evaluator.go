package scoring

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
)

var (
	ErrNoAnswerKey   = errors.New("question has no answer key")
	ErrNotAutoScored = errors.New("question type is not auto-scored")
)

// Evaluation is the outcome of comparing one answer with its question.
type Evaluation struct {
	QuestionID   string
	IsCorrect    bool
	PointsEarned float64
	Skipped      bool // blank answer: incorrect, counted as skipped rather than wrong
}

// Evaluator compares submitted answers against accepted answers.
//
// Completion answers are compared after stripping trailing punctuation and
// collapsing whitespace. Near misses beyond that (spelling, plurals) are incorrect.
type Evaluator struct{}

// NewEvaluator creates a new Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate scores a single answer. There is no partial credit.
func (e *Evaluator) Evaluate(userAnswer string, q entities.Question) (Evaluation, error) {
	ev := Evaluation{QuestionID: q.ID}

	category := q.Type.Category()
	if category == entities.MatchManual {
		return ev, fmt.Errorf("question %s: %w", q.ID, ErrNotAutoScored)
	}
	if strings.TrimSpace(q.CorrectAnswer) == "" && len(q.AcceptableAnswers) == 0 {
		return ev, fmt.Errorf("question %s: %w", q.ID, ErrNoAnswerKey)
	}

	if strings.TrimSpace(userAnswer) == "" {
		ev.Skipped = true
		return ev, nil
	}

	user := e.normalize(userAnswer, category, q.CaseSensitive)
	candidates := make([]string, 0, 1+len(q.AcceptableAnswers))
	if q.CorrectAnswer != "" {
		candidates = append(candidates, q.CorrectAnswer)
	}
	candidates = append(candidates, q.AcceptableAnswers...)

	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if user == e.normalize(c, category, q.CaseSensitive) {
			ev.IsCorrect = true
			ev.PointsEarned = q.Points
			return ev, nil
		}
	}

	return ev, nil
}

// normalize prepares a string for comparison under the question's matching policy.
func (e *Evaluator) normalize(s string, category entities.MatchCategory, caseSensitive bool) string {
	s = strings.TrimSpace(s)

	if category == entities.MatchCompletion {
		s = strings.Join(strings.Fields(s), " ")
		s = strings.TrimRightFunc(s, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSpace(r)
		})
	}

	if !caseSensitive {
		s = strings.ToLower(s)
	}

	return s
}
