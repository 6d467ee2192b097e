package service

import (
	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	"github.com/aliskhannn/ielts-mock-engine/internal/scoring"
)

// AnswerEvaluator compares one answer with its question.
type AnswerEvaluator interface {
	Evaluate(userAnswer string, q entities.Question) (scoring.Evaluation, error)
}

// ScoreAggregator turns evaluations into a result.
type ScoreAggregator interface {
	Objective(in scoring.ObjectiveInput) (*entities.TestResult, error)
	Writing(in scoring.WritingInput) (*entities.TestResult, error)
}
