package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	"github.com/aliskhannn/ielts-mock-engine/internal/infra/postgres"
	repo "github.com/aliskhannn/ielts-mock-engine/internal/repository"
)

// breakdown is the JSONB part of a stored result.
type breakdown struct {
	SectionStats    map[string]entities.GroupStats `json:"sectionStats"`
	TypeStats       map[string]entities.GroupStats `json:"typeStats"`
	TaskScores      []entities.TaskScore           `json:"taskScores,omitempty"`
	Strengths       []string                       `json:"strengths"`
	Weaknesses      []string                       `json:"weaknesses"`
	Recommendations []string                       `json:"recommendations"`
}

// ResultRepository provides access to test results in the database.
type ResultRepository struct {
	db postgres.DBTX
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(db postgres.DBTX) *ResultRepository {
	return &ResultRepository{db: db}
}

// Create inserts a result. The unique attempt_id column guarantees one result per attempt.
func (r *ResultRepository) Create(ctx context.Context, res *entities.TestResult) error {
	query := `
		INSERT INTO test_results (
			id, attempt_id, user_id, test_id, module, score, total_score, band_score, percentage,
			correct_answers, wrong_answers, skipped_answers, total_questions, time_spent,
			completion_rate, time_utilization, audio_utilization, breakdown, ai_feedback, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	b := breakdown{
		SectionStats:    res.SectionStats,
		TypeStats:       res.TypeStats,
		TaskScores:      res.TaskScores,
		Strengths:       res.Strengths,
		Weaknesses:      res.Weaknesses,
		Recommendations: res.Recommendations,
	}

	_, err := r.db.Exec(
		ctx,
		query,
		res.ID,
		res.AttemptID,
		res.UserID,
		res.TestID,
		string(res.Module),
		res.Score,
		res.TotalScore,
		res.BandScore,
		res.Percentage,
		res.CorrectAnswers,
		res.WrongAnswers,
		res.SkippedAnswers,
		res.TotalQuestions,
		res.TimeSpent,
		res.CompletionRate,
		res.TimeUtilization,
		res.AudioUtilization,
		b,
		nullableJSON(res.AIFeedback),
		res.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return repo.ErrConflict
		}
		return fmt.Errorf("create result: %w", err)
	}

	return nil
}

// GetByAttempt retrieves the result of an attempt.
func (r *ResultRepository) GetByAttempt(ctx context.Context, attemptID string) (*entities.TestResult, error) {
	query := `
		SELECT id, attempt_id, user_id, test_id, module, score, total_score, band_score, percentage,
		       correct_answers, wrong_answers, skipped_answers, total_questions, time_spent,
		       completion_rate, time_utilization, audio_utilization, breakdown, ai_feedback, created_at
		FROM test_results
		WHERE attempt_id = $1
	`

	var res entities.TestResult
	var module string
	var b breakdown
	var feedback []byte
	err := r.db.QueryRow(ctx, query, attemptID).Scan(
		&res.ID,
		&res.AttemptID,
		&res.UserID,
		&res.TestID,
		&module,
		&res.Score,
		&res.TotalScore,
		&res.BandScore,
		&res.Percentage,
		&res.CorrectAnswers,
		&res.WrongAnswers,
		&res.SkippedAnswers,
		&res.TotalQuestions,
		&res.TimeSpent,
		&res.CompletionRate,
		&res.TimeUtilization,
		&res.AudioUtilization,
		&b,
		&feedback,
		&res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}

	res.Module = entities.Module(module)
	res.SectionStats = b.SectionStats
	res.TypeStats = b.TypeStats
	res.TaskScores = b.TaskScores
	res.Strengths = b.Strengths
	res.Weaknesses = b.Weaknesses
	res.Recommendations = b.Recommendations
	if len(feedback) > 0 {
		res.AIFeedback = json.RawMessage(feedback)
	}

	return &res, nil
}

// SetFeedback stores opaque AI commentary on an existing result.
func (r *ResultRepository) SetFeedback(ctx context.Context, attemptID string, payload json.RawMessage) error {
	tag, err := r.db.Exec(ctx, `UPDATE test_results SET ai_feedback = $1 WHERE attempt_id = $2`,
		nullableJSON(payload), attemptID)
	if err != nil {
		return fmt.Errorf("set feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
