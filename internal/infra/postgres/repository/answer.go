package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	"github.com/aliskhannn/ielts-mock-engine/internal/infra/postgres"
)

// AnswerRepository provides access to learner answers in the database.
type AnswerRepository struct {
	db postgres.DBTX
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(db postgres.DBTX) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// Upsert saves an answer. A repeated save for the same question overwrites the text
// and accumulates time spent.
func (r *AnswerRepository) Upsert(ctx context.Context, a *entities.Answer) error {
	query := `
		INSERT INTO answers (id, attempt_id, question_id, user_answer, time_spent, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
			user_answer = EXCLUDED.user_answer,
			time_spent = answers.time_spent + EXCLUDED.time_spent,
			answered_at = EXCLUDED.answered_at
		RETURNING id, time_spent
	`

	err := r.db.QueryRow(
		ctx,
		query,
		a.ID,
		a.AttemptID,
		a.QuestionID,
		a.UserAnswer,
		a.TimeSpent,
		a.AnsweredAt,
	).Scan(&a.ID, &a.TimeSpent)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}

	return nil
}

// ListByAttempt returns every answer of an attempt.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID string) ([]*entities.Answer, error) {
	query := `
		SELECT id, attempt_id, question_id, user_answer, is_correct, points_earned, time_spent, answered_at
		FROM answers
		WHERE attempt_id = $1
		ORDER BY answered_at
	`

	rows, err := r.db.Query(ctx, query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var out []*entities.Answer
	for rows.Next() {
		var a entities.Answer
		if err := rows.Scan(
			&a.ID,
			&a.AttemptID,
			&a.QuestionID,
			&a.UserAnswer,
			&a.IsCorrect,
			&a.PointsEarned,
			&a.TimeSpent,
			&a.AnsweredAt,
		); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}

	return out, nil
}

// SaveEvaluations writes the evaluation of every answer in a single batch.
func (r *AnswerRepository) SaveEvaluations(ctx context.Context, answers []*entities.Answer) error {
	if len(answers) == 0 {
		return nil
	}

	query := `
		INSERT INTO answers (id, attempt_id, question_id, user_answer, is_correct, points_earned, time_spent, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
			is_correct = EXCLUDED.is_correct,
			points_earned = EXCLUDED.points_earned
	`

	batch := &pgx.Batch{}
	for _, a := range answers {
		batch.Queue(query, a.ID, a.AttemptID, a.QuestionID, a.UserAnswer, a.IsCorrect, a.PointsEarned, a.TimeSpent, a.AnsweredAt)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range answers {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save evaluation: %w", err)
		}
	}

	return nil
}

// CountAnswered counts non-blank answers of an attempt.
func (r *AnswerRepository) CountAnswered(ctx context.Context, attemptID string) (int, error) {
	query := `SELECT COUNT(*) FROM answers WHERE attempt_id = $1 AND btrim(user_answer, E' \t\r\n') <> ''`

	var n int
	if err := r.db.QueryRow(ctx, query, attemptID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}

	return n, nil
}
