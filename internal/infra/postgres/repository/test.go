package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	"github.com/aliskhannn/ielts-mock-engine/internal/infra/postgres"
	repo "github.com/aliskhannn/ielts-mock-engine/internal/repository"
)

// TestRepository reads test content. Tests and questions are never modified by sessions.
type TestRepository struct {
	db postgres.DBTX
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(db postgres.DBTX) *TestRepository {
	return &TestRepository{db: db}
}

// Get retrieves a test with its sections and questions, answer keys included.
func (r *TestRepository) Get(ctx context.Context, id string) (*entities.Test, error) {
	query := `
		SELECT id, module, title, time_limit_seconds, audio_duration_seconds, is_active, sections
		FROM tests
		WHERE id = $1
	`

	var t entities.Test
	var module string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&module,
		&t.Title,
		&t.TimeLimitSeconds,
		&t.AudioDurationSeconds,
		&t.IsActive,
		&t.Sections,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	t.Module = entities.Module(module)

	questions, err := r.questions(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Questions = questions

	return &t, nil
}

func (r *TestRepository) questions(ctx context.Context, testID string) ([]entities.Question, error) {
	query := `
		SELECT id, test_id, section_id, question_number, type, prompt, options,
		       correct_answer, acceptable_answers, case_sensitive, points
		FROM questions
		WHERE test_id = $1
		ORDER BY question_number
	`

	rows, err := r.db.Query(ctx, query, testID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []entities.Question
	for rows.Next() {
		var q entities.Question
		var typ string
		if err := rows.Scan(
			&q.ID,
			&q.TestID,
			&q.SectionID,
			&q.QuestionNumber,
			&typ,
			&q.Prompt,
			&q.Options,
			&q.CorrectAnswer,
			&q.AcceptableAnswers,
			&q.CaseSensitive,
			&q.Points,
		); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Type = entities.QuestionType(typ)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	return out, nil
}

// Save stores a test and replaces its questions. Used by seeding and tests.
func (r *TestRepository) Save(ctx context.Context, t *entities.Test) error {
	query := `
		INSERT INTO tests (id, module, title, time_limit_seconds, audio_duration_seconds, is_active, sections)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			module = EXCLUDED.module,
			title = EXCLUDED.title,
			time_limit_seconds = EXCLUDED.time_limit_seconds,
			audio_duration_seconds = EXCLUDED.audio_duration_seconds,
			is_active = EXCLUDED.is_active,
			sections = EXCLUDED.sections
	`

	sections := t.Sections
	if sections == nil {
		sections = []entities.Section{}
	}
	if _, err := r.db.Exec(ctx, query, t.ID, string(t.Module), t.Title, t.TimeLimitSeconds,
		t.AudioDurationSeconds, t.IsActive, sections); err != nil {
		return fmt.Errorf("save test: %w", err)
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM questions WHERE test_id = $1`, t.ID); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}

	for _, q := range t.Questions {
		options, accepted := q.Options, q.AcceptableAnswers
		if options == nil {
			options = []string{}
		}
		if accepted == nil {
			accepted = []string{}
		}
		_, err := r.db.Exec(ctx, `
			INSERT INTO questions (
				id, test_id, section_id, question_number, type, prompt, options,
				correct_answer, acceptable_answers, case_sensitive, points
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			q.ID, t.ID, q.SectionID, q.QuestionNumber, string(q.Type), q.Prompt, options,
			q.CorrectAnswer, accepted, q.CaseSensitive, q.Points,
		)
		if err != nil {
			return fmt.Errorf("save question %s: %w", q.ID, err)
		}
	}

	return nil
}
