package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
  id         TEXT PRIMARY KEY,
  tier       TEXT NOT NULL DEFAULT 'FREE',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tests (
  id                     TEXT PRIMARY KEY,
  module                 TEXT NOT NULL,
  title                  TEXT NOT NULL,
  time_limit_seconds     INTEGER NOT NULL,
  audio_duration_seconds INTEGER NOT NULL DEFAULT 0,
  is_active              BOOLEAN NOT NULL DEFAULT TRUE,
  sections               JSONB NOT NULL DEFAULT '[]',
  created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS questions (
  id                 TEXT PRIMARY KEY,
  test_id            TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
  section_id         TEXT NOT NULL DEFAULT '',
  question_number    INTEGER NOT NULL,
  type               TEXT NOT NULL,
  prompt             TEXT NOT NULL DEFAULT '',
  options            TEXT[] NOT NULL DEFAULT '{}',
  correct_answer     TEXT NOT NULL DEFAULT '',
  acceptable_answers TEXT[] NOT NULL DEFAULT '{}',
  case_sensitive     BOOLEAN NOT NULL DEFAULT FALSE,
  points             DOUBLE PRECISION NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS questions_test_idx ON questions (test_id, question_number);

CREATE TABLE IF NOT EXISTS module_attempts (
  id           TEXT PRIMARY KEY,
  user_id      TEXT NOT NULL,
  test_id      TEXT NOT NULL REFERENCES tests(id),
  module       TEXT NOT NULL,
  status       TEXT NOT NULL,
  progress     JSONB NOT NULL DEFAULT '{}',
  started_at   TIMESTAMPTZ NOT NULL,
  expires_at   TIMESTAMPTZ NOT NULL,
  completed_at TIMESTAMPTZ,
  submitted_at TIMESTAMPTZ,
  time_spent   INTEGER NOT NULL DEFAULT 0,
  score        DOUBLE PRECISION,
  band_score   DOUBLE PRECISION,
  percentage   DOUBLE PRECISION,
  version      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS module_attempts_user_module_idx ON module_attempts (user_id, module, status);

CREATE TABLE IF NOT EXISTS global_sessions (
  id                 TEXT PRIMARY KEY,
  user_id            TEXT NOT NULL,
  module             TEXT NOT NULL,
  module_test_id     TEXT NOT NULL,
  module_attempt_id  TEXT NOT NULL REFERENCES module_attempts(id) DEFERRABLE INITIALLY DEFERRED,
  status             TEXT NOT NULL,
  started_at         TIMESTAMPTZ NOT NULL,
  last_activity_at   TIMESTAMPTZ NOT NULL,
  expires_at         TIMESTAMPTZ NOT NULL,
  time_limit_seconds INTEGER NOT NULL,
  is_active          BOOLEAN NOT NULL DEFAULT TRUE
);

-- one in-flight test per learner across all modules
CREATE UNIQUE INDEX IF NOT EXISTS global_sessions_one_active_per_user
  ON global_sessions (user_id) WHERE is_active;

CREATE INDEX IF NOT EXISTS global_sessions_active_expiry_idx
  ON global_sessions (expires_at) WHERE is_active;

CREATE TABLE IF NOT EXISTS answers (
  id            TEXT PRIMARY KEY,
  attempt_id    TEXT NOT NULL REFERENCES module_attempts(id) ON DELETE CASCADE,
  question_id   TEXT NOT NULL,
  user_answer   TEXT NOT NULL DEFAULT '',
  is_correct    BOOLEAN,
  points_earned DOUBLE PRECISION NOT NULL DEFAULT 0,
  time_spent    INTEGER NOT NULL DEFAULT 0,
  answered_at   TIMESTAMPTZ NOT NULL,
  UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS test_results (
  id                TEXT PRIMARY KEY,
  attempt_id        TEXT NOT NULL UNIQUE REFERENCES module_attempts(id),
  user_id           TEXT NOT NULL,
  test_id           TEXT NOT NULL,
  module            TEXT NOT NULL,
  score             DOUBLE PRECISION NOT NULL,
  total_score       DOUBLE PRECISION NOT NULL,
  band_score        DOUBLE PRECISION NOT NULL,
  percentage        DOUBLE PRECISION NOT NULL,
  correct_answers   INTEGER NOT NULL,
  wrong_answers     INTEGER NOT NULL,
  skipped_answers   INTEGER NOT NULL,
  total_questions   INTEGER NOT NULL,
  time_spent        INTEGER NOT NULL,
  completion_rate   DOUBLE PRECISION NOT NULL,
  time_utilization  DOUBLE PRECISION NOT NULL DEFAULT 0,
  audio_utilization DOUBLE PRECISION,
  breakdown         JSONB NOT NULL,
  ai_feedback       JSONB,
  created_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS test_results_user_module_idx ON test_results (user_id, module, created_at);

CREATE TABLE IF NOT EXISTS performance_analytics (
  user_id                  TEXT NOT NULL,
  module                   TEXT NOT NULL,
  total_tests              INTEGER NOT NULL DEFAULT 0,
  average_band_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
  best_band_score          DOUBLE PRECISION NOT NULL DEFAULT 0,
  latest_band_score        DOUBLE PRECISION NOT NULL DEFAULT 0,
  average_time_spent       DOUBLE PRECISION NOT NULL DEFAULT 0,
  average_percentage       DOUBLE PRECISION NOT NULL DEFAULT 0,
  average_completion_rate  DOUBLE PRECISION NOT NULL DEFAULT 0,
  average_utilization_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
  last_test_at             TIMESTAMPTZ,
  next_allowed_attempt_at  TIMESTAMPTZ,
  updated_at               TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (user_id, module)
);
`
