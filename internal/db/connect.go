package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"modernc.org/sqlite"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:quizcert.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/quizcert?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

// IsUniqueViolation reports whether err is a unique-constraint violation from
// either driver. Attempt-number allocation and certificate issuance rely on
// this to resolve races (retry with a fresh number / report AlreadyIssued).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code()&0xff == 19 // SQLITE_CONSTRAINT and extended codes
	}
	return false
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'learner'
);

CREATE TABLE IF NOT EXISTS quizzes (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  course_id TEXT NOT NULL DEFAULT '',
  questions_json TEXT NOT NULL,
  passing_threshold REAL NOT NULL,
  max_attempts INTEGER NOT NULL,
  time_limit_minutes INTEGER NOT NULL DEFAULT 0,
  validity_days INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'draft',
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id),
  course_id TEXT NOT NULL DEFAULT '',
  attempt_number INTEGER NOT NULL,
  answers_json TEXT NOT NULL,
  score INTEGER NOT NULL DEFAULT 0,
  max_score INTEGER NOT NULL DEFAULT 0,
  passed INTEGER NOT NULL DEFAULT 0,
  passing_threshold REAL NOT NULL,
  started_at INTEGER NOT NULL,
  completed_at INTEGER,
  time_spent_seconds INTEGER,
  status TEXT NOT NULL,
  UNIQUE (user_id, quiz_id, attempt_number)
);

CREATE TABLE IF NOT EXISTS quiz_feedback (
  id TEXT PRIMARY KEY,
  quiz_attempt_id TEXT NOT NULL REFERENCES quiz_attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  question_text TEXT NOT NULL,
  question_type TEXT NOT NULL,
  user_answer_json TEXT,
  correct_answer_json TEXT,
  is_correct INTEGER NOT NULL,
  explanation TEXT NOT NULL DEFAULT '',
  remediation_clip_id TEXT NOT NULL DEFAULT '',
  points_awarded INTEGER NOT NULL,
  max_points INTEGER NOT NULL,
  created_at INTEGER NOT NULL,
  UNIQUE (quiz_attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS certificates (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  quiz_attempt_id TEXT NOT NULL UNIQUE REFERENCES quiz_attempts(id),
  quiz_id TEXT NOT NULL,
  course_id TEXT NOT NULL DEFAULT '',
  certificate_number TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  verification_token TEXT NOT NULL UNIQUE,
  verification_url TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'issued',
  issued_at INTEGER NOT NULL,
  expires_at INTEGER
);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                         -- e.g., attempt.completed
  key TEXT NOT NULL,                         -- natural key: attempt or certificate id
  data TEXT NOT NULL,                        -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'learner'
);

CREATE TABLE IF NOT EXISTS quizzes (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  course_id TEXT NOT NULL DEFAULT '',
  questions_json TEXT NOT NULL,
  passing_threshold DOUBLE PRECISION NOT NULL,
  max_attempts INTEGER NOT NULL,
  time_limit_minutes INTEGER NOT NULL DEFAULT 0,
  validity_days INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'draft',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id),
  course_id TEXT NOT NULL DEFAULT '',
  attempt_number INTEGER NOT NULL,
  answers_json TEXT NOT NULL,
  score INTEGER NOT NULL DEFAULT 0,
  max_score INTEGER NOT NULL DEFAULT 0,
  passed BOOLEAN NOT NULL DEFAULT FALSE,
  passing_threshold DOUBLE PRECISION NOT NULL,
  started_at BIGINT NOT NULL,
  completed_at BIGINT,
  time_spent_seconds BIGINT,
  status TEXT NOT NULL,
  UNIQUE (user_id, quiz_id, attempt_number)
);

CREATE TABLE IF NOT EXISTS quiz_feedback (
  id TEXT PRIMARY KEY,
  quiz_attempt_id TEXT NOT NULL REFERENCES quiz_attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  question_text TEXT NOT NULL,
  question_type TEXT NOT NULL,
  user_answer_json TEXT,
  correct_answer_json TEXT,
  is_correct BOOLEAN NOT NULL,
  explanation TEXT NOT NULL DEFAULT '',
  remediation_clip_id TEXT NOT NULL DEFAULT '',
  points_awarded INTEGER NOT NULL,
  max_points INTEGER NOT NULL,
  created_at BIGINT NOT NULL,
  UNIQUE (quiz_attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS certificates (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  quiz_attempt_id TEXT NOT NULL UNIQUE REFERENCES quiz_attempts(id),
  quiz_id TEXT NOT NULL,
  course_id TEXT NOT NULL DEFAULT '',
  certificate_number TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  verification_token TEXT NOT NULL UNIQUE,
  verification_url TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'issued',
  issued_at BIGINT NOT NULL,
  expires_at BIGINT
);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
