package cert

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/winbro-training/quizcert/internal/db"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	database, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	// Satisfy the quiz_attempts foreign key for certificate rows.
	_, err = database.ExecContext(context.Background(),
		`INSERT INTO quizzes (id,title,questions_json,passing_threshold,max_attempts,created_at)
		 VALUES ('quiz-1','T','[]',70,3,0)`)
	require.NoError(t, err)
	return NewSQLStore(database)
}

func (s *SQLStore) insertAttemptRow(t *testing.T, attemptID string) {
	t.Helper()
	_, err := s.db.ExecContext(context.Background(), `INSERT INTO quiz_attempts
		(id,user_id,quiz_id,attempt_number,answers_json,passed,passing_threshold,started_at,status)
		VALUES ($1,'u1','quiz-1',
			COALESCE((SELECT MAX(attempt_number) FROM quiz_attempts WHERE user_id='u1' AND quiz_id='quiz-1'),0)+1,
			'[]',TRUE,70,0,'completed')`, attemptID)
	require.NoError(t, err)
}

func testCert(attemptID string) Certificate {
	return Certificate{
		ID:                uuid.NewString(),
		UserID:            "u1",
		QuizAttemptID:     attemptID,
		QuizID:            "quiz-1",
		Number:            "WT-2026-" + uuid.NewString()[:8],
		Title:             "T",
		VerificationToken: uuid.NewString(),
		VerificationURL:   "http://localhost:8080/certificates/verify/x",
		Status:            StatusIssued,
		IssuedAt:          time.Now().Unix(),
	}
}

func TestSQLCertRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.insertAttemptRow(t, "a1")

	c := testCert("a1")
	exp := c.IssuedAt + 3600
	c.ExpiresAt = &exp
	require.NoError(t, s.Insert(ctx, c))

	got, err := s.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.Number, got.Number)
	require.NotNil(t, got.ExpiresAt)
	require.Equal(t, exp, *got.ExpiresAt)

	byAttempt, err := s.ByAttempt(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, c.ID, byAttempt.ID)

	byToken, err := s.ByToken(ctx, c.VerificationToken)
	require.NoError(t, err)
	require.Equal(t, c.ID, byToken.ID)

	_, err = s.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.ByToken(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLCertUniquePerAttempt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.insertAttemptRow(t, "a1")

	require.NoError(t, s.Insert(ctx, testCert("a1")))

	err := s.Insert(ctx, testCert("a1"))
	require.Error(t, err)
	require.True(t, db.IsUniqueViolation(err), "duplicate attempt binding must be a unique violation: %v", err)
}

func TestSQLCertStatusAndLatest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.insertAttemptRow(t, "a1")
	s.insertAttemptRow(t, "a2")
	older := testCert("a1")
	older.IssuedAt -= 1000
	newer := testCert("a2")
	require.NoError(t, s.Insert(ctx, older))
	require.NoError(t, s.Insert(ctx, newer))

	latest, err := s.LatestForUserQuiz(ctx, "u1", "quiz-1")
	require.NoError(t, err)
	require.Equal(t, newer.ID, latest.ID)

	// Revoked certificates are skipped.
	require.NoError(t, s.SetStatus(ctx, newer.ID, StatusRevoked))
	latest, err = s.LatestForUserQuiz(ctx, "u1", "quiz-1")
	require.NoError(t, err)
	require.Equal(t, older.ID, latest.ID)

	list, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.ErrorIs(t, s.SetStatus(ctx, "missing", StatusRevoked), ErrNotFound)
}
