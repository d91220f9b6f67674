package cert

import (
	"context"
	"database/sql"
	"errors"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const certColumns = `id,user_id,quiz_attempt_id,quiz_id,course_id,certificate_number,title,verification_token,verification_url,status,issued_at,expires_at`

func (s *SQLStore) Insert(ctx context.Context, c Certificate) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO certificates (`+certColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		c.ID, c.UserID, c.QuizAttemptID, c.QuizID, c.CourseID, c.Number, c.Title,
		c.VerificationToken, c.VerificationURL, string(c.Status), c.IssuedAt, c.ExpiresAt)
	return err
}

func (s *SQLStore) GetByID(ctx context.Context, id string) (Certificate, error) {
	return s.one(ctx, `SELECT `+certColumns+` FROM certificates WHERE id=$1`, id)
}

func (s *SQLStore) ByAttempt(ctx context.Context, attemptID string) (Certificate, error) {
	return s.one(ctx, `SELECT `+certColumns+` FROM certificates WHERE quiz_attempt_id=$1`, attemptID)
}

func (s *SQLStore) ByToken(ctx context.Context, token string) (Certificate, error) {
	return s.one(ctx, `SELECT `+certColumns+` FROM certificates WHERE verification_token=$1`, token)
}

func (s *SQLStore) LatestForUserQuiz(ctx context.Context, userID, quizID string) (Certificate, error) {
	return s.one(ctx, `SELECT `+certColumns+` FROM certificates
		WHERE user_id=$1 AND quiz_id=$2 AND status<>'revoked'
		ORDER BY issued_at DESC LIMIT 1`, userID, quizID)
}

func (s *SQLStore) ListByUser(ctx context.Context, userID string) ([]Certificate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+certColumns+` FROM certificates
		WHERE user_id=$1 ORDER BY issued_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Certificate
	for rows.Next() {
		c, err := scanCert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetStatus(ctx context.Context, id string, st Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE certificates SET status=$1 WHERE id=$2`, string(st), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) one(ctx context.Context, query string, args ...any) (Certificate, error) {
	c, err := scanCert(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Certificate{}, ErrNotFound
	}
	return c, err
}

func scanCert(r rowScanner) (Certificate, error) {
	var c Certificate
	var status string
	var expires sql.NullInt64
	err := r.Scan(&c.ID, &c.UserID, &c.QuizAttemptID, &c.QuizID, &c.CourseID, &c.Number,
		&c.Title, &c.VerificationToken, &c.VerificationURL, &status, &c.IssuedAt, &expires)
	if err != nil {
		return Certificate{}, err
	}
	c.Status = Status(status)
	if expires.Valid {
		c.ExpiresAt = &expires.Int64
	}
	return c, nil
}
