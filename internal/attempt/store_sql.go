package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/winbro-training/quizcert/internal/db"
	"github.com/winbro-training/quizcert/internal/grading"
	"github.com/winbro-training/quizcert/internal/quiz"
)

// createRetries bounds the attempt-number race loop: a concurrent start makes
// the UNIQUE(user_id, quiz_id, attempt_number) insert fail and we re-read the
// max. Contention is per learner, so a couple of retries is plenty.
const createRetries = 5

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(database *sql.DB) *SQLStore { return &SQLStore{db: database} }

func (s *SQLStore) PutQuiz(ctx context.Context, q quiz.Quiz) error {
	qj, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	if q.CreatedAt == 0 {
		q.CreatedAt = time.Now().Unix()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes
		(id,title,description,course_id,questions_json,passing_threshold,max_attempts,time_limit_minutes,validity_days,status,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
		  title=EXCLUDED.title, description=EXCLUDED.description, course_id=EXCLUDED.course_id,
		  questions_json=EXCLUDED.questions_json, passing_threshold=EXCLUDED.passing_threshold,
		  max_attempts=EXCLUDED.max_attempts, time_limit_minutes=EXCLUDED.time_limit_minutes,
		  validity_days=EXCLUDED.validity_days, status=EXCLUDED.status`,
		q.ID, q.Title, q.Description, q.CourseID, string(qj), q.PassingThreshold,
		q.MaxAttempts, q.TimeLimitMinutes, q.ValidityDays, string(q.Status), q.CreatedAt)
	return err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,description,course_id,questions_json,
		passing_threshold,max_attempts,time_limit_minutes,validity_days,status,created_at
		FROM quizzes WHERE id=$1`, id)
	var q quiz.Quiz
	var qjson, status string
	err := row.Scan(&q.ID, &q.Title, &q.Description, &q.CourseID, &qjson,
		&q.PassingThreshold, &q.MaxAttempts, &q.TimeLimitMinutes, &q.ValidityDays, &status, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	if err != nil {
		return quiz.Quiz{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &q.Questions); err != nil {
		return quiz.Quiz{}, fmt.Errorf("quiz %s: decode questions: %w", id, err)
	}
	q.Status = quiz.Status(status)
	return q, nil
}

func (s *SQLStore) SetQuizStatus(ctx context.Context, id string, st quiz.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE quizzes SET status=$1 WHERE id=$2`, string(st), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return quiz.ErrQuizNotFound
	}
	return nil
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	if a.Answers == nil {
		a.Answers = []quiz.Answer{}
	}
	aj, err := json.Marshal(a.Answers)
	if err != nil {
		return quiz.Attempt{}, err
	}
	for i := 0; i < createRetries; i++ {
		var next int
		err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(attempt_number),0)+1 FROM quiz_attempts WHERE user_id=$1 AND quiz_id=$2`,
			a.UserID, a.QuizID).Scan(&next)
		if err != nil {
			return quiz.Attempt{}, err
		}
		a.AttemptNumber = next
		_, err = s.db.ExecContext(ctx, `INSERT INTO quiz_attempts
			(id,user_id,quiz_id,course_id,attempt_number,answers_json,score,max_score,passed,passing_threshold,started_at,status)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			a.ID, a.UserID, a.QuizID, a.CourseID, a.AttemptNumber, string(aj),
			a.Score, a.MaxScore, a.Passed, a.PassingThreshold, a.StartedAt, string(a.Status))
		if err == nil {
			return a, nil
		}
		if db.IsUniqueViolation(err) {
			continue // raced another start; re-read the max
		}
		return quiz.Attempt{}, err
	}
	return quiz.Attempt{}, fmt.Errorf("create attempt for user %s quiz %s: number allocation kept racing", a.UserID, a.QuizID)
}

const attemptColumns = `id,user_id,quiz_id,course_id,attempt_number,answers_json,score,max_score,passed,passing_threshold,started_at,completed_at,time_spent_seconds,status`

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (quiz.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	return a, err
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts ListOpts) ([]quiz.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM quiz_attempts WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND %s=$%d", cond, len(args))
	}
	if opts.QuizID != "" {
		add("quiz_id", opts.QuizID)
	}
	if opts.UserID != "" {
		add("user_id", opts.UserID)
	}
	if opts.Status != "" {
		add("status", opts.Status)
	}
	query += " ORDER BY started_at DESC, attempt_number DESC"
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []quiz.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountAttempts(ctx context.Context, userID, quizID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quiz_attempts WHERE user_id=$1 AND quiz_id=$2`, userID, quizID).Scan(&n)
	return n, err
}

func (s *SQLStore) SaveAnswers(ctx context.Context, attemptID string, answers []quiz.Answer) (quiz.Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return quiz.Attempt{}, err
	}
	if a.Status != quiz.AttemptInProgress {
		return quiz.Attempt{}, quiz.ErrAttemptClosed
	}
	aj, err := json.Marshal(answers)
	if err != nil {
		return quiz.Attempt{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE quiz_attempts SET answers_json=$1 WHERE id=$2 AND status=$3`,
		string(aj), attemptID, string(quiz.AttemptInProgress))
	if err != nil {
		return quiz.Attempt{}, err
	}
	return s.GetAttempt(ctx, attemptID)
}

func (s *SQLStore) CompleteAttempt(ctx context.Context, a quiz.Attempt, feedback []grading.QuestionResult) error {
	aj, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE quiz_attempts
		SET answers_json=$1, score=$2, max_score=$3, passed=$4, completed_at=$5, time_spent_seconds=$6, status=$7
		WHERE id=$8 AND status=$9`,
		string(aj), a.Score, a.MaxScore, a.Passed, a.CompletedAt, a.TimeSpentSeconds,
		string(quiz.AttemptCompleted), a.ID, string(quiz.AttemptInProgress))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either missing or no longer in progress; let the caller re-read.
		if _, err := s.GetAttempt(ctx, a.ID); err != nil {
			return err
		}
		return quiz.ErrAttemptClosed
	}

	now := time.Now().Unix()
	for _, fb := range feedback {
		uj, err := marshalNullable(fb.UserAnswer)
		if err != nil {
			return err
		}
		cj, err := marshalNullable(fb.CorrectAnswer)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO quiz_feedback
			(id,quiz_attempt_id,question_id,question_text,question_type,user_answer_json,correct_answer_json,
			 is_correct,explanation,remediation_clip_id,points_awarded,max_points,created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (quiz_attempt_id, question_id) DO NOTHING`,
			uuid.NewString(), a.ID, fb.QuestionID, fb.QuestionText, string(fb.QuestionType), uj, cj,
			fb.IsCorrect, fb.Explanation, fb.RemediationClipID, fb.PointsAwarded, fb.MaxPoints, now)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) AbandonAttempt(ctx context.Context, attemptID string) (quiz.Attempt, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE quiz_attempts SET status=$1 WHERE id=$2 AND status=$3`,
		string(quiz.AttemptAbandoned), attemptID, string(quiz.AttemptInProgress))
	if err != nil {
		return quiz.Attempt{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := s.GetAttempt(ctx, attemptID); err != nil {
			return quiz.Attempt{}, err
		}
		return quiz.Attempt{}, quiz.ErrAttemptClosed
	}
	return s.GetAttempt(ctx, attemptID)
}

func (s *SQLStore) ListFeedback(ctx context.Context, attemptID string) ([]grading.QuestionResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question_id,question_text,question_type,
		user_answer_json,correct_answer_json,is_correct,explanation,remediation_clip_id,points_awarded,max_points
		FROM quiz_feedback WHERE quiz_attempt_id=$1 ORDER BY created_at, question_id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []grading.QuestionResult
	for rows.Next() {
		var fb grading.QuestionResult
		var qtype string
		var uj, cj sql.NullString
		if err := rows.Scan(&fb.QuestionID, &fb.QuestionText, &qtype, &uj, &cj,
			&fb.IsCorrect, &fb.Explanation, &fb.RemediationClipID, &fb.PointsAwarded, &fb.MaxPoints); err != nil {
			return nil, err
		}
		fb.QuestionType = quiz.QuestionType(qtype)
		if fb.UserAnswer, err = unmarshalNullable(uj); err != nil {
			return nil, err
		}
		if fb.CorrectAnswer, err = unmarshalNullable(cj); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(r rowScanner) (quiz.Attempt, error) {
	var a quiz.Attempt
	var ajson, status string
	var completed, spent sql.NullInt64
	err := r.Scan(&a.ID, &a.UserID, &a.QuizID, &a.CourseID, &a.AttemptNumber, &ajson,
		&a.Score, &a.MaxScore, &a.Passed, &a.PassingThreshold, &a.StartedAt, &completed, &spent, &status)
	if err != nil {
		return quiz.Attempt{}, err
	}
	if err := json.Unmarshal([]byte(ajson), &a.Answers); err != nil {
		a.Answers = []quiz.Answer{}
	}
	if completed.Valid {
		a.CompletedAt = &completed.Int64
	}
	if spent.Valid {
		a.TimeSpentSeconds = &spent.Int64
	}
	a.Status = quiz.AttemptStatus(status)
	return a, nil
}

func marshalNullable(a *quiz.Answer) (any, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalNullable(s sql.NullString) (*quiz.Answer, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var a quiz.Answer
	if err := json.Unmarshal([]byte(s.String), &a); err != nil {
		return nil, err
	}
	return &a, nil
}
