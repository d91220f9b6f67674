package quiz

import (
	"errors"
	"fmt"
)

var (
	ErrQuizNotFound    = errors.New("quiz not found")
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrNotPublished    = errors.New("quiz is not published")
	ErrQuizPublished   = errors.New("quiz is already published")
	ErrAttemptClosed   = errors.New("attempt is not in progress")
)

// InputMismatchError marks a submitted answer that does not belong to the
// question being evaluated: foreign question id or a value of the wrong shape.
// Scoring treats the answer as absent; the mismatch is surfaced for logging.
type InputMismatchError struct {
	QuestionID string
	Got        string // what the submission carried (question id or type)
	Reason     string
}

func (e *InputMismatchError) Error() string {
	return fmt.Sprintf("input mismatch on question %s: %s (got %s)", e.QuestionID, e.Reason, e.Got)
}

// AttemptLimitError rejects starting an attempt beyond the quiz's maximum.
type AttemptLimitError struct {
	UserID      string
	QuizID      string
	MaxAttempts int
}

func (e *AttemptLimitError) Error() string {
	return fmt.Sprintf("attempt limit exceeded for user %s on quiz %s (max %d)", e.UserID, e.QuizID, e.MaxAttempts)
}

// DegenerateQuizError flags a quiz whose questions sum to zero points. Scoring
// still returns a deterministic failed outcome; publishing rejects it outright.
type DegenerateQuizError struct {
	QuizID string
}

func (e *DegenerateQuizError) Error() string {
	return fmt.Sprintf("quiz %s has zero total points", e.QuizID)
}
