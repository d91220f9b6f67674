package attempt

import (
	"context"

	"github.com/winbro-training/quizcert/internal/grading"
	"github.com/winbro-training/quizcert/internal/quiz"
)

type ListOpts struct {
	QuizID string
	UserID string
	Status string // optional: in_progress|completed|abandoned
	Limit  int
	Offset int
}

type Store interface {
	PutQuiz(ctx context.Context, q quiz.Quiz) error
	// GetQuiz returns the full quiz, answer keys included. Callers serving
	// learners must use Quiz.LearnerView.
	GetQuiz(ctx context.Context, id string) (quiz.Quiz, error)
	SetQuizStatus(ctx context.Context, id string, st quiz.Status) error

	// CreateAttempt persists the attempt and allocates its attempt number:
	// max(existing)+1 per (user, quiz), gap-free and unique even under
	// concurrent starts.
	CreateAttempt(ctx context.Context, a quiz.Attempt) (quiz.Attempt, error)
	GetAttempt(ctx context.Context, id string) (quiz.Attempt, error)
	ListAttempts(ctx context.Context, opts ListOpts) ([]quiz.Attempt, error)
	CountAttempts(ctx context.Context, userID, quizID string) (int, error)

	SaveAnswers(ctx context.Context, attemptID string, answers []quiz.Answer) (quiz.Attempt, error)
	// CompleteAttempt records the scored attempt and its per-question feedback
	// in one transaction. The attempt must still be in_progress.
	CompleteAttempt(ctx context.Context, a quiz.Attempt, feedback []grading.QuestionResult) error
	AbandonAttempt(ctx context.Context, attemptID string) (quiz.Attempt, error)

	ListFeedback(ctx context.Context, attemptID string) ([]grading.QuestionResult, error)
}
