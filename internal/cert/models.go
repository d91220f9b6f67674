package cert

import (
	"context"
	"errors"
)

type Status string

const (
	StatusIssued  Status = "issued"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

// Certificate is a verifiable artifact asserting that a learner passed a
// specific quiz attempt. The verification token is the only handle exposed
// publicly; internal ids never appear in verification URLs.
type Certificate struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	QuizAttemptID     string `json:"quiz_attempt_id"`
	QuizID            string `json:"quiz_id"`
	CourseID          string `json:"course_id,omitempty"`
	Number            string `json:"certificate_number"`
	Title             string `json:"title"`
	VerificationToken string `json:"verification_token"`
	VerificationURL   string `json:"verification_url"`
	Status            Status `json:"status"`
	IssuedAt          int64  `json:"issued_at"`
	ExpiresAt         *int64 `json:"expires_at,omitempty"`
}

type ActionKind string

const (
	ActionIssued        ActionKind = "issued"
	ActionNoAction      ActionKind = "no_action"
	ActionAlreadyIssued ActionKind = "already_issued"
)

// Action is the result of a certification decision for a completed attempt.
type Action struct {
	Kind        ActionKind   `json:"kind"`
	Certificate *Certificate `json:"certificate,omitempty"`
}

var ErrNotFound = errors.New("certificate not found")

type Store interface {
	Insert(ctx context.Context, c Certificate) error
	GetByID(ctx context.Context, id string) (Certificate, error)
	ByAttempt(ctx context.Context, attemptID string) (Certificate, error)
	ByToken(ctx context.Context, token string) (Certificate, error)
	ListByUser(ctx context.Context, userID string) ([]Certificate, error)
	// LatestForUserQuiz returns the newest non-revoked certificate for the
	// (user, quiz) pair; reissuing on a later passing attempt supersedes prior
	// ones without deleting them.
	LatestForUserQuiz(ctx context.Context, userID, quizID string) (Certificate, error)
	SetStatus(ctx context.Context, id string, st Status) error
}
