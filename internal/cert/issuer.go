package cert

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/winbro-training/quizcert/internal/db"
	"github.com/winbro-training/quizcert/internal/quiz"
)

const issueRetries = 3

// Service makes certification decisions and answers verification lookups.
type Service struct {
	store   Store
	baseURL string
	now     func() time.Time
}

func NewService(store Store, baseURL string, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, baseURL: strings.TrimSuffix(baseURL, "/"), now: now}
}

// Decide evaluates a completed attempt. Only a completed, passed attempt
// triggers issuance; a certificate already bound to this attempt id resolves
// as AlreadyIssued so resubmitting or reloading never duplicates certificates.
func (s *Service) Decide(ctx context.Context, a quiz.Attempt, qz quiz.Quiz) (Action, error) {
	if a.Status != quiz.AttemptCompleted || !a.Passed {
		return Action{Kind: ActionNoAction}, nil
	}
	existing, err := s.store.ByAttempt(ctx, a.ID)
	if err == nil {
		return Action{Kind: ActionAlreadyIssued, Certificate: &existing}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Action{}, err
	}

	issuedAt := s.now()
	c := Certificate{
		ID:            uuid.NewString(),
		UserID:        a.UserID,
		QuizAttemptID: a.ID,
		QuizID:        a.QuizID,
		CourseID:      a.CourseID,
		Title:         qz.Title,
		Status:        StatusIssued,
		IssuedAt:      issuedAt.Unix(),
	}
	if qz.ValidityDays > 0 {
		exp := issuedAt.AddDate(0, 0, qz.ValidityDays).Unix()
		c.ExpiresAt = &exp
	}

	// Number and token collisions surface as unique violations just like a
	// racing duplicate issuance; after each violation, re-check the attempt
	// binding before retrying with fresh values.
	for i := 0; i < issueRetries; i++ {
		c.Number = newNumber(issuedAt)
		tok, err := newToken()
		if err != nil {
			return Action{}, err
		}
		c.VerificationToken = tok
		c.VerificationURL = s.baseURL + "/certificates/verify/" + tok

		err = s.store.Insert(ctx, c)
		if err == nil {
			return Action{Kind: ActionIssued, Certificate: &c}, nil
		}
		if !db.IsUniqueViolation(err) && !errors.Is(err, ErrDuplicate) {
			return Action{}, err
		}
		if existing, lookupErr := s.store.ByAttempt(ctx, a.ID); lookupErr == nil {
			return Action{Kind: ActionAlreadyIssued, Certificate: &existing}, nil
		}
	}
	return Action{}, fmt.Errorf("issue certificate for attempt %s: could not allocate unique number/token", a.ID)
}

// Latest returns the newest non-revoked certificate for the (user, quiz)
// pair, or ErrNotFound. Later passing attempts supersede earlier certificates
// without deleting them; this lookup resolves the authoritative one.
func (s *Service) Latest(ctx context.Context, userID, quizID string) (Certificate, error) {
	return s.store.LatestForUserQuiz(ctx, userID, quizID)
}

// Revoke is terminal: a revoked certificate never verifies again.
func (s *Service) Revoke(ctx context.Context, id string) (Certificate, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Certificate{}, err
	}
	if c.Status == StatusRevoked {
		return c, nil
	}
	if err := s.store.SetStatus(ctx, id, StatusRevoked); err != nil {
		return Certificate{}, err
	}
	c.Status = StatusRevoked
	return c, nil
}

var certNumberEnc = base32.StdEncoding.WithPadding(base32.NoPadding)

// newNumber produces a human-quotable certificate number, e.g. WT-2026-A7K2M9QX.
// Uniqueness is enforced by the store, not by this generator alone.
func newNumber(t time.Time) string {
	var b [5]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("WT-%d-%s", t.Year(), certNumberEnc.EncodeToString(b[:]))
}

// newToken returns 32 bytes of CSPRNG output, hex-encoded. Opaque and
// unguessable; verification does exact-match lookup only.
func newToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
