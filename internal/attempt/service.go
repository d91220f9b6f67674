package attempt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/winbro-training/quizcert/internal/cert"
	"github.com/winbro-training/quizcert/internal/event"
	"github.com/winbro-training/quizcert/internal/grading"
	"github.com/winbro-training/quizcert/internal/quiz"
)

// DefaultMaxAttempts applies when a quiz is created without an explicit
// maximum; after creation, max_attempts is always a positive number.
const DefaultMaxAttempts = 3

// EventSink is the durable event record; *event.Log satisfies it.
type EventSink interface {
	Append(ctx context.Context, typ, key string, payload any) error
}

// Page aggregates everything the quiz-certificate page renders in one fetch.
type Page struct {
	Attempt           quiz.Attempt             `json:"quiz_attempt"`
	Certificate       *cert.Certificate        `json:"certificate,omitempty"`
	Feedback          []grading.QuestionResult `json:"feedback"`
	Quiz              quiz.Quiz                `json:"quiz"`
	CanRetake         bool                     `json:"can_retake"`
	MaxAttempts       int                      `json:"max_attempts"`
	RemainingAttempts int                      `json:"remaining_attempts"`
}

// Service orchestrates the attempt lifecycle: start, save, submit, abandon,
// and the certificate decision that follows a passing submission.
type Service struct {
	store  Store
	grader grading.Engine
	certs  *cert.Service
	events EventSink       // nil-safe: offline stores run without a log
	pub    event.Publisher // nil-safe
	now    func() time.Time
}

func NewService(store Store, grader grading.Engine, certs *cert.Service, events EventSink, pub event.Publisher, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, grader: grader, certs: certs, events: events, pub: pub, now: now}
}

// CreateQuiz validates and stores a draft quiz. A published quiz is immutable
// through this path; attempts already reference its captured threshold.
func (s *Service) CreateQuiz(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	} else if existing, err := s.store.GetQuiz(ctx, q.ID); err == nil && existing.Status == quiz.StatusPublished {
		return quiz.Quiz{}, quiz.ErrQuizPublished
	}
	if q.Status == "" {
		q.Status = quiz.StatusDraft
	}
	if q.MaxAttempts <= 0 {
		q.MaxAttempts = DefaultMaxAttempts
	}
	if q.PassingThreshold < 0 || q.PassingThreshold > 100 {
		return quiz.Quiz{}, fmt.Errorf("quiz %s: passing threshold %v out of range", q.ID, q.PassingThreshold)
	}
	for _, qu := range q.Questions {
		if qu.Points <= 0 {
			return quiz.Quiz{}, fmt.Errorf("quiz %s: question %s must have a positive point value", q.ID, qu.ID)
		}
		if qu.CorrectAnswer == nil {
			return quiz.Quiz{}, fmt.Errorf("quiz %s: question %s has no expected answer", q.ID, qu.ID)
		}
	}
	q.CreatedAt = s.now().Unix()
	if err := s.store.PutQuiz(ctx, q); err != nil {
		return quiz.Quiz{}, err
	}
	return q, nil
}

// PublishQuiz makes a draft available to learners. A zero-point quiz is a
// configuration error and is rejected here rather than discovered at scoring.
func (s *Service) PublishQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	q, err := s.store.GetQuiz(ctx, id)
	if err != nil {
		return quiz.Quiz{}, err
	}
	if q.Status == quiz.StatusPublished {
		return q, nil
	}
	if q.MaxScore() == 0 {
		return quiz.Quiz{}, &quiz.DegenerateQuizError{QuizID: id}
	}
	if err := s.store.SetQuizStatus(ctx, id, quiz.StatusPublished); err != nil {
		return quiz.Quiz{}, err
	}
	q.Status = quiz.StatusPublished
	return q, nil
}

// GetQuizForLearner strips answer keys and explanations.
func (s *Service) GetQuizForLearner(ctx context.Context, id string) (quiz.Quiz, error) {
	q, err := s.store.GetQuiz(ctx, id)
	if err != nil {
		return quiz.Quiz{}, err
	}
	return q.LearnerView(), nil
}

// GetQuiz returns the full quiz, answer keys included (instructor surface).
func (s *Service) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	return s.store.GetQuiz(ctx, id)
}

// Start creates a new in-progress attempt, capturing the quiz's current
// passing threshold so later edits never retroactively change this attempt.
func (s *Service) Start(ctx context.Context, userID, quizID, courseID string) (quiz.Attempt, error) {
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return quiz.Attempt{}, err
	}
	if q.Status != quiz.StatusPublished {
		return quiz.Attempt{}, quiz.ErrNotPublished
	}
	prior, err := s.store.CountAttempts(ctx, userID, quizID)
	if err != nil {
		return quiz.Attempt{}, err
	}
	if !CanAttempt(prior, q.MaxAttempts).CanRetake {
		return quiz.Attempt{}, &quiz.AttemptLimitError{UserID: userID, QuizID: quizID, MaxAttempts: q.MaxAttempts}
	}
	if courseID == "" {
		courseID = q.CourseID
	}
	a := quiz.Attempt{
		ID:               uuid.NewString(),
		UserID:           userID,
		QuizID:           quizID,
		CourseID:         courseID,
		Answers:          []quiz.Answer{},
		MaxScore:         q.MaxScore(),
		PassingThreshold: q.PassingThreshold,
		StartedAt:        s.now().Unix(),
		Status:           quiz.AttemptInProgress,
	}
	return s.store.CreateAttempt(ctx, a)
}

func (s *Service) Get(ctx context.Context, attemptID string) (quiz.Attempt, error) {
	return s.store.GetAttempt(ctx, attemptID)
}

func (s *Service) List(ctx context.Context, opts ListOpts) ([]quiz.Attempt, error) {
	return s.store.ListAttempts(ctx, opts)
}

// SaveAnswers replaces the in-progress answer set (autosave).
func (s *Service) SaveAnswers(ctx context.Context, attemptID string, answers []quiz.Answer) (quiz.Attempt, error) {
	return s.store.SaveAnswers(ctx, attemptID, answers)
}

// Abandon terminally closes an in-progress attempt without scoring it. The
// attempt still counts against the quiz's maximum.
func (s *Service) Abandon(ctx context.Context, attemptID string) (quiz.Attempt, error) {
	return s.store.AbandonAttempt(ctx, attemptID)
}

// Submit scores the submission, completes the attempt, persists per-question
// feedback, and runs the certification decision. Submitting an attempt that is
// already completed returns the stored result unchanged.
func (s *Service) Submit(ctx context.Context, attemptID string, answers []quiz.Answer) (quiz.Attempt, cert.Action, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return quiz.Attempt{}, cert.Action{}, err
	}
	q, err := s.store.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return quiz.Attempt{}, cert.Action{}, err
	}

	switch a.Status {
	case quiz.AttemptCompleted:
		action, err := s.certs.Decide(ctx, a, q)
		if err != nil {
			log.Printf("attempt %s: certificate decision: %v", a.ID, err)
			action = cert.Action{Kind: cert.ActionNoAction}
		}
		return a, action, nil
	case quiz.AttemptAbandoned:
		return quiz.Attempt{}, cert.Action{}, quiz.ErrAttemptClosed
	}

	if answers == nil {
		answers = a.Answers // submit whatever was autosaved
	}
	outcome, err := s.grader.Score(q, answers, a.PassingThreshold)
	if err != nil {
		var degenerate *quiz.DegenerateQuizError
		if !errors.As(err, &degenerate) {
			return quiz.Attempt{}, cert.Action{}, err
		}
		// Deterministic failed outcome; the bad quiz slipped past publish.
		log.Printf("attempt %s: %v", a.ID, err)
	}
	for _, m := range outcome.Mismatched {
		log.Printf("attempt %s: %s", a.ID, m)
	}

	completedAt := s.now().Unix()
	spent := completedAt - a.StartedAt
	if spent < 0 {
		spent = 0
	}
	a.Answers = answers
	a.Score = outcome.Score
	a.MaxScore = outcome.MaxScore
	a.Passed = outcome.Passed
	a.Status = quiz.AttemptCompleted
	a.CompletedAt = &completedAt
	a.TimeSpentSeconds = &spent

	if err := s.store.CompleteAttempt(ctx, a, outcome.Results); err != nil {
		if errors.Is(err, quiz.ErrAttemptClosed) {
			// Raced a concurrent submit; serve the winner's result.
			stored, gerr := s.store.GetAttempt(ctx, attemptID)
			if gerr != nil {
				return quiz.Attempt{}, cert.Action{}, gerr
			}
			action, derr := s.certs.Decide(ctx, stored, q)
			if derr != nil {
				action = cert.Action{Kind: cert.ActionNoAction}
			}
			return stored, action, nil
		}
		return quiz.Attempt{}, cert.Action{}, err
	}

	s.emit(ctx, event.AttemptCompleted, a.ID, a)

	action, err := s.certs.Decide(ctx, a, q)
	if err != nil {
		// The attempt is already recorded; issuance can be retried by
		// reloading the certificate page.
		log.Printf("attempt %s: certificate decision: %v", a.ID, err)
		return a, cert.Action{Kind: cert.ActionNoAction}, nil
	}
	if action.Kind == cert.ActionIssued {
		s.emit(ctx, event.CertificateIssued, action.Certificate.ID, action.Certificate)
	}
	return a, action, nil
}

// RevokeCertificate terminally revokes a certificate and records the event.
func (s *Service) RevokeCertificate(ctx context.Context, certID string) (cert.Certificate, error) {
	c, err := s.certs.Revoke(ctx, certID)
	if err != nil {
		return cert.Certificate{}, err
	}
	s.emit(ctx, event.CertificateRevoked, c.ID, c)
	return c, nil
}

// Feedback returns the persisted per-question results for an attempt.
func (s *Service) Feedback(ctx context.Context, attemptID string) ([]grading.QuestionResult, error) {
	return s.store.ListFeedback(ctx, attemptID)
}

// CertificatePage assembles the aggregate the frontend renders after a quiz:
// the attempt, its feedback, the (possibly reissued) certificate, the
// learner-safe quiz, and retake eligibility.
func (s *Service) CertificatePage(ctx context.Context, attemptID string) (Page, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Page{}, err
	}
	q, err := s.store.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return Page{}, err
	}
	fb, err := s.store.ListFeedback(ctx, attemptID)
	if err != nil {
		return Page{}, err
	}
	prior, err := s.store.CountAttempts(ctx, a.UserID, a.QuizID)
	if err != nil {
		return Page{}, err
	}
	retake := CanAttempt(prior, q.MaxAttempts)

	page := Page{
		Attempt:           a,
		Feedback:          fb,
		Quiz:              q.LearnerView(),
		CanRetake:         retake.CanRetake,
		MaxAttempts:       q.MaxAttempts,
		RemainingAttempts: retake.RemainingAttempts,
	}
	if a.Status == quiz.AttemptCompleted && a.Passed {
		action, err := s.certs.Decide(ctx, a, q)
		if err != nil {
			return Page{}, err
		}
		page.Certificate = action.Certificate
		if action.Kind == cert.ActionIssued {
			s.emit(ctx, event.CertificateIssued, action.Certificate.ID, action.Certificate)
		}
	} else {
		// A failed retake does not hide a certificate earned earlier.
		if c, err := s.certs.Latest(ctx, a.UserID, a.QuizID); err == nil {
			page.Certificate = &c
		} else if !errors.Is(err, cert.ErrNotFound) {
			return Page{}, err
		}
	}
	return page, nil
}

func (s *Service) emit(ctx context.Context, typ, key string, payload any) {
	if s.events != nil {
		if err := s.events.Append(ctx, typ, key, payload); err != nil {
			log.Printf("event log %s %s: %v", typ, key, err)
		}
	}
	if s.pub != nil {
		if err := s.pub.Publish(typ, key, payload); err != nil {
			log.Printf("event publish %s %s: %v", typ, key, err)
		}
	}
}
