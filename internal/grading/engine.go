package grading

import (
	"strings"

	"github.com/winbro-training/quizcert/internal/quiz"
)

// QuestionResult is the outcome of evaluating one question against the
// learner's submission. Derived data: produced fresh on every scoring pass and
// persisted as a feedback record, never read back as input.
type QuestionResult struct {
	QuestionID        string            `json:"question_id"`
	QuestionText      string            `json:"question_text"`
	QuestionType      quiz.QuestionType `json:"question_type"`
	UserAnswer        *quiz.Answer      `json:"user_answer,omitempty"`
	CorrectAnswer     *quiz.Answer      `json:"correct_answer,omitempty"`
	IsCorrect         bool              `json:"is_correct"`
	Explanation       string            `json:"explanation,omitempty"`
	RemediationClipID string            `json:"remediation_clip_id,omitempty"`
	PointsAwarded     int               `json:"points_awarded"`
	MaxPoints         int               `json:"max_points"`
}

// Engine evaluates single answers and scores whole submissions.
type Engine interface {
	Evaluate(q quiz.Question, a *quiz.Answer) (QuestionResult, error)
	Score(qz quiz.Quiz, answers []quiz.Answer, threshold float64) (Outcome, error)
}

// strategy decides correctness for one question type.
type strategy interface {
	correct(q quiz.Question, a quiz.Answer) bool
}

type engine struct {
	strategies map[quiz.QuestionType]strategy
}

type config struct {
	CaseSensitiveText bool
}

type Option func(*config)

// WithCaseSensitiveText disables case folding for short answers. Whitespace
// normalization still applies.
func WithCaseSensitiveText(b bool) Option { return func(c *config) { c.CaseSensitiveText = b } }

// NewEngine installs the built-in per-type strategies.
func NewEngine(opts ...Option) Engine {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	return &engine{
		strategies: map[quiz.QuestionType]strategy{
			quiz.TypeMultipleChoice: choiceStrategy{},
			quiz.TypeTrueFalse:      boolStrategy{},
			quiz.TypeShortAnswer:    textStrategy{caseSensitive: cfg.CaseSensitiveText},
		},
	}
}

// Evaluate compares one submitted answer to the question's expected answer.
// A nil answer (the learner skipped the question) is incorrect with zero
// points, never an error. A mismatched question id or answer type returns an
// InputMismatchError along with a zero-point result so the caller can keep
// scoring the rest of the submission.
func (e *engine) Evaluate(q quiz.Question, a *quiz.Answer) (QuestionResult, error) {
	res := QuestionResult{
		QuestionID:        q.ID,
		QuestionText:      q.Text,
		QuestionType:      q.Type,
		CorrectAnswer:     q.CorrectAnswer,
		Explanation:       q.Explanation,
		RemediationClipID: q.RemediationClipID,
		MaxPoints:         q.Points,
	}
	if a == nil {
		return res, nil
	}
	res.UserAnswer = a
	if a.QuestionID != q.ID {
		return res, &quiz.InputMismatchError{QuestionID: q.ID, Got: a.QuestionID, Reason: "answer references a different question"}
	}
	if a.Type != q.Type {
		return res, &quiz.InputMismatchError{QuestionID: q.ID, Got: string(a.Type), Reason: "answer type does not match question type"}
	}
	s, ok := e.strategies[q.Type]
	if !ok {
		return res, &quiz.InputMismatchError{QuestionID: q.ID, Got: string(q.Type), Reason: "unknown question type"}
	}
	if q.CorrectAnswer != nil && s.correct(q, *a) {
		res.IsCorrect = true
		res.PointsAwarded = q.Points
	}
	return res, nil
}

type choiceStrategy struct{}

func (choiceStrategy) correct(q quiz.Question, a quiz.Answer) bool {
	key := q.CorrectAnswer
	return a.Selected != nil && key.Selected != nil && *a.Selected == *key.Selected
}

type boolStrategy struct{}

func (boolStrategy) correct(q quiz.Question, a quiz.Answer) bool {
	key := q.CorrectAnswer
	return a.Bool != nil && key.Bool != nil && *a.Bool == *key.Bool
}

type textStrategy struct{ caseSensitive bool }

func (s textStrategy) correct(q quiz.Question, a quiz.Answer) bool {
	return normalize(a.Text, s.caseSensitive) == normalize(q.CorrectAnswer.Text, s.caseSensitive)
}

// normalize trims surrounding whitespace and collapses internal runs to a
// single space; unless caseSensitive, the result is also lowercased.
func normalize(s string, caseSensitive bool) string {
	out := strings.Join(strings.Fields(s), " ")
	if !caseSensitive {
		out = strings.ToLower(out)
	}
	return out
}
