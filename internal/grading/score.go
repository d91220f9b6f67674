package grading

import "github.com/winbro-training/quizcert/internal/quiz"

// Outcome aggregates per-question results for one submission.
type Outcome struct {
	Results  []QuestionResult `json:"results"`
	Score    int              `json:"score"`
	MaxScore int              `json:"max_score"`
	Passed   bool             `json:"passed"`

	// Mismatched collects input-mismatch descriptions (foreign question ids,
	// wrong value shapes). The offending answers were treated as absent; the
	// orchestration layer logs these for operator visibility.
	Mismatched []string `json:"-"`
}

// Score iterates every question in the quiz, not every submitted answer, so a
// submission always yields exactly one result per question. Answers referencing
// unknown question ids are ignored. The pass decision uses the exact ratio with
// the threshold captured on the attempt; an all-zero-points quiz yields a
// deterministic failed outcome together with a DegenerateQuizError.
func (e *engine) Score(qz quiz.Quiz, answers []quiz.Answer, threshold float64) (Outcome, error) {
	questions := qz.Questions
	byID := make(map[string]*quiz.Answer, len(answers))
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}

	var out Outcome
	for i := range answers {
		a := &answers[i]
		if !known[a.QuestionID] {
			out.Mismatched = append(out.Mismatched, "answer for unknown question "+a.QuestionID)
			continue
		}
		byID[a.QuestionID] = a
	}

	out.Results = make([]QuestionResult, 0, len(questions))
	for _, q := range questions {
		res, err := e.Evaluate(q, byID[q.ID])
		if err != nil {
			// Recovered locally: the answer counts as absent.
			out.Mismatched = append(out.Mismatched, err.Error())
			res, _ = e.Evaluate(q, nil)
		}
		out.Results = append(out.Results, res)
		out.Score += res.PointsAwarded
		out.MaxScore += res.MaxPoints
	}

	if out.MaxScore == 0 {
		out.Passed = false
		return out, &quiz.DegenerateQuizError{QuizID: qz.ID}
	}
	// Unrounded ratio: rounding the display percentage must not flip a fail
	// into a pass at the boundary.
	out.Passed = float64(100*out.Score) >= threshold*float64(out.MaxScore)
	return out, nil
}

// Percent is the display percentage, rounded half-up to the nearest integer.
func Percent(score, maxScore int) int {
	if maxScore <= 0 {
		return 0
	}
	return (200*score + maxScore) / (2 * maxScore)
}
