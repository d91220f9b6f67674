package quiz

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeShortAnswer    QuestionType = "short_answer"
	TypeTrueFalse      QuestionType = "true_false"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

type Question struct {
	ID                string       `json:"id"`
	Text              string       `json:"question_text"`
	Type              QuestionType `json:"question_type"`
	Options           []string     `json:"options,omitempty"` // multiple_choice only
	CorrectAnswer     *Answer      `json:"correct_answer,omitempty"`
	Explanation       string       `json:"explanation,omitempty"`
	Points            int          `json:"points"`
	RemediationClipID string       `json:"remediation_clip_id,omitempty"`
}

type Quiz struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	CourseID         string     `json:"course_id,omitempty"`
	Questions        []Question `json:"questions"`
	PassingThreshold float64    `json:"passing_threshold"` // percentage, e.g. 70
	MaxAttempts      int        `json:"max_attempts"`
	TimeLimitMinutes int        `json:"time_limit_minutes,omitempty"`
	// ValidityDays > 0 makes certificates issued for this quiz expire.
	ValidityDays int    `json:"validity_days,omitempty"`
	Status       Status `json:"status"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

// MaxScore is the sum of all question point values.
func (q Quiz) MaxScore() int {
	total := 0
	for _, qu := range q.Questions {
		total += qu.Points
	}
	return total
}

// LearnerView returns a copy safe to serve to learners: answer keys and
// explanations are stripped (parity across memory and SQL stores).
func (q Quiz) LearnerView() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, qu := range q.Questions {
		qu.CorrectAnswer = nil
		qu.Explanation = ""
		out.Questions[i] = qu
	}
	return out
}

type Attempt struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	QuizID           string        `json:"quiz_id"`
	CourseID         string        `json:"course_id,omitempty"`
	AttemptNumber    int           `json:"attempt_number"`
	Answers          []Answer      `json:"answers"`
	Score            int           `json:"score"`
	MaxScore         int           `json:"max_score"`
	Passed           bool          `json:"passed"`
	PassingThreshold float64       `json:"passing_threshold"` // captured at creation
	StartedAt        int64         `json:"started_at"`
	CompletedAt      *int64        `json:"completed_at,omitempty"`
	TimeSpentSeconds *int64        `json:"time_spent_seconds,omitempty"`
	Status           AttemptStatus `json:"status"`
}
