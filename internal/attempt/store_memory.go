package attempt

import (
	"context"
	"sort"
	"sync"

	"github.com/winbro-training/quizcert/internal/grading"
	"github.com/winbro-training/quizcert/internal/quiz"
)

type memoryStore struct {
	mu       sync.RWMutex
	quizzes  map[string]quiz.Quiz
	attempts map[string]quiz.Attempt
	feedback map[string][]grading.QuestionResult // attempt id -> results
}

// NewInMemoryStore backs the offline mode and tests. Attempt-number
// allocation is serialized under the mutex, matching the SQL store's
// unique-constraint guarantee.
func NewInMemoryStore() Store {
	return &memoryStore{
		quizzes:  map[string]quiz.Quiz{},
		attempts: map[string]quiz.Attempt{},
		feedback: map[string][]grading.QuestionResult{},
	}
}

func (m *memoryStore) PutQuiz(_ context.Context, q quiz.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = q
	return nil
}

func (m *memoryStore) GetQuiz(_ context.Context, id string) (quiz.Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	return q, nil
}

func (m *memoryStore) SetQuizStatus(_ context.Context, id string, st quiz.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return quiz.ErrQuizNotFound
	}
	q.Status = st
	m.quizzes[id] = q
	return nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[a.QuizID]; !ok {
		return quiz.Attempt{}, quiz.ErrQuizNotFound
	}
	next := 0
	for _, existing := range m.attempts {
		if existing.UserID == a.UserID && existing.QuizID == a.QuizID && existing.AttemptNumber > next {
			next = existing.AttemptNumber
		}
	}
	a.AttemptNumber = next + 1
	if a.Answers == nil {
		a.Answers = []quiz.Answer{}
	}
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (quiz.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	return a, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts ListOpts) ([]quiz.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []quiz.Attempt
	for _, a := range m.attempts {
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && string(a.Status) != opts.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt != out[j].StartedAt {
			return out[i].StartedAt > out[j].StartedAt
		}
		return out[i].AttemptNumber > out[j].AttemptNumber
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryStore) CountAttempts(_ context.Context, userID, quizID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.attempts {
		if a.UserID == userID && a.QuizID == quizID {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) SaveAnswers(_ context.Context, attemptID string, answers []quiz.Answer) (quiz.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	if a.Status != quiz.AttemptInProgress {
		return quiz.Attempt{}, quiz.ErrAttemptClosed
	}
	a.Answers = answers
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) CompleteAttempt(_ context.Context, a quiz.Attempt, feedback []grading.QuestionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		return quiz.ErrAttemptNotFound
	}
	if cur.Status != quiz.AttemptInProgress {
		return quiz.ErrAttemptClosed
	}
	m.attempts[a.ID] = a
	m.feedback[a.ID] = feedback
	return nil
}

func (m *memoryStore) AbandonAttempt(_ context.Context, attemptID string) (quiz.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	if a.Status != quiz.AttemptInProgress {
		return quiz.Attempt{}, quiz.ErrAttemptClosed
	}
	a.Status = quiz.AttemptAbandoned
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) ListFeedback(_ context.Context, attemptID string) ([]grading.QuestionResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.attempts[attemptID]; !ok {
		return nil, quiz.ErrAttemptNotFound
	}
	return m.feedback[attemptID], nil
}
