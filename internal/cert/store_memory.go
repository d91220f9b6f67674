package cert

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicate mirrors a SQL unique violation for the in-memory store.
var ErrDuplicate = errors.New("duplicate certificate")

type memoryStore struct {
	mu        sync.RWMutex
	byID      map[string]Certificate
	byAttempt map[string]string // attempt id -> certificate id
	byToken   map[string]string
	byNumber  map[string]string
}

// NewInMemoryStore is the offline/test counterpart of the SQL store; it
// enforces the same uniqueness constraints under its mutex.
func NewInMemoryStore() Store {
	return &memoryStore{
		byID:      map[string]Certificate{},
		byAttempt: map[string]string{},
		byToken:   map[string]string{},
		byNumber:  map[string]string{},
	}
}

func (m *memoryStore) Insert(_ context.Context, c Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byAttempt[c.QuizAttemptID]; ok {
		return fmt.Errorf("certificate for attempt %s: %w", c.QuizAttemptID, ErrDuplicate)
	}
	if _, ok := m.byToken[c.VerificationToken]; ok {
		return fmt.Errorf("verification token: %w", ErrDuplicate)
	}
	if _, ok := m.byNumber[c.Number]; ok {
		return fmt.Errorf("certificate number %s: %w", c.Number, ErrDuplicate)
	}
	m.byID[c.ID] = c
	m.byAttempt[c.QuizAttemptID] = c.ID
	m.byToken[c.VerificationToken] = c.ID
	m.byNumber[c.Number] = c.ID
	return nil
}

func (m *memoryStore) GetByID(_ context.Context, id string) (Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return Certificate{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryStore) ByAttempt(_ context.Context, attemptID string) (Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byAttempt[attemptID]
	if !ok {
		return Certificate{}, ErrNotFound
	}
	return m.byID[id], nil
}

func (m *memoryStore) ByToken(_ context.Context, token string) (Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byToken[token]
	if !ok {
		return Certificate{}, ErrNotFound
	}
	return m.byID[id], nil
}

func (m *memoryStore) ListByUser(_ context.Context, userID string) ([]Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Certificate
	for _, c := range m.byID {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryStore) LatestForUserQuiz(_ context.Context, userID, quizID string) (Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best Certificate
	found := false
	for _, c := range m.byID {
		if c.UserID != userID || c.QuizID != quizID || c.Status == StatusRevoked {
			continue
		}
		if !found || c.IssuedAt > best.IssuedAt {
			best = c
			found = true
		}
	}
	if !found {
		return Certificate{}, ErrNotFound
	}
	return best, nil
}

func (m *memoryStore) SetStatus(_ context.Context, id string, st Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = st
	m.byID[id] = c
	return nil
}
