package exam

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/halaqah/internal/platform/apperr"
)

// Store persists attempts and their questions.
type Store interface {
	// Create inserts a PENDING attempt.
	Create(ctx context.Context, a Attempt) (Attempt, error)
	// Get returns an attempt with its questions.
	Get(ctx context.Context, id string) (Attempt, error)
	// Complete writes the questions and flips PENDING to COMPLETED in one
	// atomic step. Concurrent calls for one attempt are serialized; every
	// caller after the first gets apperr.ErrAlreadyCompleted.
	Complete(ctx context.Context, id string, c Completion) (Attempt, error)
	// ListByStudent returns the student's attempts with questions, oldest first.
	ListByStudent(ctx context.Context, studentID string) ([]Attempt, error)
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts map[string]*Attempt
	seq      int64
}

// NewMemoryStore creates an empty in-memory attempt store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string]*Attempt)}
}

func (s *MemoryStore) Create(_ context.Context, a Attempt) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = uuid.NewString()
	a.Status = StatusPending
	a.FinalScore = nil
	a.Passed = nil
	a.Questions = []Question{}
	s.seq++
	a.CreatedAt = time.Now().Add(time.Duration(s.seq))
	stored := copyAttempt(a)
	s.attempts[a.ID] = &stored
	return a, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.attempts[id]
	if !ok {
		return Attempt{}, apperr.NotFound("exam attempt", id)
	}
	return copyAttempt(*a), nil
}

func (s *MemoryStore) Complete(_ context.Context, id string, c Completion) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[id]
	if !ok {
		return Attempt{}, apperr.NotFound("exam attempt", id)
	}
	if a.Status != StatusPending {
		return Attempt{}, apperr.ErrAlreadyCompleted
	}

	questions := make([]Question, len(c.Questions))
	for i, q := range c.Questions {
		q.ID = uuid.NewString()
		q.AttemptID = id
		questions[i] = q
	}
	score := c.FinalScore
	passed := c.Passed
	completedAt := c.CompletedAt

	a.Status = StatusCompleted
	a.Questions = questions
	a.FinalScore = &score
	a.Passed = &passed
	a.Notes = c.Notes
	a.CompletedAt = &completedAt
	return copyAttempt(*a), nil
}

func (s *MemoryStore) ListByStudent(_ context.Context, studentID string) ([]Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Attempt
	for _, a := range s.attempts {
		if a.StudentID == studentID {
			out = append(out, copyAttempt(*a))
		}
	}
	SortChronological(out)
	return out, nil
}

func copyAttempt(a Attempt) Attempt {
	a.ReviewUnits = slices.Clone(a.ReviewUnits)
	a.Questions = slices.Clone(a.Questions)
	return a
}
