package points

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/halaqah/internal/student"
)

// Store persists the append-only transaction log and the balance projection.
type Store interface {
	// Append writes tx and adds tx.Amount to the student's balance in one
	// atomic step. It returns the stored row and the new balance.
	Append(ctx context.Context, tx Transaction) (Transaction, int, error)
	// ManualUsage sums |amount| over a teacher's manual rows in a session.
	ManualUsage(ctx context.Context, teacherID, sessionID string) (int, error)
	// History returns at most limit rows for the student, newest first.
	History(ctx context.Context, studentID string, limit int) ([]Transaction, error)
	// Balance reads the materialized balance.
	Balance(ctx context.Context, studentID string) (int, error)
	// LedgerSum recomputes the balance from every row. Audit use only.
	LedgerSum(ctx context.Context, studentID string) (int, error)
}

// MemoryStore is an in-memory Store. Balances live in the student directory.
type MemoryStore struct {
	mu       sync.RWMutex
	students *student.MemoryDirectory
	rows     []Transaction
	seq      int64
}

// NewMemoryStore creates an in-memory store over dir.
func NewMemoryStore(dir *student.MemoryDirectory) *MemoryStore {
	return &MemoryStore{students: dir}
}

func (s *MemoryStore) Append(_ context.Context, tx Transaction) (Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.students.Increment(tx.StudentID, tx.Amount)
	if err != nil {
		return Transaction{}, 0, err
	}

	tx.ID = uuid.NewString()
	// Strictly increasing timestamps keep newest-first ordering stable.
	s.seq++
	tx.CreatedAt = time.Now().Add(time.Duration(s.seq))
	s.rows = append(s.rows, tx)
	return tx, balance, nil
}

func (s *MemoryStore) ManualUsage(_ context.Context, teacherID, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	used := 0
	for _, r := range s.rows {
		if r.SourceKind.Manual() && r.AwardedBy == teacherID && r.SessionID == sessionID {
			used += abs(r.Amount)
		}
	}
	return used, nil
}

func (s *MemoryStore) History(_ context.Context, studentID string, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Transaction
	for _, r := range s.rows {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Balance(ctx context.Context, studentID string) (int, error) {
	st, err := s.students.Get(ctx, studentID)
	if err != nil {
		return 0, err
	}
	return st.TotalPoints, nil
}

func (s *MemoryStore) LedgerSum(ctx context.Context, studentID string) (int, error) {
	if _, err := s.students.Get(ctx, studentID); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := 0
	for _, r := range s.rows {
		if r.StudentID == studentID {
			sum += r.Amount
		}
	}
	return sum, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
