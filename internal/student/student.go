// Package student resolves student identities for the exam and point ledgers.
// Profile management lives elsewhere; this package only answers lookups and
// owns the stored balance column that the point ledger increments.
package student

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/p-n-ai/halaqah/internal/platform/apperr"
)

// Student is a circle member with a materialized point balance.
type Student struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	TotalPoints int    `json:"total_points"`
}

// Directory looks up students by id.
type Directory interface {
	Get(ctx context.Context, id string) (Student, error)
}

// InTenant returns the student only when it belongs to tenantID. Students of
// other tenants are reported as not found.
func InTenant(ctx context.Context, dir Directory, tenantID, id string) (Student, error) {
	s, err := dir.Get(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if tenantID != "" && s.TenantID != tenantID {
		return Student{}, apperr.NotFound("student", id)
	}
	return s, nil
}

// MemoryDirectory is an in-memory Directory. It also stores balances for the
// in-memory point store.
type MemoryDirectory struct {
	mu       sync.RWMutex
	students map[string]*Student
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{students: make(map[string]*Student)}
}

// Add registers a student and returns its id. A blank id is generated.
func (d *MemoryDirectory) Add(s Student) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	d.students[s.ID] = &s
	return s.ID
}

func (d *MemoryDirectory) Get(_ context.Context, id string) (Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.students[id]
	if !ok {
		return Student{}, apperr.NotFound("student", id)
	}
	return *s, nil
}

// Increment adds delta to the student's balance and returns the new balance.
func (d *MemoryDirectory) Increment(id string, delta int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.students[id]
	if !ok {
		return 0, apperr.NotFound("student", id)
	}
	s.TotalPoints += delta
	return s.TotalPoints, nil
}
