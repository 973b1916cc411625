// Package auth models the caller of an operation and the role checks the
// assessment core applies. Identity itself is issued elsewhere.
package auth

import (
	"context"

	"github.com/p-n-ai/halaqah/internal/platform/apperr"
)

// Role is the role an actor holds within a tenant.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleExaminer Role = "examiner"
	RoleTeacher  Role = "teacher"
	RoleParent   Role = "parent"
	RoleStudent  Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleExaminer, RoleTeacher, RoleParent, RoleStudent:
		return true
	}
	return false
}

// Actor is an authenticated caller.
type Actor struct {
	ID       string `yaml:"id" json:"id"`
	Role     Role   `yaml:"role" json:"role"`
	TenantID string `yaml:"tenant_id" json:"tenant_id"`
}

// CanExamine allows exam creation and submission.
func CanExamine(a Actor) error {
	if a.ID == "" || (a.Role != RoleExaminer && a.Role != RoleAdmin) {
		return apperr.Forbidden("examine")
	}
	return nil
}

// CanRead allows history and balance reads for any authenticated role.
func CanRead(a Actor) error {
	if a.ID == "" || !a.Role.Valid() {
		return apperr.Forbidden("read")
	}
	return nil
}

// CanAwardManual allows manual point awards by teachers.
func CanAwardManual(a Actor) error {
	if a.ID == "" || a.Role != RoleTeacher {
		return apperr.Forbidden("award manual points")
	}
	return nil
}

// CanAwardRule allows rule-based awards by staff.
func CanAwardRule(a Actor) error {
	switch a.Role {
	case RoleTeacher, RoleExaminer, RoleAdmin:
		if a.ID != "" {
			return nil
		}
	}
	return apperr.Forbidden("award points")
}

// CanAudit allows ledger reconciliation.
func CanAudit(a Actor) error {
	if a.ID == "" || a.Role != RoleAdmin {
		return apperr.Forbidden("audit points")
	}
	return nil
}

type actorKey struct{}

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// FromContext returns the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
