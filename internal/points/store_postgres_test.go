package points_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/halaqah/internal/platform/apperr"
	"github.com/p-n-ai/halaqah/internal/platform/database/dbtest"
	"github.com/p-n-ai/halaqah/internal/points"
	"github.com/p-n-ai/halaqah/internal/student"
)

func TestPostgresStore_Ledger(t *testing.T) {
	db := dbtest.New(t)
	ctx := t.Context()

	dir, err := student.NewPostgresDirectory(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresDirectory() error = %v", err)
	}
	id, err := dir.Create(ctx, "masjid-1", "Bilal")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	store, err := points.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	l := points.NewLedger(points.LedgerConfig{Store: store, Students: dir, BudgetCap: 10})

	if _, err := l.Award(ctx, points.AwardRequest{StudentID: id, Amount: 5, Reason: "ayah", Kind: points.SourceRecitation}); err != nil {
		t.Fatalf("Award() error = %v", err)
	}
	if _, err := l.AwardManual(ctx, id, 8, "helped", "sess-1", "ustadh-ali"); err != nil {
		t.Fatalf("AwardManual() error = %v", err)
	}
	if _, err := l.AwardManual(ctx, id, -3, "noise", "sess-1", "ustadh-ali"); !errors.Is(err, apperr.ErrBudgetExceeded) {
		t.Fatalf("AwardManual() over budget error = %v, want ErrBudgetExceeded", err)
	}

	balance, err := l.Balance(ctx, id)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if balance != 13 {
		t.Errorf("Balance() = %d, want 13", balance)
	}

	history, err := l.History(ctx, id, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].SourceKind != points.SourceManualReward {
		t.Errorf("History() = %+v, want manual reward first", history)
	}

	rec, err := l.Reconcile(ctx, id)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if rec.Drift != 0 {
		t.Errorf("Reconcile() drift = %d, want 0", rec.Drift)
	}
}

func TestPostgresStore_AppendUnknownStudent(t *testing.T) {
	db := dbtest.New(t)

	store, _ := points.NewPostgresStore(db.Pool)
	_, _, err := store.Append(t.Context(), points.Transaction{
		StudentID:  "00000000-0000-0000-0000-000000000000",
		Amount:     1,
		Reason:     "ghost",
		SourceKind: points.SourceExam,
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Append() error = %v, want ErrNotFound", err)
	}
}
