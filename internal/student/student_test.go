package student_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/halaqah/internal/platform/apperr"
	"github.com/p-n-ai/halaqah/internal/student"
)

func TestMemoryDirectory_AddGet(t *testing.T) {
	dir := student.NewMemoryDirectory()
	id := dir.Add(student.Student{TenantID: "masjid-1", Name: "Yusuf"})
	if id == "" {
		t.Fatal("Add() returned empty id")
	}

	got, err := dir.Get(t.Context(), id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Yusuf" || got.TotalPoints != 0 {
		t.Errorf("Get() = %+v, want Yusuf with 0 points", got)
	}
}

func TestMemoryDirectory_NotFound(t *testing.T) {
	dir := student.NewMemoryDirectory()

	if _, err := dir.Get(t.Context(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := dir.Increment("missing", 5); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Increment() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryDirectory_Increment(t *testing.T) {
	dir := student.NewMemoryDirectory()
	id := dir.Add(student.Student{ID: "s1", TenantID: "masjid-1"})

	dir.Increment(id, 10)
	total, err := dir.Increment(id, -3)
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if total != 7 {
		t.Errorf("balance = %d, want 7", total)
	}
}

func TestInTenant(t *testing.T) {
	dir := student.NewMemoryDirectory()
	id := dir.Add(student.Student{TenantID: "masjid-1"})

	if _, err := student.InTenant(t.Context(), dir, "masjid-1", id); err != nil {
		t.Errorf("InTenant(same tenant) error = %v", err)
	}
	if _, err := student.InTenant(t.Context(), dir, "masjid-2", id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("InTenant(other tenant) error = %v, want ErrNotFound", err)
	}
}
