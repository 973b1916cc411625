package exam

import (
	"context"
	"fmt"
	"sort"

	"github.com/p-n-ai/halaqah/internal/curriculum"
)

// CardEntry is an attempt as listed in one unit's slot.
type CardEntry struct {
	Attempt       Attempt `json:"attempt"`
	AttemptNumber int     `json:"attempt_number"`
	Primary       bool    `json:"primary"`
}

// CardSlot holds every completed attempt that examined one unit, newest first.
type CardSlot struct {
	Unit     curriculum.Unit `json:"unit"`
	Attempts []CardEntry     `json:"attempts"`
}

// Card is a student's examination record across the whole curriculum. It
// always has one slot per unit.
type Card struct {
	StudentID string     `json:"student_id"`
	Slots     []CardSlot `json:"slots"`
}

// Card builds the student's 30-slot exam card. An attempt appears in the slot
// of its primary unit and of each review unit; within a slot, attempt numbers
// count that student's completed attempts touching the unit.
func (s *Service) Card(ctx context.Context, studentID string) (Card, error) {
	if _, err := s.students.Get(ctx, studentID); err != nil {
		return Card{}, err
	}
	attempts, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return Card{}, fmt.Errorf("list attempts: %w", err)
	}
	return BuildCard(s.curriculum, studentID, attempts), nil
}

// BuildCard arranges attempts into the per-unit card. Pending attempts are left out.
func BuildCard(idx *curriculum.Index, studentID string, attempts []Attempt) Card {
	completed := make([]Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a.Status == StatusCompleted {
			completed = append(completed, a)
		}
	}
	SortChronological(completed)
	numberAttempts(completed)

	card := Card{StudentID: studentID, Slots: make([]CardSlot, curriculum.UnitCount)}
	for i, u := range idx.All() {
		card.Slots[i] = CardSlot{Unit: u, Attempts: []CardEntry{}}
	}

	for _, a := range completed {
		for _, unit := range a.Units() {
			if !curriculum.Valid(unit) {
				continue
			}
			slot := &card.Slots[unit-1]
			slot.Attempts = append(slot.Attempts, CardEntry{
				Attempt:       a,
				AttemptNumber: len(slot.Attempts) + 1,
				Primary:       a.Unit == unit,
			})
		}
	}

	for i := range card.Slots {
		entries := card.Slots[i].Attempts
		// Entries were appended oldest first.
		for l, r := 0, len(entries)-1; l < r; l, r = l+1, r-1 {
			entries[l], entries[r] = entries[r], entries[l]
		}
	}
	return card
}

// SortChronological orders attempts by exam date, then creation time.
func SortChronological(attempts []Attempt) {
	sort.SliceStable(attempts, func(i, j int) bool {
		return before(attempts[i], attempts[j])
	})
}

// SortNewestFirst orders attempts by exam date descending, then creation
// time descending for attempts on the same day.
func SortNewestFirst(attempts []Attempt) {
	sort.SliceStable(attempts, func(i, j int) bool {
		return before(attempts[j], attempts[i])
	})
}

func before(a, b Attempt) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// numberAttempts sets AttemptNumber on completed attempts: one more than the
// completed attempts before it with the same primary unit. Review touches are
// not counted; card slots number those per slot. attempts must be in
// chronological order.
func numberAttempts(attempts []Attempt) {
	counts := make(map[int]int)
	for i := range attempts {
		if attempts[i].Status != StatusCompleted {
			attempts[i].AttemptNumber = 0
			continue
		}
		counts[attempts[i].Unit]++
		attempts[i].AttemptNumber = counts[attempts[i].Unit]
	}
}
