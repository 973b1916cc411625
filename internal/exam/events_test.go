package exam_test

import (
	"slices"
	"testing"

	"github.com/p-n-ai/halaqah/internal/exam"
)

func TestMemoryEventLogger_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		event exam.Event
	}{
		{"missing type", exam.Event{AttemptID: "a1", StudentID: "s1"}},
		{"unknown type", exam.Event{AttemptID: "a1", StudentID: "s1", EventType: "exam_reopened"}},
		{"missing attempt", exam.Event{StudentID: "s1", EventType: exam.EventExamCreated}},
		{"missing student", exam.Event{AttemptID: "a1", EventType: exam.EventExamCompleted}},
	}
	l := exam.NewMemoryEventLogger()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := l.LogEvent(t.Context(), tt.event); err == nil {
				t.Error("LogEvent() error = nil, want rejection")
			}
		})
	}
	if got := len(l.Events()); got != 0 {
		t.Errorf("Events() = %d, want 0", got)
	}
}

func TestMemoryEventLogger_Timeline(t *testing.T) {
	l := exam.NewMemoryEventLogger()
	ctx := t.Context()
	for _, e := range []exam.Event{
		{AttemptID: "a1", StudentID: "s1", EventType: exam.EventExamCreated},
		{AttemptID: "a2", StudentID: "s1", EventType: exam.EventExamCreated},
		{AttemptID: "a1", StudentID: "s1", EventType: exam.EventExamCompleted},
	} {
		if err := l.LogEvent(ctx, e); err != nil {
			t.Fatalf("LogEvent() error = %v", err)
		}
	}

	want := []string{exam.EventExamCreated, exam.EventExamCompleted}
	if got := l.Timeline("a1"); !slices.Equal(got, want) {
		t.Errorf("Timeline(a1) = %v, want %v", got, want)
	}
	if events := l.Events(); len(events) != 3 || events[0].CreatedAt.IsZero() {
		t.Errorf("Events() = %+v", events)
	}
}
