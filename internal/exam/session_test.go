package exam_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/halaqah/internal/exam"
	"github.com/p-n-ai/halaqah/internal/platform/apperr"
	"github.com/p-n-ai/halaqah/internal/scoring"
)

func startedSession(t *testing.T, unit int, reviews []int) exam.Session {
	t.Helper()
	s := exam.NewSession(scoring.DefaultPolicy(), "student-1")
	s, err := s.Select(unit, reviews)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	s, err = s.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return s
}

func addMistakes(t *testing.T, s exam.Session, kind exam.QuestionKind, counts []int) exam.Session {
	t.Helper()
	for i, n := range counts {
		for range n {
			var err error
			s, err = s.AddMistake(kind, i)
			if err != nil {
				t.Fatalf("AddMistake(%s, %d) error = %v", kind, i, err)
			}
		}
	}
	return s
}

func TestSession_GatekeeperPassedWithoutReviews(t *testing.T) {
	s := startedSession(t, 5, nil)
	if got := len(s.Current); got != 3 {
		t.Fatalf("len(Current) = %d, want 3", got)
	}

	s = addMistakes(t, s, exam.KindCurrentPart, []int{0, 2, 1})
	if got := s.PartScore(); got != 97 {
		t.Errorf("PartScore() = %v, want 97", got)
	}
	if !s.GatekeeperMet() {
		t.Fatal("GatekeeperMet() = false, want true")
	}

	s, err := s.Proceed()
	if err != nil {
		t.Fatalf("Proceed() error = %v", err)
	}
	if s.Stage != exam.StageSummary {
		t.Errorf("Stage = %s, want %s", s.Stage, exam.StageSummary)
	}

	p := s.Preview()
	if p.FinalScore != 97 || !p.Passed || p.Grade != "mumtaz" {
		t.Errorf("Preview() = %+v, want 97 passed mumtaz", p)
	}
}

func TestSession_GatekeeperFailure(t *testing.T) {
	s := startedSession(t, 5, []int{4})
	s = addMistakes(t, s, exam.KindCurrentPart, []int{10, 10, 10})
	if got := s.PartScore(); got != 70 {
		t.Errorf("PartScore() = %v, want 70", got)
	}

	if _, err := s.Proceed(); !errors.Is(err, exam.ErrInvalidTransition) {
		t.Fatalf("Proceed() error = %v, want ErrInvalidTransition", err)
	}

	failed, err := s.FailEarly()
	if err != nil {
		t.Fatalf("FailEarly() error = %v", err)
	}
	if failed.Stage != exam.StageFailedEarly {
		t.Errorf("Stage = %s, want %s", failed.Stage, exam.StageFailedEarly)
	}
	if failed.Preview().Passed {
		t.Error("Preview().Passed = true after failing early")
	}

	if _, err := failed.Override(nil, ptr(true)); !errors.Is(err, exam.ErrInvalidTransition) {
		t.Errorf("Override() after FailEarly error = %v, want ErrInvalidTransition", err)
	}

	req, err := failed.Submission()
	if err != nil {
		t.Fatalf("Submission() error = %v", err)
	}
	if !req.ForcedFail || req.PassedOverride != nil || req.ScoreOverride != nil {
		t.Errorf("Submission() = %+v, want forced fail without overrides", req)
	}
	for _, q := range req.Questions {
		if q.Kind != exam.KindCurrentPart {
			t.Errorf("Submission() includes %s question after failing early", q.Kind)
		}
	}
}

func TestSession_FailEarlyRejectedWhenGatekeeperMet(t *testing.T) {
	s := startedSession(t, 5, nil)
	if _, err := s.FailEarly(); !errors.Is(err, exam.ErrInvalidTransition) {
		t.Errorf("FailEarly() error = %v, want ErrInvalidTransition", err)
	}
}

func TestSession_CumulativeFlow(t *testing.T) {
	s := startedSession(t, 5, []int{3, 4})
	s, err := s.Proceed()
	if err != nil {
		t.Fatalf("Proceed() error = %v", err)
	}
	if s.Stage != exam.StageCumulative {
		t.Fatalf("Stage = %s, want %s", s.Stage, exam.StageCumulative)
	}
	if got := len(s.Cumulative); got != 2 {
		t.Fatalf("len(Cumulative) = %d, want 2", got)
	}

	s = addMistakes(t, s, exam.KindCumulative, []int{10, 0})
	scores := s.CumulativeScores()
	if len(scores) != 2 || scores[0] != 90 || scores[1] != 100 {
		t.Errorf("CumulativeScores() = %v, want [90 100]", scores)
	}

	s, err = s.ConfirmCumulative()
	if err != nil {
		t.Fatalf("ConfirmCumulative() error = %v", err)
	}
	if got := s.Preview().FinalScore; got != 97.5 {
		t.Errorf("Preview().FinalScore = %v, want 97.5", got)
	}
}

func TestSession_TransitionsAreValues(t *testing.T) {
	s := startedSession(t, 1, nil)
	next, err := s.AddMistake(exam.KindCurrentPart, 0)
	if err != nil {
		t.Fatalf("AddMistake() error = %v", err)
	}
	if s.Current[0].Mistakes != 0 {
		t.Error("AddMistake() modified the receiver")
	}
	if next.Current[0].Mistakes != 1 {
		t.Errorf("Mistakes = %d, want 1", next.Current[0].Mistakes)
	}
}

func TestSession_RemoveMistakeFloorsAtZero(t *testing.T) {
	s := startedSession(t, 1, nil)
	s, err := s.RemoveMistake(exam.KindCurrentPart, 1)
	if err != nil {
		t.Fatalf("RemoveMistake() error = %v", err)
	}
	if s.Current[1].Mistakes != 0 {
		t.Errorf("Mistakes = %d, want 0", s.Current[1].Mistakes)
	}
}

func TestSession_InvalidOperations(t *testing.T) {
	setup := exam.NewSession(scoring.DefaultPolicy(), "student-1")
	started := startedSession(t, 2, nil)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"start without unit", func() error { _, err := setup.Start(); return err }, exam.ErrInvalidTransition},
		{"unknown unit", func() error { _, err := setup.Select(31, nil); return err }, apperr.ErrInvalidInput},
		{"review equals primary", func() error { _, err := setup.Select(2, []int{2}); return err }, apperr.ErrInvalidInput},
		{"mistake before start", func() error { _, err := setup.AddMistake(exam.KindCurrentPart, 0); return err }, exam.ErrInvalidTransition},
		{"question out of range", func() error { _, err := started.AddMistake(exam.KindCurrentPart, 3); return err }, apperr.ErrInvalidInput},
		{"cumulative during gatekeeper", func() error { _, err := started.AddMistake(exam.KindCumulative, 0); return err }, exam.ErrInvalidTransition},
		{"submit during gatekeeper", func() error { _, err := started.Submission(); return err }, exam.ErrInvalidTransition},
		{"override during gatekeeper", func() error { _, err := started.Override(ptr(80.0), nil); return err }, exam.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSession_OverrideOnSummary(t *testing.T) {
	s := startedSession(t, 7, nil)
	s, err := s.Proceed()
	if err != nil {
		t.Fatalf("Proceed() error = %v", err)
	}

	if _, err := s.Override(ptr(101.0), nil); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Override(101) error = %v, want ErrInvalidInput", err)
	}

	s, err = s.Override(ptr(65.0), ptr(true))
	if err != nil {
		t.Fatalf("Override() error = %v", err)
	}
	p := s.Preview()
	if p.FinalScore != 65 || !p.Passed {
		t.Errorf("Preview() = %+v, want score 65 passed by override", p)
	}

	req, err := s.Submission()
	if err != nil {
		t.Fatalf("Submission() error = %v", err)
	}
	if req.ScoreOverride == nil || *req.ScoreOverride != 65 {
		t.Errorf("Submission().ScoreOverride = %v, want 65", req.ScoreOverride)
	}

	committed, err := s.Committed("attempt-1")
	if err != nil {
		t.Fatalf("Committed() error = %v", err)
	}
	if committed.Stage != exam.StageCommitted || committed.AttemptID != "attempt-1" {
		t.Errorf("Committed() = %s/%s", committed.Stage, committed.AttemptID)
	}
	if _, err := committed.Submission(); !errors.Is(err, exam.ErrInvalidTransition) {
		t.Errorf("Submission() after commit error = %v, want ErrInvalidTransition", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
