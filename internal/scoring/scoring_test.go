package scoring_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/halaqah/internal/platform/apperr"
	"github.com/p-n-ai/halaqah/internal/scoring"
)

func TestQuestionScore(t *testing.T) {
	tests := []struct {
		name      string
		maxWeight float64
		mistakes  int
		rate      float64
		want      float64
	}{
		{"no mistakes keeps full weight", 40, 0, 1, 40},
		{"one point per mistake", 40, 3, 1, 37},
		{"half point rounds", 33.33, 1, 0.5, 33},
		{"double rate", 50, 5, 2, 40},
		{"floors at zero", 10, 500, 1, 0},
		{"exactly zero", 10, 5, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scoring.QuestionScore(tt.maxWeight, tt.mistakes, tt.rate)
			if err != nil {
				t.Fatalf("QuestionScore() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("QuestionScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuestionScore_NeverNegative(t *testing.T) {
	for mistakes := 0; mistakes <= 300; mistakes += 7 {
		for _, rate := range []float64{0.5, 1, 2} {
			got, err := scoring.QuestionScore(33.33, mistakes, rate)
			if err != nil {
				t.Fatalf("QuestionScore() error = %v", err)
			}
			if got < 0 {
				t.Fatalf("QuestionScore(33.33, %d, %v) = %v, want >= 0", mistakes, rate, got)
			}
		}
	}
}

func TestQuestionScore_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		maxWeight float64
		mistakes  int
		rate      float64
	}{
		{"negative mistakes", 10, -1, 1},
		{"zero weight", 0, 1, 1},
		{"negative weight", -5, 1, 1},
		{"zero rate", 10, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scoring.QuestionScore(tt.maxWeight, tt.mistakes, tt.rate)
			if !errors.Is(err, apperr.ErrInvalidInput) {
				t.Errorf("QuestionScore() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestPartScore(t *testing.T) {
	w := scoring.Weights(3)
	marks := func(ms ...int) []scoring.Mark {
		out := make([]scoring.Mark, len(ms))
		for i, m := range ms {
			out[i] = scoring.Mark{MaxWeight: w[i], Mistakes: m}
		}
		return out
	}

	tests := []struct {
		name  string
		marks []scoring.Mark
		rate  float64
		want  float64
	}{
		{"no questions is zero", nil, 1, 0},
		{"clean part", marks(0, 0, 0), 1, 100},
		{"shared pool", marks(0, 2, 1), 1, 97},
		{"thirty mistakes", marks(10, 10, 10), 1, 70},
		{"half rate", marks(1, 2, 2), 0.5, 97.5},
		{"floors at zero", marks(50, 50, 50), 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scoring.PartScore(tt.marks, tt.rate)
			if err != nil {
				t.Fatalf("PartScore() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("PartScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPartScore_InvalidMark(t *testing.T) {
	_, err := scoring.PartScore([]scoring.Mark{{MaxWeight: 50, Mistakes: -2}}, 1)
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("PartScore() error = %v, want ErrInvalidInput", err)
	}
}

func TestFinalScore(t *testing.T) {
	tests := []struct {
		name       string
		current    float64
		cumulative []float64
		want       float64
	}{
		{"current only", 97, nil, 97},
		{"one review", 90, []float64{80}, 85},
		{"averaged reviews", 100, []float64{90, 70}, 90},
		{"fractional", 97, []float64{96}, 96.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoring.FinalScore(tt.current, tt.cumulative); got != tt.want {
				t.Errorf("FinalScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckOverride(t *testing.T) {
	for _, s := range []float64{0, 55.5, 100} {
		if err := scoring.CheckOverride(s); err != nil {
			t.Errorf("CheckOverride(%v) error = %v", s, err)
		}
	}
	for _, s := range []float64{-1, 100.01} {
		if err := scoring.CheckOverride(s); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("CheckOverride(%v) error = %v, want ErrInvalidInput", s, err)
		}
	}
}
