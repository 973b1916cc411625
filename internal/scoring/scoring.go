// Package scoring computes recitation exam scores. Every function is pure and
// deterministic; invalid parameters return apperr.ErrInvalidInput without side effects.
package scoring

import (
	"math"

	"github.com/p-n-ai/halaqah/internal/platform/apperr"
)

// PartPool is the number of points shared by all questions of one part.
const PartPool = 100.0

// Mark is the examiner's tally for one question.
type Mark struct {
	MaxWeight float64
	Mistakes  int
}

// QuestionScore returns max(0, round(maxWeight - mistakes*rate)).
func QuestionScore(maxWeight float64, mistakes int, rate float64) (float64, error) {
	if err := checkMark(maxWeight, mistakes, rate); err != nil {
		return 0, err
	}
	return math.Max(0, math.Round(maxWeight-float64(mistakes)*rate)), nil
}

// PartScore scores one part whose questions draw from a single 100 point pool:
// 100 minus every deduction, floored at zero. A part with no questions scores 0.
func PartScore(marks []Mark, rate float64) (float64, error) {
	if len(marks) == 0 {
		return 0, nil
	}
	var deducted float64
	for _, m := range marks {
		if err := checkMark(m.MaxWeight, m.Mistakes, rate); err != nil {
			return 0, err
		}
		deducted += float64(m.Mistakes) * rate
	}
	return round2(math.Max(0, PartPool-deducted)), nil
}

// FinalScore combines the current part with the cumulative review parts. With
// no review parts the current part score stands alone; otherwise the result is
// the mean of the current part and the average review score.
func FinalScore(current float64, cumulative []float64) float64 {
	if len(cumulative) == 0 {
		return round2(current)
	}
	var sum float64
	for _, c := range cumulative {
		sum += c
	}
	return round2((current + sum/float64(len(cumulative))) / 2)
}

// Weights splits the part pool evenly across n questions.
func Weights(n int) []float64 {
	if n <= 0 {
		return nil
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = round2(PartPool / float64(n))
	}
	return w
}

// CheckOverride validates an examiner supplied score.
func CheckOverride(score float64) error {
	if math.IsNaN(score) || score < 0 || score > PartPool {
		return apperr.InvalidInput("score override %v outside 0..100", score)
	}
	return nil
}

func checkMark(maxWeight float64, mistakes int, rate float64) error {
	switch {
	case mistakes < 0:
		return apperr.InvalidInput("mistake count %d is negative", mistakes)
	case !(maxWeight > 0):
		return apperr.InvalidInput("max weight %v must be positive", maxWeight)
	case !(rate > 0):
		return apperr.InvalidInput("deduction rate %v must be positive", rate)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
