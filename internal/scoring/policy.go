package scoring

import "fmt"

// Policy holds the configurable thresholds of the examination rules.
type Policy struct {
	DeductionRate          float64
	GatekeeperThreshold    float64
	PassingThreshold       float64
	QuestionsPerPart       int
	ReviewQuestionsPerUnit int
}

// DefaultPolicy returns one point per mistake, a 75% gatekeeper, a pass mark
// of 70 and three questions on the current part.
func DefaultPolicy() Policy {
	return Policy{
		DeductionRate:          1,
		GatekeeperThreshold:    75,
		PassingThreshold:       70,
		QuestionsPerPart:       3,
		ReviewQuestionsPerUnit: 1,
	}
}

// Validate checks that the policy can score an exam.
func (p Policy) Validate() error {
	if !(p.DeductionRate > 0) {
		return fmt.Errorf("deduction rate must be positive, got %v", p.DeductionRate)
	}
	if p.GatekeeperThreshold < 0 || p.GatekeeperThreshold > PartPool {
		return fmt.Errorf("gatekeeper threshold must be within 0..100, got %v", p.GatekeeperThreshold)
	}
	if p.PassingThreshold < 0 || p.PassingThreshold > PartPool {
		return fmt.Errorf("passing threshold must be within 0..100, got %v", p.PassingThreshold)
	}
	if p.QuestionsPerPart < 1 {
		return fmt.Errorf("questions per part must be at least 1, got %d", p.QuestionsPerPart)
	}
	if p.ReviewQuestionsPerUnit < 1 {
		return fmt.Errorf("review questions per unit must be at least 1, got %d", p.ReviewQuestionsPerUnit)
	}
	return nil
}

// GatekeeperMet reports whether the current part score allows cumulative testing.
func (p Policy) GatekeeperMet(partScore float64) bool {
	return partScore >= p.GatekeeperThreshold
}

// Decide applies the pass rule: the final score must reach the pass mark and
// the gatekeeper must have been met. An examiner override replaces the
// computed result.
func (p Policy) Decide(final float64, gatekeeperMet bool, override *bool) bool {
	if override != nil {
		return *override
	}
	return gatekeeperMet && final >= p.PassingThreshold
}

// Grade labels a final score the way circle teachers report it.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "mumtaz"
	case score >= 80:
		return "jayyid jiddan"
	case score >= 70:
		return "jayyid"
	default:
		return "rasib"
	}
}
