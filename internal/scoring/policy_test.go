package scoring_test

import (
	"testing"

	"github.com/p-n-ai/halaqah/internal/scoring"
)

func TestDefaultPolicy_Valid(t *testing.T) {
	if err := scoring.DefaultPolicy().Validate(); err != nil {
		t.Fatalf("DefaultPolicy().Validate() error = %v", err)
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*scoring.Policy)
	}{
		{"zero rate", func(p *scoring.Policy) { p.DeductionRate = 0 }},
		{"gatekeeper above 100", func(p *scoring.Policy) { p.GatekeeperThreshold = 101 }},
		{"negative pass mark", func(p *scoring.Policy) { p.PassingThreshold = -1 }},
		{"no questions", func(p *scoring.Policy) { p.QuestionsPerPart = 0 }},
		{"no review questions", func(p *scoring.Policy) { p.ReviewQuestionsPerUnit = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := scoring.DefaultPolicy()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("Validate() should return error")
			}
		})
	}
}

func TestPolicy_Decide(t *testing.T) {
	p := scoring.DefaultPolicy()
	yes, no := true, false

	tests := []struct {
		name       string
		final      float64
		gatekeeper bool
		override   *bool
		want       bool
	}{
		{"passes at threshold", 70, true, nil, true},
		{"fails below threshold", 69.99, true, nil, false},
		{"override passes low score", 50, true, &yes, true},
		{"override fails high score", 95, true, &no, false},
		{"override wins over gatekeeper failure", 95, false, &yes, true},
		{"gatekeeper failure without override", 95, false, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Decide(tt.final, tt.gatekeeper, tt.override); got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicy_GatekeeperMet(t *testing.T) {
	p := scoring.DefaultPolicy()
	if !p.GatekeeperMet(75) {
		t.Error("GatekeeperMet(75) = false, want true")
	}
	if p.GatekeeperMet(74.5) {
		t.Error("GatekeeperMet(74.5) = true, want false")
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "mumtaz"},
		{90, "mumtaz"},
		{85, "jayyid jiddan"},
		{70, "jayyid"},
		{69, "rasib"},
	}
	for _, tt := range tests {
		if got := scoring.Grade(tt.score); got != tt.want {
			t.Errorf("Grade(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
