package exam

import (
	"fmt"
	"slices"
	"time"

	"github.com/p-n-ai/halaqah/internal/curriculum"
	"github.com/p-n-ai/halaqah/internal/platform/apperr"
	"github.com/p-n-ai/halaqah/internal/scoring"
)

// Stage is a state of the examination wizard.
type Stage string

const (
	StageSetup       Stage = "SETUP"
	StageGatekeeper  Stage = "GATEKEEPER_TEST"
	StageCumulative  Stage = "CUMULATIVE_TEST"
	StageSummary     Stage = "SUMMARY"
	StageCommitted   Stage = "COMMITTED"
	StageFailedEarly Stage = "FAILED_EARLY"
)

// ErrInvalidTransition is returned when an operation is not allowed in the
// session's current stage.
var ErrInvalidTransition = fmt.Errorf("%w: invalid exam transition", apperr.ErrInvalidInput)

// Slot is one question being marked in the wizard.
type Slot struct {
	Unit     int `json:"unit"`
	Mistakes int `json:"mistakes"`
}

// Session is the examination wizard as a value. Every transition returns a new
// Session and leaves the receiver untouched; none performs I/O. Service.Commit
// is the only step that persists anything.
type Session struct {
	Stage          Stage          `json:"stage"`
	StudentID      string         `json:"student_id"`
	AttemptID      string         `json:"attempt_id,omitempty"`
	Unit           int            `json:"unit"`
	ReviewUnits    []int          `json:"review_units"`
	Date           time.Time      `json:"date"`
	Notes          string         `json:"notes,omitempty"`
	Current        []Slot         `json:"current"`
	Cumulative     []Slot         `json:"cumulative"`
	ScoreOverride  *float64       `json:"score_override,omitempty"`
	PassedOverride *bool          `json:"passed_override,omitempty"`
	Policy         scoring.Policy `json:"-"`
}

// NewSession starts a wizard for a student in SETUP.
func NewSession(policy scoring.Policy, studentID string) Session {
	return Session{Stage: StageSetup, StudentID: studentID, Policy: policy}
}

// Select chooses the primary unit and the review units.
func (s Session) Select(unit int, reviews []int) (Session, error) {
	if err := s.expect(StageSetup); err != nil {
		return s, err
	}
	if err := curriculum.ValidateSelection(unit, reviews); err != nil {
		return s, err
	}
	next := s.clone()
	next.Unit = unit
	next.ReviewUnits = slices.Clone(reviews)
	return next, nil
}

// ForAttempt binds the wizard to an attempt created earlier, copying its units.
func (s Session) ForAttempt(a Attempt) (Session, error) {
	if err := s.expect(StageSetup); err != nil {
		return s, err
	}
	if a.Status != StatusPending {
		return s, apperr.ErrAlreadyCompleted
	}
	next, err := s.Select(a.Unit, a.ReviewUnits)
	if err != nil {
		return s, err
	}
	next.AttemptID = a.ID
	next.StudentID = a.StudentID
	next.Date = a.Date
	next.Notes = a.Notes
	return next, nil
}

// Start moves SETUP to GATEKEEPER_TEST and opens the current part's question
// slots at zero mistakes.
func (s Session) Start() (Session, error) {
	if err := s.expect(StageSetup); err != nil {
		return s, err
	}
	if s.Unit == 0 {
		return s, fmt.Errorf("%w: select a unit first", ErrInvalidTransition)
	}
	next := s.clone()
	next.Stage = StageGatekeeper
	next.Current = make([]Slot, s.Policy.QuestionsPerPart)
	for i := range next.Current {
		next.Current[i] = Slot{Unit: s.Unit}
	}
	return next, nil
}

// AddMistake counts one more mistake on question index of the given part.
func (s Session) AddMistake(kind QuestionKind, index int) (Session, error) {
	return s.adjust(kind, index, 1)
}

// RemoveMistake takes one mistake off. Counters never go below zero.
func (s Session) RemoveMistake(kind QuestionKind, index int) (Session, error) {
	return s.adjust(kind, index, -1)
}

func (s Session) adjust(kind QuestionKind, index, delta int) (Session, error) {
	var stage Stage
	switch kind {
	case KindCurrentPart:
		stage = StageGatekeeper
	case KindCumulative:
		stage = StageCumulative
	default:
		return s, apperr.InvalidInput("unknown question kind %q", kind)
	}
	if err := s.expect(stage); err != nil {
		return s, err
	}

	next := s.clone()
	slots := next.Current
	if kind == KindCumulative {
		slots = next.Cumulative
	}
	if index < 0 || index >= len(slots) {
		return s, apperr.InvalidInput("question %d out of range", index)
	}
	slots[index].Mistakes = max(0, slots[index].Mistakes+delta)
	return next, nil
}

// PartScore is the live score of the current part.
func (s Session) PartScore() float64 {
	score, _ := scoring.PartScore(s.marks(s.Current), s.Policy.DeductionRate)
	return score
}

// CumulativeScores returns one live score per review unit, in review order.
func (s Session) CumulativeScores() []float64 {
	if len(s.Cumulative) == 0 {
		return nil
	}
	out := make([]float64, 0, len(s.ReviewUnits))
	for _, unit := range s.ReviewUnits {
		var slots []Slot
		for _, sl := range s.Cumulative {
			if sl.Unit == unit {
				slots = append(slots, sl)
			}
		}
		score, _ := scoring.PartScore(s.marks(slots), s.Policy.DeductionRate)
		out = append(out, score)
	}
	return out
}

// GatekeeperMet reports whether the live part score allows cumulative testing.
func (s Session) GatekeeperMet() bool {
	return s.Policy.GatekeeperMet(s.PartScore())
}

// Proceed leaves GATEKEEPER_TEST. With review units selected it opens the
// cumulative test; without them it goes straight to SUMMARY. It fails while
// the gatekeeper is not met.
func (s Session) Proceed() (Session, error) {
	if err := s.expect(StageGatekeeper); err != nil {
		return s, err
	}
	if !s.GatekeeperMet() {
		return s, fmt.Errorf("%w: part score %.2f below gatekeeper %.2f",
			ErrInvalidTransition, s.PartScore(), s.Policy.GatekeeperThreshold)
	}

	next := s.clone()
	if len(s.ReviewUnits) == 0 {
		next.Stage = StageSummary
		return next, nil
	}
	next.Stage = StageCumulative
	next.Cumulative = make([]Slot, 0, len(s.ReviewUnits)*s.Policy.ReviewQuestionsPerUnit)
	for _, unit := range s.ReviewUnits {
		for range s.Policy.ReviewQuestionsPerUnit {
			next.Cumulative = append(next.Cumulative, Slot{Unit: unit})
		}
	}
	return next, nil
}

// FailEarly ends the exam at the gatekeeper. It is only allowed while the
// gatekeeper is not met.
func (s Session) FailEarly() (Session, error) {
	if err := s.expect(StageGatekeeper); err != nil {
		return s, err
	}
	if s.GatekeeperMet() {
		return s, fmt.Errorf("%w: gatekeeper met, proceed instead", ErrInvalidTransition)
	}
	next := s.clone()
	next.Stage = StageFailedEarly
	next.ScoreOverride = nil
	next.PassedOverride = nil
	return next, nil
}

// ConfirmCumulative closes the cumulative test.
func (s Session) ConfirmCumulative() (Session, error) {
	if err := s.expect(StageCumulative); err != nil {
		return s, err
	}
	next := s.clone()
	next.Stage = StageSummary
	return next, nil
}

// Override records examiner overrides on the summary. Nil clears a value.
func (s Session) Override(score *float64, passed *bool) (Session, error) {
	if err := s.expect(StageSummary); err != nil {
		return s, err
	}
	if score != nil {
		if err := scoring.CheckOverride(*score); err != nil {
			return s, err
		}
	}
	next := s.clone()
	next.ScoreOverride = cloneFloat(score)
	next.PassedOverride = cloneBool(passed)
	return next, nil
}

// Submission builds the request Commit sends to the ledger. Only SUMMARY and
// FAILED_EARLY sessions can be submitted.
func (s Session) Submission() (SubmitRequest, error) {
	if s.Stage != StageSummary && s.Stage != StageFailedEarly {
		return SubmitRequest{}, fmt.Errorf("%w: cannot submit from %s", ErrInvalidTransition, s.Stage)
	}
	req := SubmitRequest{Notes: s.Notes}
	for _, sl := range s.Current {
		req.Questions = append(req.Questions, QuestionInput{Kind: KindCurrentPart, Unit: sl.Unit, Mistakes: sl.Mistakes})
	}
	if s.Stage == StageFailedEarly {
		req.ForcedFail = true
		return req, nil
	}
	for _, sl := range s.Cumulative {
		req.Questions = append(req.Questions, QuestionInput{Kind: KindCumulative, Unit: sl.Unit, Mistakes: sl.Mistakes})
	}
	req.ScoreOverride = cloneFloat(s.ScoreOverride)
	req.PassedOverride = cloneBool(s.PassedOverride)
	return req, nil
}

// Committed marks the session as persisted under attemptID.
func (s Session) Committed(attemptID string) (Session, error) {
	if s.Stage != StageSummary && s.Stage != StageFailedEarly {
		return s, fmt.Errorf("%w: cannot commit from %s", ErrInvalidTransition, s.Stage)
	}
	next := s.clone()
	next.Stage = StageCommitted
	next.AttemptID = attemptID
	return next, nil
}

// Preview is the live result shown on the summary screen.
type Preview struct {
	Stage            Stage     `json:"stage"`
	PartScore        float64   `json:"part_score"`
	CumulativeScores []float64 `json:"cumulative_scores"`
	FinalScore       float64   `json:"final_score"`
	GatekeeperMet    bool      `json:"gatekeeper_met"`
	Passed           bool      `json:"passed"`
	Grade            string    `json:"grade"`
}

// Preview computes the result the session would commit with.
func (s Session) Preview() Preview {
	part := s.PartScore()
	cumulative := s.CumulativeScores()
	final := scoring.FinalScore(part, cumulative)
	if s.ScoreOverride != nil {
		final = *s.ScoreOverride
	}
	met := s.Policy.GatekeeperMet(part)
	passed := false
	if s.Stage != StageFailedEarly {
		passed = s.Policy.Decide(final, met, s.PassedOverride)
	}
	return Preview{
		Stage:            s.Stage,
		PartScore:        part,
		CumulativeScores: cumulative,
		FinalScore:       final,
		GatekeeperMet:    met,
		Passed:           passed,
		Grade:            scoring.Grade(final),
	}
}

func (s Session) expect(stage Stage) error {
	if s.Stage != stage {
		return fmt.Errorf("%w: expected %s, session is %s", ErrInvalidTransition, stage, s.Stage)
	}
	return nil
}

func (s Session) marks(slots []Slot) []scoring.Mark {
	weights := scoring.Weights(len(slots))
	marks := make([]scoring.Mark, len(slots))
	for i, sl := range slots {
		marks[i] = scoring.Mark{MaxWeight: weights[i], Mistakes: sl.Mistakes}
	}
	return marks
}

func (s Session) clone() Session {
	next := s
	next.ReviewUnits = slices.Clone(s.ReviewUnits)
	next.Current = slices.Clone(s.Current)
	next.Cumulative = slices.Clone(s.Cumulative)
	next.ScoreOverride = cloneFloat(s.ScoreOverride)
	next.PassedOverride = cloneBool(s.PassedOverride)
	return next
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
