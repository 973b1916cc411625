// Package exam runs oral recitation examinations: the wizard state machine,
// grading, and the attempt ledger with per-unit history.
package exam

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/p-n-ai/halaqah/internal/curriculum"
	"github.com/p-n-ai/halaqah/internal/platform/apperr"
	"github.com/p-n-ai/halaqah/internal/points"
	"github.com/p-n-ai/halaqah/internal/scoring"
	"github.com/p-n-ai/halaqah/internal/student"
)

// PointAwarder is the part of the point ledger the exam service uses.
type PointAwarder interface {
	AwardFromRule(ctx context.Context, studentID string, key points.RuleKey, sessionID, awardedBy string) (*points.Transaction, error)
}

// ServiceConfig holds dependencies for the exam service.
type ServiceConfig struct {
	Store         Store
	Students      student.Directory
	Curriculum    *curriculum.Index
	Policy        scoring.Policy
	Events        EventLogger
	Points        PointAwarder
	AwardOnCommit bool // award exam_passed/exam_failed points when an attempt completes
	Now           func() time.Time
}

// Service is the exam ledger.
type Service struct {
	store         Store
	students      student.Directory
	curriculum    *curriculum.Index
	policy        scoring.Policy
	events        EventLogger
	points        PointAwarder
	awardOnCommit bool
	now           func() time.Time
}

// NewService creates an exam service.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	idx := cfg.Curriculum
	if idx == nil {
		idx = curriculum.Default()
	}
	policy := cfg.Policy
	if policy == (scoring.Policy{}) {
		policy = scoring.DefaultPolicy()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:         store,
		students:      cfg.Students,
		curriculum:    idx,
		policy:        policy,
		events:        events,
		points:        cfg.Points,
		awardOnCommit: cfg.AwardOnCommit && cfg.Points != nil,
		now:           now,
	}
}

// Policy returns the scoring policy new sessions should use.
func (s *Service) Policy() scoring.Policy {
	return s.policy
}

// NewSession opens a wizard for a student.
func (s *Service) NewSession(studentID string) Session {
	return NewSession(s.policy, studentID)
}

// CreateAttempt opens a PENDING attempt.
func (s *Service) CreateAttempt(ctx context.Context, req CreateRequest) (Attempt, error) {
	if req.ExaminerID == "" {
		return Attempt{}, apperr.InvalidInput("examiner is required")
	}
	if err := curriculum.ValidateSelection(req.Unit, req.ReviewUnits); err != nil {
		return Attempt{}, err
	}
	if _, err := s.students.Get(ctx, req.StudentID); err != nil {
		return Attempt{}, err
	}

	today := truncateDay(s.now())
	date := truncateDay(req.Date)
	if req.Date.IsZero() || date.After(today) {
		date = today
	}

	reviews := slices.Clone(req.ReviewUnits)
	if reviews == nil {
		reviews = []int{}
	}

	a, err := s.store.Create(ctx, Attempt{
		StudentID:   req.StudentID,
		Unit:        req.Unit,
		ReviewUnits: reviews,
		Date:        date,
		Status:      StatusPending,
		ExaminerID:  req.ExaminerID,
		Notes:       cleanText(req.Notes),
	})
	if err != nil {
		return Attempt{}, fmt.Errorf("create attempt: %w", err)
	}

	slog.Info("exam attempt created",
		"attempt_id", a.ID,
		"student_id", a.StudentID,
		"unit", a.Unit,
		"review_units", a.ReviewUnits,
	)
	s.logEvent(ctx, Event{
		AttemptID: a.ID,
		StudentID: a.StudentID,
		EventType: EventExamCreated,
		Data:      map[string]any{"unit": a.Unit, "review_units": a.ReviewUnits},
	})
	return a, nil
}

// SubmitAttempt grades and completes a PENDING attempt. The score is computed
// from the questions unless an override is given. A current part below the
// gatekeeper fails the attempt regardless of overrides. Questions and the
// status change are written together or not at all.
func (s *Service) SubmitAttempt(ctx context.Context, attemptID string, req SubmitRequest) (Attempt, error) {
	a, err := s.store.Get(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusPending {
		return Attempt{}, apperr.ErrAlreadyCompleted
	}

	completion, err := s.grade(a, req)
	if err != nil {
		return Attempt{}, err
	}

	done, err := s.store.Complete(ctx, attemptID, completion)
	if err != nil {
		return Attempt{}, err
	}
	if n, err := s.attemptNumber(ctx, done); err == nil {
		done.AttemptNumber = n
	} else {
		slog.Warn("failed to number exam attempt", "attempt_id", done.ID, "error", err)
	}

	slog.Info("exam attempt submitted",
		"attempt_id", done.ID,
		"student_id", done.StudentID,
		"final_score", completion.FinalScore,
		"passed", completion.Passed,
	)
	s.logEvent(ctx, Event{
		AttemptID: done.ID,
		StudentID: done.StudentID,
		EventType: EventExamCompleted,
		Data:      map[string]any{"final_score": completion.FinalScore, "passed": completion.Passed},
	})

	if s.awardOnCommit {
		key := points.RuleExamFailed
		if completion.Passed {
			key = points.RuleExamPassed
		}
		if _, err := s.points.AwardFromRule(ctx, done.StudentID, key, "", done.ExaminerID); err != nil {
			slog.Error("exam points award failed", "attempt_id", done.ID, "rule", key, "error", err)
			return done, fmt.Errorf("exam completed but points award failed: %w", err)
		}
	}

	return done, nil
}

// Commit persists a finished wizard session. Sessions not bound to an attempt
// create one first. It returns the completed attempt and the COMMITTED session.
func (s *Service) Commit(ctx context.Context, sess Session, examinerID string) (Attempt, Session, error) {
	req, err := sess.Submission()
	if err != nil {
		return Attempt{}, sess, err
	}

	attemptID := sess.AttemptID
	if attemptID == "" {
		a, err := s.CreateAttempt(ctx, CreateRequest{
			StudentID:   sess.StudentID,
			Unit:        sess.Unit,
			ReviewUnits: sess.ReviewUnits,
			Date:        sess.Date,
			Notes:       sess.Notes,
			ExaminerID:  examinerID,
		})
		if err != nil {
			return Attempt{}, sess, err
		}
		attemptID = a.ID
	}

	done, submitErr := s.SubmitAttempt(ctx, attemptID, req)
	if done.ID == "" {
		return Attempt{}, sess, submitErr
	}
	next, err := sess.Committed(done.ID)
	if err != nil {
		return Attempt{}, sess, err
	}
	return done, next, submitErr
}

// Attempt returns one attempt with its questions and attempt number.
func (s *Service) Attempt(ctx context.Context, id string) (Attempt, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusCompleted {
		n, err := s.attemptNumber(ctx, a)
		if err != nil {
			return Attempt{}, err
		}
		a.AttemptNumber = n
	}
	return a, nil
}

func (s *Service) attemptNumber(ctx context.Context, a Attempt) (int, error) {
	attempts, err := s.store.ListByStudent(ctx, a.StudentID)
	if err != nil {
		return 0, fmt.Errorf("list attempts: %w", err)
	}
	SortChronological(attempts)
	numberAttempts(attempts)
	for _, other := range attempts {
		if other.ID == a.ID {
			return other.AttemptNumber, nil
		}
	}
	return 0, nil
}

// History returns the student's attempts oldest first, each with its
// questions. Completed attempts carry their attempt number.
func (s *Service) History(ctx context.Context, studentID string) ([]Attempt, error) {
	if _, err := s.students.Get(ctx, studentID); err != nil {
		return nil, err
	}
	attempts, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	SortChronological(attempts)
	numberAttempts(attempts)
	if attempts == nil {
		attempts = []Attempt{}
	}
	return attempts, nil
}

func (s *Service) grade(a Attempt, req SubmitRequest) (Completion, error) {
	rate := s.policy.DeductionRate

	groups := make(map[int][]int) // unit -> indexes into questions
	questions := make([]Question, 0, len(req.Questions))
	for i, in := range req.Questions {
		q, err := s.resolveQuestion(a, in)
		if err != nil {
			return Completion{}, fmt.Errorf("question %d: %w", i+1, err)
		}
		q.Position = i + 1
		groups[groupKey(q)] = append(groups[groupKey(q)], len(questions))
		questions = append(questions, q)
	}

	// Questions without a weight share their part's pool evenly.
	for _, idxs := range groups {
		var unweighted []int
		for _, i := range idxs {
			if questions[i].MaxWeight == 0 {
				unweighted = append(unweighted, i)
			}
		}
		weights := scoring.Weights(len(unweighted))
		for n, i := range unweighted {
			questions[i].MaxWeight = weights[n]
		}
	}

	for i := range questions {
		score, err := scoring.QuestionScore(questions[i].MaxWeight, questions[i].Mistakes, rate)
		if err != nil {
			return Completion{}, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions[i].AchievedScore = score
	}

	part, err := scoring.PartScore(marksFor(questions, KindCurrentPart, a.Unit), rate)
	if err != nil {
		return Completion{}, err
	}
	// Below the gatekeeper the exam ends on the current part: no review part
	// is tested and no override can pass it.
	forced := req.ForcedFail || !s.policy.GatekeeperMet(part)

	var cumulative []float64
	for _, unit := range a.ReviewUnits {
		marks := marksFor(questions, KindCumulative, unit)
		if forced {
			if len(marks) > 0 {
				return Completion{}, apperr.InvalidInput("review unit %d tested although the current part scored %v, below the gatekeeper", unit, part)
			}
			continue
		}
		// A review unit without questions scores 0.
		score, err := scoring.PartScore(marks, rate)
		if err != nil {
			return Completion{}, err
		}
		cumulative = append(cumulative, score)
	}

	final := scoring.FinalScore(part, cumulative)
	passed := false
	if !forced {
		if req.ScoreOverride != nil {
			if err := scoring.CheckOverride(*req.ScoreOverride); err != nil {
				return Completion{}, err
			}
			final = *req.ScoreOverride
		}
		passed = s.policy.Decide(final, true, req.PassedOverride)
	}

	notes := cleanText(req.Notes)
	if notes == "" {
		notes = a.Notes
	}

	return Completion{
		Questions:   questions,
		FinalScore:  final,
		Passed:      passed,
		Notes:       notes,
		CompletedAt: s.now(),
	}, nil
}

func (s *Service) resolveQuestion(a Attempt, in QuestionInput) (Question, error) {
	q := Question{Kind: in.Kind, Unit: in.Unit, Mistakes: in.Mistakes, MaxWeight: in.MaxWeight}
	if in.Mistakes < 0 {
		return q, apperr.InvalidInput("mistake count %d is negative", in.Mistakes)
	}
	if in.MaxWeight < 0 {
		return q, apperr.InvalidInput("max weight %v must be positive", in.MaxWeight)
	}

	switch in.Kind {
	case KindCurrentPart:
		if q.Unit == 0 {
			q.Unit = a.Unit
		}
		if q.Unit != a.Unit {
			return q, apperr.InvalidInput("current part question on unit %d, attempt is unit %d", q.Unit, a.Unit)
		}
	case KindCumulative:
		if q.Unit == 0 && len(a.ReviewUnits) == 1 {
			q.Unit = a.ReviewUnits[0]
		}
		if !slices.Contains(a.ReviewUnits, q.Unit) {
			return q, apperr.InvalidInput("unit %d is not a review unit of this attempt", q.Unit)
		}
	default:
		return q, apperr.InvalidInput("unknown question kind %q", in.Kind)
	}
	return q, nil
}

func (s *Service) logEvent(ctx context.Context, e Event) {
	if err := s.events.LogEvent(ctx, e); err != nil {
		slog.Warn("failed to log exam event", "type", e.EventType, "attempt_id", e.AttemptID, "error", err)
	}
}

func groupKey(q Question) int {
	if q.Kind == KindCurrentPart {
		return 0
	}
	return q.Unit
}

func marksFor(questions []Question, kind QuestionKind, unit int) []scoring.Mark {
	var marks []scoring.Mark
	for _, q := range questions {
		if q.Kind == kind && q.Unit == unit {
			marks = append(marks, scoring.Mark{MaxWeight: q.MaxWeight, Mistakes: q.Mistakes})
		}
	}
	return marks
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
