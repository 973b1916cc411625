package exam

import "time"

// Status is the persisted lifecycle of an attempt.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

// QuestionKind says which part of the exam a question belongs to.
type QuestionKind string

const (
	KindCurrentPart QuestionKind = "CURRENT_PART"
	KindCumulative  QuestionKind = "CUMULATIVE"
)

// Valid reports whether k is a known kind.
func (k QuestionKind) Valid() bool {
	return k == KindCurrentPart || k == KindCumulative
}

// Attempt is one oral examination of a student on a primary unit, optionally
// with review units. FinalScore and Passed stay nil until the attempt is
// completed and never change afterwards.
type Attempt struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"student_id"`
	Unit          int        `json:"unit"`
	ReviewUnits   []int      `json:"review_units"`
	Date          time.Time  `json:"date"`
	Status        Status     `json:"status"`
	FinalScore    *float64   `json:"final_score"`
	Passed        *bool      `json:"passed"`
	ExaminerID    string     `json:"examiner_id"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Questions     []Question `json:"questions"`
	AttemptNumber int        `json:"attempt_number,omitempty"`
}

// Units returns the primary unit followed by the review units.
func (a Attempt) Units() []int {
	return append([]int{a.Unit}, a.ReviewUnits...)
}

// Touches reports whether the attempt examined unit.
func (a Attempt) Touches(unit int) bool {
	if a.Unit == unit {
		return true
	}
	for _, r := range a.ReviewUnits {
		if r == unit {
			return true
		}
	}
	return false
}

// Question is a graded question row. AchievedScore is always derived from
// MaxWeight, Mistakes and the deduction rate.
type Question struct {
	ID            string       `json:"id"`
	AttemptID     string       `json:"exam_attempt_id"`
	Kind          QuestionKind `json:"kind"`
	Unit          int          `json:"unit"`
	Position      int          `json:"position"`
	Mistakes      int          `json:"mistake_count"`
	MaxWeight     float64      `json:"max_weight"`
	AchievedScore float64      `json:"achieved_score"`
}

// QuestionInput is a question as reported by the examiner. A zero MaxWeight
// takes an even share of its part's pool.
type QuestionInput struct {
	Kind      QuestionKind `json:"kind"`
	Unit      int          `json:"unit"`
	Mistakes  int          `json:"mistake_count"`
	MaxWeight float64      `json:"max_weight,omitempty"`
}

// CreateRequest opens a pending attempt.
type CreateRequest struct {
	StudentID   string
	Unit        int
	ReviewUnits []int
	Date        time.Time
	Notes       string
	ExaminerID  string
}

// SubmitRequest grades a pending attempt. ForcedFail is set when the exam was
// ended at the gatekeeper; it fails the attempt whatever the overrides say.
type SubmitRequest struct {
	Questions      []QuestionInput
	ScoreOverride  *float64
	PassedOverride *bool
	Notes          string
	ForcedFail     bool
}

// Completion is what the store writes when an attempt completes.
type Completion struct {
	Questions   []Question
	FinalScore  float64
	Passed      bool
	Notes       string
	CompletedAt time.Time
}
