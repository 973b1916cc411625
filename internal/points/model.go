package points

import "time"

// SourceKind classifies the event a transaction came from.
type SourceKind string

const (
	SourceRecitation    SourceKind = "RECITATION"
	SourceAttendance    SourceKind = "ATTENDANCE"
	SourceExam          SourceKind = "EXAM"
	SourceManualReward  SourceKind = "MANUAL_REWARD"
	SourceManualPenalty SourceKind = "MANUAL_PENALTY"
)

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceRecitation, SourceAttendance, SourceExam, SourceManualReward, SourceManualPenalty:
		return true
	}
	return false
}

// Manual reports whether k counts against a teacher's session budget.
func (k SourceKind) Manual() bool {
	return k == SourceManualReward || k == SourceManualPenalty
}

// Transaction is one immutable ledger row. SessionID and AwardedBy are empty
// when not applicable.
type Transaction struct {
	ID         string     `json:"id"`
	StudentID  string     `json:"student_id"`
	Amount     int        `json:"amount"`
	Reason     string     `json:"reason"`
	SourceKind SourceKind `json:"source_kind"`
	SessionID  string     `json:"session_id,omitempty"`
	AwardedBy  string     `json:"awarded_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Usage is a teacher's manual budget position within one session.
type Usage struct {
	Cap       int `json:"cap"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// Reconciliation compares the stored balance with the sum of the ledger.
type Reconciliation struct {
	StudentID string `json:"student_id"`
	Balance   int    `json:"balance"`
	LedgerSum int    `json:"ledger_sum"`
	Drift     int    `json:"drift"`
}
