// Package points keeps the student point ledger: an append-only transaction
// log whose running sum is materialized as each student's balance.
package points

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/p-n-ai/halaqah/internal/platform/apperr"
	"github.com/p-n-ai/halaqah/internal/platform/lock"
	"github.com/p-n-ai/halaqah/internal/student"
)

const (
	defaultBudgetCap    = 20
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	maxReasonLen        = 500
)

// LedgerConfig holds dependencies for the point ledger.
type LedgerConfig struct {
	Store        Store
	Students     student.Directory
	Rules        *Rules
	Locker       lock.Locker
	BudgetCap    int // manual points one teacher may move per session (default 20)
	HistoryLimit int // rows returned when the caller passes no limit (default 50)
}

// Ledger is the only writer of student balances.
type Ledger struct {
	store        Store
	students     student.Directory
	rules        *Rules
	locker       lock.Locker
	budgetCap    int
	historyLimit int
}

// NewLedger creates a point ledger.
func NewLedger(cfg LedgerConfig) *Ledger {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	locker := cfg.Locker
	if locker == nil {
		locker = lock.NewMemory()
	}
	budgetCap := cfg.BudgetCap
	if budgetCap == 0 {
		budgetCap = defaultBudgetCap
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit == 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Ledger{
		store:        cfg.Store,
		students:     cfg.Students,
		rules:        rules,
		locker:       locker,
		budgetCap:    budgetCap,
		historyLimit: historyLimit,
	}
}

// AwardRequest describes one ledger entry.
type AwardRequest struct {
	StudentID string
	Amount    int
	Reason    string
	Kind      SourceKind
	SessionID string
	AwardedBy string
}

// Award appends a transaction and moves the student's balance by its amount.
func (l *Ledger) Award(ctx context.Context, req AwardRequest) (Transaction, error) {
	if req.Amount == 0 {
		return Transaction{}, apperr.InvalidInput("amount must be non-zero")
	}
	tx, err := l.prepare(ctx, req)
	if err != nil {
		return Transaction{}, err
	}
	return l.write(ctx, tx)
}

// AwardFromRule awards the points configured for key. An inactive or
// zero-valued rule is a no-op and returns a nil transaction with no error.
func (l *Ledger) AwardFromRule(ctx context.Context, studentID string, key RuleKey, sessionID, awardedBy string) (*Transaction, error) {
	rule, ok := l.rules.Lookup(key)
	if !ok {
		return nil, apperr.NotFound("rule", string(key))
	}
	if !rule.Effective() {
		slog.Debug("points rule inactive", "rule", key, "student_id", studentID)
		return nil, nil
	}
	kind, _ := key.Kind()

	tx, err := l.Award(ctx, AwardRequest{
		StudentID: studentID,
		Amount:    rule.Points,
		Reason:    string(key),
		Kind:      kind,
		SessionID: sessionID,
		AwardedBy: awardedBy,
	})
	if err != nil {
		slog.Error("rule award failed", "rule", key, "student_id", studentID, "error", err)
		return nil, err
	}
	return &tx, nil
}

// AwardManual records a teacher's reward (amount >= 0) or penalty (amount < 0)
// against the teacher's per-session budget. The budget read and the write run
// under one lock per (teacher, session). A zero amount is validated like any
// other but writes nothing and returns a nil transaction.
func (l *Ledger) AwardManual(ctx context.Context, studentID string, amount int, reason, sessionID, teacherID string) (*Transaction, error) {
	kind := SourceManualReward
	if amount < 0 {
		kind = SourceManualPenalty
	}
	tx, err := l.prepare(ctx, AwardRequest{
		StudentID: studentID,
		Amount:    amount,
		Reason:    reason,
		Kind:      kind,
		SessionID: sessionID,
		AwardedBy: teacherID,
	})
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		slog.Debug("zero manual award skipped", "teacher_id", teacherID, "student_id", studentID)
		return nil, nil
	}

	unlock, err := l.locker.Lock(ctx, budgetKey(teacherID, sessionID))
	if err != nil {
		return nil, fmt.Errorf("lock manual budget: %w", err)
	}
	defer unlock()

	used, err := l.store.ManualUsage(ctx, teacherID, sessionID)
	if err != nil {
		return nil, err
	}
	if used+abs(amount) > l.budgetCap {
		slog.Warn("manual award rejected",
			"teacher_id", teacherID,
			"session_id", sessionID,
			"cap", l.budgetCap,
			"used", used,
			"requested", abs(amount),
		)
		return nil, &apperr.BudgetExceededError{Cap: l.budgetCap, Used: used, Requested: abs(amount)}
	}

	stored, err := l.write(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// Usage reports a teacher's manual budget position in a session.
func (l *Ledger) Usage(ctx context.Context, teacherID, sessionID string) (Usage, error) {
	if teacherID == "" || sessionID == "" {
		return Usage{}, apperr.InvalidInput("teacher and session are required")
	}
	used, err := l.store.ManualUsage(ctx, teacherID, sessionID)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Cap: l.budgetCap, Used: used, Remaining: max(0, l.budgetCap-used)}, nil
}

// History returns the student's transactions newest first. A non-positive
// limit uses the configured default.
func (l *Ledger) History(ctx context.Context, studentID string, limit int) ([]Transaction, error) {
	if _, err := l.students.Get(ctx, studentID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = l.historyLimit
	}
	limit = min(limit, maxHistoryLimit)

	txs, err := l.store.History(ctx, studentID, limit)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return txs, nil
}

// Balance returns the materialized balance.
func (l *Ledger) Balance(ctx context.Context, studentID string) (int, error) {
	return l.store.Balance(ctx, studentID)
}

// Reconcile recomputes the balance from the full log and reports any drift.
// It is an offline audit; the hot path never sums history.
func (l *Ledger) Reconcile(ctx context.Context, studentID string) (Reconciliation, error) {
	balance, err := l.store.Balance(ctx, studentID)
	if err != nil {
		return Reconciliation{}, err
	}
	sum, err := l.store.LedgerSum(ctx, studentID)
	if err != nil {
		return Reconciliation{}, err
	}
	rec := Reconciliation{StudentID: studentID, Balance: balance, LedgerSum: sum, Drift: balance - sum}
	if rec.Drift != 0 {
		slog.Warn("points balance drift", "student_id", studentID, "balance", balance, "ledger_sum", sum)
	}
	return rec, nil
}

func (l *Ledger) prepare(ctx context.Context, req AwardRequest) (Transaction, error) {
	if !req.Kind.Valid() {
		return Transaction{}, apperr.InvalidInput("unknown source kind %q", req.Kind)
	}
	if req.Kind.Manual() {
		if req.AwardedBy == "" {
			return Transaction{}, apperr.InvalidInput("manual awards require the awarding teacher")
		}
		if req.SessionID == "" {
			return Transaction{}, apperr.InvalidInput("manual awards require a session")
		}
	}
	if req.Kind == SourceAttendance && req.SessionID == "" {
		return Transaction{}, apperr.InvalidInput("attendance awards require a session")
	}

	reason := norm.NFC.String(strings.TrimSpace(req.Reason))
	if reason == "" {
		return Transaction{}, apperr.InvalidInput("reason is required")
	}
	if len([]rune(reason)) > maxReasonLen {
		return Transaction{}, apperr.InvalidInput("reason longer than %d characters", maxReasonLen)
	}

	if _, err := l.students.Get(ctx, req.StudentID); err != nil {
		return Transaction{}, err
	}

	return Transaction{
		StudentID:  req.StudentID,
		Amount:     req.Amount,
		Reason:     reason,
		SourceKind: req.Kind,
		SessionID:  req.SessionID,
		AwardedBy:  req.AwardedBy,
	}, nil
}

func (l *Ledger) write(ctx context.Context, tx Transaction) (Transaction, error) {
	stored, balance, err := l.store.Append(ctx, tx)
	if err != nil {
		return Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	slog.Info("points awarded",
		"student_id", stored.StudentID,
		"amount", stored.Amount,
		"source_kind", stored.SourceKind,
		"session_id", stored.SessionID,
		"balance", balance,
	)
	return stored, nil
}

func budgetKey(teacherID, sessionID string) string {
	return "manual:" + teacherID + ":" + sessionID
}
