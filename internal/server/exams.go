package server

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/p-n-ai/halaqah/internal/auth"
	"github.com/p-n-ai/halaqah/internal/exam"
	"github.com/p-n-ai/halaqah/internal/platform/apperr"
	"github.com/p-n-ai/halaqah/internal/student"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type createExamRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	Unit        int    `json:"unit" validate:"required,min=1,max=30"`
	ReviewUnits []int  `json:"review_units" validate:"omitempty,max=29,dive,min=1,max=30"`
	Date        string `json:"date" validate:"omitempty"`
	Notes       string `json:"notes" validate:"max=2000"`
}

type questionRequest struct {
	Kind      exam.QuestionKind `json:"kind" validate:"required,oneof=CURRENT_PART CUMULATIVE"`
	Unit      int               `json:"unit" validate:"min=0,max=30"`
	Mistakes  int               `json:"mistakes" validate:"min=0"`
	MaxWeight float64           `json:"max_weight" validate:"gte=0"`
}

type submitExamRequest struct {
	Questions      []questionRequest `json:"questions" validate:"required,min=1,dive"`
	ScoreOverride  *float64          `json:"score_override" validate:"omitempty,gte=0,lte=100"`
	PassedOverride *bool             `json:"passed_override"`
	Notes          string            `json:"notes" validate:"max=2000"`
}

// parseDate accepts an empty string or YYYY-MM-DD.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperr.InvalidInput("date %q is not YYYY-MM-DD", s)
	}
	return d, nil
}

// studentInScope resolves the student in the caller's tenant.
func (s *Server) studentInScope(r *http.Request, studentID string) (student.Student, error) {
	return student.InTenant(r.Context(), s.students, actor(r).TenantID, studentID)
}

func (s *Server) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	if err := auth.CanExamine(a); err != nil {
		writeError(w, err)
		return
	}
	var req createExamRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.studentInScope(r, req.StudentID); err != nil {
		writeError(w, err)
		return
	}

	attempt, err := s.exams.CreateAttempt(r.Context(), exam.CreateRequest{
		StudentID:   req.StudentID,
		Unit:        req.Unit,
		ReviewUnits: req.ReviewUnits,
		Date:        date,
		Notes:       req.Notes,
		ExaminerID:  a.ID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (s *Server) handleSubmitExam(w http.ResponseWriter, r *http.Request) {
	if err := auth.CanExamine(actor(r)); err != nil {
		writeError(w, err)
		return
	}
	var req submitExamRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.attemptInScope(r, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	questions := make([]exam.QuestionInput, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = exam.QuestionInput{Kind: q.Kind, Unit: q.Unit, Mistakes: q.Mistakes, MaxWeight: q.MaxWeight}
	}
	done, err := s.exams.SubmitAttempt(r.Context(), r.PathValue("id"), exam.SubmitRequest{
		Questions:      questions,
		ScoreOverride:  req.ScoreOverride,
		PassedOverride: req.PassedOverride,
		Notes:          req.Notes,
	})
	if err != nil && done.ID == "" {
		writeError(w, err)
		return
	}
	// The attempt is completed even when the follow-up points award failed.
	writeJSON(w, http.StatusOK, done)
}

func (s *Server) handleGetExam(w http.ResponseWriter, r *http.Request) {
	if err := auth.CanRead(actor(r)); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.attemptInScope(r, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	attempt, err := s.exams.Attempt(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

// attemptInScope loads an attempt and hides it when its student belongs to
// another tenant.
func (s *Server) attemptInScope(r *http.Request, id string) (exam.Attempt, error) {
	attempt, err := s.exams.Attempt(r.Context(), id)
	if err != nil {
		return exam.Attempt{}, err
	}
	if _, err := s.studentInScope(r, attempt.StudentID); err != nil {
		return exam.Attempt{}, apperr.NotFound("exam attempt", id)
	}
	return attempt, nil
}

func (s *Server) handleExamHistory(w http.ResponseWriter, r *http.Request) {
	if err := auth.CanRead(actor(r)); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	if _, err := s.studentInScope(r, id); err != nil {
		writeError(w, err)
		return
	}
	history, err := s.exams.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleExamCard(w http.ResponseWriter, r *http.Request) {
	if err := auth.CanRead(actor(r)); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	if _, err := s.studentInScope(r, id); err != nil {
		writeError(w, err)
		return
	}
	card, err := s.exams.Card(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleExamCardXLSX(w http.ResponseWriter, r *http.Request) {
	if err := auth.CanRead(actor(r)); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	if _, err := s.studentInScope(r, id); err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := s.exams.ExportCard(r.Context(), id, &buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="exam-card-%s.xlsx"`, id))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
