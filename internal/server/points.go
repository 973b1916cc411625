package server

import (
	"net/http"
	"strconv"

	"github.com/p-n-ai/halaqah/internal/auth"
	"github.com/p-n-ai/halaqah/internal/platform/apperr"
	"github.com/p-n-ai/halaqah/internal/points"
)

// awardRequest awards either a configured rule or a manual amount.
type awardRequest struct {
	StudentID string         `json:"student_id" validate:"required"`
	SessionID string         `json:"session_id"`
	Rule      points.RuleKey `json:"rule" validate:"required_without=Amount,excluded_with=Amount"`
	Amount    *int           `json:"amount" validate:"required_without=Rule"`
	Reason    string         `json:"reason" validate:"max=500"`
}

type awardResponse struct {
	Applied     bool                `json:"applied"`
	Transaction *points.Transaction `json:"transaction"`
}

func (s *Server) handleAwardPoints(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	var req awardRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if req.Rule != "" {
		if err := auth.CanAwardRule(a); err != nil {
			writeError(w, err)
			return
		}
	} else if err := auth.CanAwardManual(a); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.studentInScope(r, req.StudentID); err != nil {
		writeError(w, err)
		return
	}

	if req.Rule != "" {
		tx, err := s.points.AwardFromRule(r.Context(), req.StudentID, req.Rule, req.SessionID, a.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if tx == nil {
			writeJSON(w, http.StatusOK, awardResponse{Applied: false})
			return
		}
		writeJSON(w, http.StatusCreated, awardResponse{Applied: true, Transaction: tx})
		return
	}

	tx, err := s.points.AwardManual(r.Context(), req.StudentID, *req.Amount, req.Reason, req.SessionID, a.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if tx == nil {
		writeJSON(w, http.StatusOK, awardResponse{Applied: false})
		return
	}
	writeJSON(w, http.StatusCreated, awardResponse{Applied: true, Transaction: tx})
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	if err := auth.CanAwardManual(a); err != nil {
		writeError(w, err)
		return
	}
	usage, err := s.points.Usage(r.Context(), a.ID, r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) handlePointHistory(w http.ResponseWriter, r *http.Request) {
	if err := auth.CanRead(actor(r)); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	if _, err := s.studentInScope(r, id); err != nil {
		writeError(w, err)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, apperr.InvalidInput("limit %q must be a positive integer", v))
			return
		}
		limit = n
	}

	history, err := s.points.History(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if err := auth.CanRead(actor(r)); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	if _, err := s.studentInScope(r, id); err != nil {
		writeError(w, err)
		return
	}
	balance, err := s.points.Balance(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"student_id": id, "balance": balance})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if err := auth.CanAudit(actor(r)); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	if _, err := s.studentInScope(r, id); err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.points.Reconcile(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
