package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/p-n-ai/halaqah/internal/platform/apperr"
)

type errorBody struct {
	Error     string `json:"error"`
	Cap       *int   `json:"cap,omitempty"`
	Used      *int   `json:"used,omitempty"`
	Requested *int   `json:"requested,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// writeError maps the ledger error taxonomy to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	var budget *apperr.BudgetExceededError
	var status int
	switch {
	case errors.As(err, &budget):
		status = http.StatusUnprocessableEntity
		body.Cap, body.Used, body.Requested = &budget.Cap, &budget.Used, &budget.Requested
	case errors.Is(err, apperr.ErrBudgetExceeded):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrAlreadyCompleted):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	default:
		slog.Error("request failed", "error", err)
		status = http.StatusInternalServerError
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into dst and validates its struct tags.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.InvalidInput("malformed request body: %v", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.InvalidInput("%v", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+" failed "+fe.Tag())
	}
	return apperr.InvalidInput("%s", strings.Join(fields, "; "))
}
