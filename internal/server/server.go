// Package server exposes the exam and point ledgers over HTTP.
package server

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/p-n-ai/halaqah/internal/auth"
	"github.com/p-n-ai/halaqah/internal/curriculum"
	"github.com/p-n-ai/halaqah/internal/exam"
	"github.com/p-n-ai/halaqah/internal/points"
	"github.com/p-n-ai/halaqah/internal/student"
)

const readyTimeout = 2 * time.Second

// Authenticator resolves a bearer token to an actor.
type Authenticator interface {
	Authenticate(token string) (auth.Actor, error)
}

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the server's collaborators.
type Config struct {
	Exams      *exam.Service
	Points     *points.Ledger
	Students   student.Directory
	Curriculum *curriculum.Index
	Auth       Authenticator
	Checks     map[string]Pinger
}

// Server routes HTTP requests to the ledgers.
type Server struct {
	exams      *exam.Service
	points     *points.Ledger
	students   student.Directory
	curriculum *curriculum.Index
	auth       Authenticator
	checks     map[string]Pinger
	validate   *validator.Validate
}

// New creates a server.
func New(cfg Config) *Server {
	idx := cfg.Curriculum
	if idx == nil {
		idx = curriculum.Default()
	}
	return &Server{
		exams:      cfg.Exams,
		points:     cfg.Points,
		students:   cfg.Students,
		curriculum: idx,
		auth:       cfg.Auth,
		checks:     cfg.Checks,
		validate:   newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.Handle("GET /curriculum/units", s.authed(s.handleUnits))

	mux.Handle("POST /exams", s.authed(s.handleCreateExam))
	mux.Handle("GET /exams/live", s.authed(s.handleLive))
	mux.Handle("GET /exams/{id}", s.authed(s.handleGetExam))
	mux.Handle("POST /exams/{id}/submit", s.authed(s.handleSubmitExam))
	mux.Handle("GET /students/{id}/exams", s.authed(s.handleExamHistory))
	mux.Handle("GET /students/{id}/exam-card", s.authed(s.handleExamCard))
	mux.Handle("GET /students/{id}/exam-card.xlsx", s.authed(s.handleExamCardXLSX))

	mux.Handle("POST /points", s.authed(s.handleAwardPoints))
	mux.Handle("GET /points/budget", s.authed(s.handleBudget))
	mux.Handle("GET /students/{id}/points", s.authed(s.handlePointHistory))
	mux.Handle("GET /students/{id}/balance", s.authed(s.handleBalance))
	mux.Handle("GET /students/{id}/points/audit", s.authed(s.handleAudit))

	return logRequests(mux)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, c := range s.checks {
		if err := c.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	if err := auth.CanRead(actor(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.curriculum.All())
}
