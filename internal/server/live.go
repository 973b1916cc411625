package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/halaqah/internal/auth"
	"github.com/p-n-ai/halaqah/internal/exam"
	"github.com/p-n-ai/halaqah/internal/platform/apperr"
)

const liveIdleTimeout = 30 * time.Minute

// liveCommand drives the exam wizard over the websocket. Question is the
// slot index within the part named by Kind.
type liveCommand struct {
	Op        string            `json:"op" validate:"required,oneof=select bind start add remove proceed fail confirm override commit"`
	Kind      exam.QuestionKind `json:"kind,omitempty"`
	Question  int               `json:"question"`
	Unit      int               `json:"unit,omitempty"`
	Reviews   []int             `json:"reviews,omitempty"`
	AttemptID string            `json:"attempt_id,omitempty"`
	Date      string            `json:"date,omitempty"`
	Notes     string            `json:"notes,omitempty"`
	Score     *float64          `json:"score,omitempty"`
	Passed    *bool             `json:"passed,omitempty"`
}

type liveReply struct {
	Session exam.Session  `json:"session"`
	Preview exam.Preview  `json:"preview"`
	Attempt *exam.Attempt `json:"attempt,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// handleLive runs one examination wizard per connection. The wizard's state
// lives only in this handler until the commit command persists it; closing
// the connection earlier leaves nothing behind.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	if err := auth.CanExamine(a); err != nil {
		writeError(w, err)
		return
	}
	studentID := r.URL.Query().Get("student_id")
	if _, err := s.studentInScope(r, studentID); err != nil {
		writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	sess := s.exams.NewSession(studentID)
	for {
		readCtx, cancel := context.WithTimeout(ctx, liveIdleTimeout)
		var cmd liveCommand
		err := wsjson.Read(readCtx, conn, &cmd)
		cancel()
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				slog.Info("exam live session ended", "student_id", studentID, "stage", sess.Stage, "error", err)
			}
			return
		}

		reply := liveReply{}
		next, attempt, err := s.applyLive(r, sess, cmd)
		if err != nil {
			reply.Error = err.Error()
		}
		// Commit may fail only in its follow-up award, after the attempt is stored.
		if err == nil || attempt != nil {
			sess = next
		}
		reply.Session = sess
		reply.Preview = sess.Preview()
		reply.Attempt = attempt

		if err := wsjson.Write(ctx, conn, reply); err != nil {
			slog.Warn("websocket write failed", "student_id", studentID, "error", err)
			return
		}
		if sess.Stage == exam.StageCommitted {
			conn.Close(websocket.StatusNormalClosure, "committed")
			return
		}
	}
}

func (s *Server) applyLive(r *http.Request, sess exam.Session, cmd liveCommand) (exam.Session, *exam.Attempt, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return sess, nil, validationError(err)
	}

	switch cmd.Op {
	case "select":
		date, err := parseDate(cmd.Date)
		if err != nil {
			return sess, nil, err
		}
		next, err := sess.Select(cmd.Unit, cmd.Reviews)
		if err != nil {
			return sess, nil, err
		}
		next.Date = date
		next.Notes = cmd.Notes
		return next, nil, nil
	case "bind":
		attempt, err := s.attemptInScope(r, cmd.AttemptID)
		if err != nil {
			return sess, nil, err
		}
		if attempt.StudentID != sess.StudentID {
			return sess, nil, apperr.InvalidInput("attempt %s belongs to another student", cmd.AttemptID)
		}
		next, err := sess.ForAttempt(attempt)
		return next, nil, err
	case "start":
		next, err := sess.Start()
		return next, nil, err
	case "add":
		next, err := sess.AddMistake(cmd.Kind, cmd.Question)
		return next, nil, err
	case "remove":
		next, err := sess.RemoveMistake(cmd.Kind, cmd.Question)
		return next, nil, err
	case "proceed":
		next, err := sess.Proceed()
		return next, nil, err
	case "fail":
		next, err := sess.FailEarly()
		return next, nil, err
	case "confirm":
		next, err := sess.ConfirmCumulative()
		return next, nil, err
	case "override":
		next, err := sess.Override(cmd.Score, cmd.Passed)
		return next, nil, err
	case "commit":
		attempt, next, err := s.exams.Commit(r.Context(), sess, actor(r).ID)
		if attempt.ID == "" {
			return sess, nil, err
		}
		return next, &attempt, err
	}
	return sess, nil, apperr.InvalidInput("unknown op %q", cmd.Op)
}
