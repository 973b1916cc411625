package exam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/halaqah/internal/platform/apperr"
)

const dbTimeout = 5 * time.Second

const attemptColumns = `a.id::text, a.student_id::text, a.unit, a.review_units, a.exam_date,
	a.status, a.final_score::float8, a.passed, a.examiner_id, a.notes, a.created_at, a.completed_at`

// PostgresStore is a PostgreSQL-backed attempt store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed attempt store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, a Attempt) (Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	reviews := a.ReviewUnits
	if reviews == nil {
		reviews = []int{}
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts (student_id, unit, review_units, exam_date, examiner_id, notes)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6)
		 RETURNING id::text, status, created_at`,
		a.StudentID,
		a.Unit,
		reviews,
		a.Date,
		a.ExaminerID,
		a.Notes,
	).Scan(&a.ID, &a.Status, &a.CreatedAt)
	if err != nil {
		return Attempt{}, fmt.Errorf("create exam attempt: %w", err)
	}
	a.ReviewUnits = reviews
	a.Questions = []Question{}
	return a, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	a, err := scanAttempt(s.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM exam_attempts a
		 WHERE a.id::text = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attempt{}, apperr.NotFound("exam attempt", id)
		}
		return Attempt{}, fmt.Errorf("get exam attempt: %w", err)
	}

	questions, err := s.questions(ctx, `WHERE q.exam_attempt_id::text = $1`, id)
	if err != nil {
		return Attempt{}, err
	}
	a.Questions = questions[a.ID]
	if a.Questions == nil {
		a.Questions = []Question{}
	}
	return a, nil
}

func (s *PostgresStore) Complete(ctx context.Context, id string, c Completion) (Attempt, error) {
	txCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := pgx.BeginFunc(txCtx, s.pool, func(tx pgx.Tx) error {
		var status Status
		err := tx.QueryRow(txCtx,
			`SELECT status FROM exam_attempts WHERE id::text = $1 FOR UPDATE`,
			id,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("exam attempt", id)
			}
			return fmt.Errorf("lock exam attempt: %w", err)
		}
		if status != StatusPending {
			return apperr.ErrAlreadyCompleted
		}

		batch := &pgx.Batch{}
		for _, q := range c.Questions {
			batch.Queue(
				`INSERT INTO exam_questions (exam_attempt_id, kind, unit, position, mistake_count, max_weight, achieved_score)
				 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)`,
				id, string(q.Kind), q.Unit, q.Position, q.Mistakes, q.MaxWeight, q.AchievedScore,
			)
		}
		br := tx.SendBatch(txCtx, batch)
		for range c.Questions {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert exam question: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("insert exam questions: %w", err)
		}

		_, err = tx.Exec(txCtx,
			`UPDATE exam_attempts
			 SET status = 'COMPLETED', final_score = $2, passed = $3, notes = $4, completed_at = $5
			 WHERE id::text = $1`,
			id, c.FinalScore, c.Passed, c.Notes, c.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("complete exam attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return Attempt{}, err
	}
	return s.Get(ctx, id)
}

func (s *PostgresStore) ListByStudent(ctx context.Context, studentID string) ([]Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM exam_attempts a
		 WHERE a.student_id::text = $1
		 ORDER BY a.exam_date ASC, a.created_at ASC`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query exam attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exam attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exam attempts: %w", err)
	}

	questions, err := s.questions(ctx,
		`JOIN exam_attempts a ON a.id = q.exam_attempt_id WHERE a.student_id::text = $1`,
		studentID,
	)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Questions = questions[out[i].ID]
		if out[i].Questions == nil {
			out[i].Questions = []Question{}
		}
	}
	return out, nil
}

func (s *PostgresStore) questions(ctx context.Context, where string, arg string) (map[string][]Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT q.id::text, q.exam_attempt_id::text, q.kind, q.unit, q.position,
		        q.mistake_count, q.max_weight::float8, q.achieved_score::float8
		 FROM exam_questions q `+where+`
		 ORDER BY q.position ASC`,
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("query exam questions: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Question)
	for rows.Next() {
		var q Question
		if err := rows.Scan(
			&q.ID,
			&q.AttemptID,
			&q.Kind,
			&q.Unit,
			&q.Position,
			&q.Mistakes,
			&q.MaxWeight,
			&q.AchievedScore,
		); err != nil {
			return nil, fmt.Errorf("scan exam question: %w", err)
		}
		out[q.AttemptID] = append(out[q.AttemptID], q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exam questions: %w", err)
	}
	return out, nil
}

func scanAttempt(row pgx.Row) (Attempt, error) {
	var a Attempt
	err := row.Scan(
		&a.ID,
		&a.StudentID,
		&a.Unit,
		&a.ReviewUnits,
		&a.Date,
		&a.Status,
		&a.FinalScore,
		&a.Passed,
		&a.ExaminerID,
		&a.Notes,
		&a.CreatedAt,
		&a.CompletedAt,
	)
	if a.ReviewUnits == nil {
		a.ReviewUnits = []int{}
	}
	return a, err
}
