package points

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

// PostgresStore is a PostgreSQL-backed Store. The balance lives in
// students.total_points and is only changed inside Append's transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed point store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Append(ctx context.Context, tx Transaction) (Transaction, int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var balance int
	err := pgx.BeginFunc(ctx, s.pool, func(dbtx pgx.Tx) error {
		err := dbtx.QueryRow(ctx,
			`UPDATE students
			 SET total_points = total_points + $2
			 WHERE id::text = $1
			 RETURNING total_points`,
			tx.StudentID,
			tx.Amount,
		).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("student", tx.StudentID)
			}
			return fmt.Errorf("increment balance: %w", err)
		}

		err = dbtx.QueryRow(ctx,
			`INSERT INTO point_transactions (student_id, amount, reason, source_kind, session_id, awarded_by)
			 VALUES ($1::uuid, $2, $3, $4, $5, $6)
			 RETURNING id::text, created_at`,
			tx.StudentID,
			tx.Amount,
			tx.Reason,
			string(tx.SourceKind),
			nullIfEmpty(tx.SessionID),
			nullIfEmpty(tx.AwardedBy),
		).Scan(&tx.ID, &tx.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return Transaction{}, 0, err
	}
	return tx, balance, nil
}

func (s *PostgresStore) ManualUsage(ctx context.Context, teacherID, sessionID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var used int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(ABS(amount)), 0)
		 FROM point_transactions
		 WHERE awarded_by = $1
		   AND session_id = $2
		   AND source_kind IN ('MANUAL_REWARD', 'MANUAL_PENALTY')`,
		teacherID,
		sessionID,
	).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("manual usage: %w", err)
	}
	return used, nil
}

func (s *PostgresStore) History(ctx context.Context, studentID string, limit int) ([]Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, student_id::text, amount, reason, source_kind,
		        COALESCE(session_id, ''), COALESCE(awarded_by, ''), created_at
		 FROM point_transactions
		 WHERE student_id::text = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		studentID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var tx Transaction
		var kind string
		if err := rows.Scan(
			&tx.ID,
			&tx.StudentID,
			&tx.Amount,
			&tx.Reason,
			&kind,
			&tx.SessionID,
			&tx.AwardedBy,
			&tx.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.SourceKind = SourceKind(kind)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Balance(ctx context.Context, studentID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var balance int
	err := s.pool.QueryRow(ctx,
		`SELECT total_points FROM students WHERE id::text = $1`,
		studentID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperr.NotFound("student", studentID)
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) LedgerSum(ctx context.Context, studentID string) (int, error) {
	if _, err := s.Balance(ctx, studentID); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var sum int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM point_transactions WHERE student_id::text = $1`,
		studentID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
