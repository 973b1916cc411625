package student

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

// PostgresDirectory reads students from the students table.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory creates a PostgreSQL-backed directory.
func NewPostgresDirectory(pool *pgxpool.Pool) (*PostgresDirectory, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresDirectory{pool: pool}, nil
}

func (d *PostgresDirectory) Get(ctx context.Context, id string) (Student, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var s Student
	err := d.pool.QueryRow(ctx,
		`SELECT id::text, tenant_id, name, total_points
		 FROM students
		 WHERE id::text = $1`,
		id,
	).Scan(&s.ID, &s.TenantID, &s.Name, &s.TotalPoints)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Student{}, apperr.NotFound("student", id)
		}
		return Student{}, fmt.Errorf("get student: %w", err)
	}
	return s, nil
}

// Create inserts a student row with a zero balance and returns its id.
func (d *PostgresDirectory) Create(ctx context.Context, tenantID, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id string
	err := d.pool.QueryRow(ctx,
		`INSERT INTO students (tenant_id, name) VALUES ($1, $2) RETURNING id::text`,
		tenantID, name,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create student: %w", err)
	}
	return id, nil
}
