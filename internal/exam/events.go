package exam

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Lifecycle events recorded for every attempt.
const (
	EventExamCreated   = "exam_created"
	EventExamCompleted = "exam_completed"
)

// Event records one step in an attempt's life: its creation as PENDING and
// its single transition to COMPLETED.
type Event struct {
	AttemptID string
	StudentID string
	EventType string
	Data      map[string]any
	CreatedAt time.Time
}

// EventLogger records attempt lifecycle events. A failing logger never fails
// the exam operation that produced the event.
type EventLogger interface {
	LogEvent(ctx context.Context, event Event) error
}

func checkEvent(e Event) error {
	switch e.EventType {
	case EventExamCreated, EventExamCompleted:
	case "":
		return fmt.Errorf("event_type is required")
	default:
		return fmt.Errorf("unknown exam event %q", e.EventType)
	}
	if e.AttemptID == "" || e.StudentID == "" {
		return fmt.Errorf("%s event needs attempt_id and student_id", e.EventType)
	}
	return nil
}

// NopEventLogger drops events. The memory store runs with it.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(context.Context, Event) error { return nil }

// MemoryEventLogger keeps an attempt timeline in memory.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{}
}

func (l *MemoryEventLogger) LogEvent(_ context.Context, e Event) error {
	if err := checkEvent(e); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

// Events returns every recorded event in logging order.
func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

// Timeline returns the event types recorded for one attempt, oldest first.
func (l *MemoryEventLogger) Timeline(attemptID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var types []string
	for _, e := range l.events {
		if e.AttemptID == attemptID {
			types = append(types, e.EventType)
		}
	}
	return types
}

// PostgresEventLogger inserts events into the events table.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

func (l *PostgresEventLogger) LogEvent(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if err := checkEvent(event); err != nil {
		return err
	}

	payload := map[string]any{"attempt_id": event.AttemptID}
	for k, v := range event.Data {
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = l.pool.Exec(ctx,
		`INSERT INTO events (student_id, event_type, data, created_at)
		 VALUES ($1::uuid, $2, $3::jsonb, $4)`,
		event.StudentID,
		event.EventType,
		string(data),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.EventType,
		"attempt_id", event.AttemptID,
		"student_id", event.StudentID,
	)
	return nil
}
