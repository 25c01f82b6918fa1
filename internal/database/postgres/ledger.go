package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint violation.
const uniqueViolation = "23505"

// ErrDuplicateEvent is returned when an event ID is appended twice.
var ErrDuplicateEvent = errors.New("duplicate event id")

// LedgerRepository appends attendance events to the attendance_events table
type LedgerRepository struct {
	pool *Pool
}

// NewLedgerRepository creates a new PostgreSQL ledger
func NewLedgerRepository(pool *Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// AppendEvent inserts one event. A single INSERT is atomic.
func (r *LedgerRepository) AppendEvent(ctx context.Context, event attendance.AttendanceEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO attendance_events (event_id, identity_id, name, timestamp, status)
		VALUES ($1, $2, $3, $4, $5)
	`, event.EventID, event.IdentityID, event.Name, attendance.FormatTimestamp(event.Timestamp), string(event.Status))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("append event %s: %w", event.EventID, ErrDuplicateEvent)
		}
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// CountEvents returns the number of ledger events for one identity
func (r *LedgerRepository) CountEvents(ctx context.Context, identityID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM attendance_events WHERE identity_id = $1", identityID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}
