package mariadb

import (
	"context"
	"fmt"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
)

// LedgerRepository appends to the attendance_events table.
type LedgerRepository struct {
	pool *Pool
}

func NewLedgerRepository(pool *Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (l *LedgerRepository) AppendEvent(ctx context.Context, event attendance.AttendanceEvent) error {
	query := `INSERT INTO attendance_events (event_id, identity_id, name, timestamp, status) VALUES (?, ?, ?, ?, ?)`
	if _, err := l.pool.db.ExecContext(ctx, query, event.EventID, event.IdentityID, event.Name,
		attendance.FormatTimestamp(event.Timestamp), string(event.Status)); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}
