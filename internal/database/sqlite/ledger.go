package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
)

type LedgerRepository struct {
	db     *sql.DB
	writer *Worker
}

func (l *LedgerRepository) AppendEvent(ctx context.Context, event attendance.AttendanceEvent) error {
	return l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO attendance_events(event_id, identity_id, name, timestamp, status)
VALUES (?, ?, ?, ?, ?);
`,
			event.EventID, event.IdentityID, event.Name,
			attendance.FormatTimestamp(event.Timestamp), string(event.Status),
		); err != nil {
			return fmt.Errorf("AppendEvent insert: %w", err)
		}
		return nil
	})
}

// ListEvents returns the events of one identity in append order.
func (l *LedgerRepository) ListEvents(ctx context.Context, identityID string, loc *time.Location) ([]attendance.AttendanceEvent, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT event_id, identity_id, name, timestamp, status
FROM attendance_events
WHERE identity_id = ?
ORDER BY seq;
`, identityID)
	if err != nil {
		return nil, fmt.Errorf("ListEvents query: %w", err)
	}
	defer rows.Close()

	var out []attendance.AttendanceEvent
	for rows.Next() {
		var ev attendance.AttendanceEvent
		var ts, status string
		if err := rows.Scan(&ev.EventID, &ev.IdentityID, &ev.Name, &ts, &status); err != nil {
			return nil, fmt.Errorf("ListEvents scan: %w", err)
		}
		if ev.Timestamp, err = attendance.ParseTimestamp(ts, loc); err != nil {
			return nil, fmt.Errorf("ListEvents timestamp %q: %w", ts, err)
		}
		ev.Status = attendance.Status(status)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListEvents rows: %w", err)
	}
	return out, nil
}
