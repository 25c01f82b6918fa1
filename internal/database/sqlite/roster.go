package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/database"
)

type RosterRepository struct {
	db     *sql.DB
	writer *Worker
	loc    *time.Location
}

func (r *RosterRepository) LoadRoster(ctx context.Context) ([]attendance.Identity, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, class, total_attendance, email, phone, last_attendance
FROM roster
ORDER BY id;
`)
	if err != nil {
		return nil, fmt.Errorf("LoadRoster query: %w", err)
	}
	defer rows.Close()

	var out []attendance.Identity
	for rows.Next() {
		var ident attendance.Identity
		var last sql.NullString
		if err := rows.Scan(&ident.ID, &ident.Name, &ident.Class, &ident.TotalAttendance,
			&ident.Email, &ident.Phone, &last); err != nil {
			return nil, fmt.Errorf("LoadRoster scan: %w", err)
		}
		if ident.LastAttendance, err = database.ParseNullTimestamp(last, r.loc); err != nil {
			return nil, fmt.Errorf("LoadRoster row %s: %w", ident.ID, err)
		}
		out = append(out, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("LoadRoster rows: %w", err)
	}
	return out, nil
}

func (r *RosterRepository) SaveRoster(ctx context.Context, identities []attendance.Identity) error {
	return r.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO roster(id, name, class, total_attendance, email, phone, last_attendance)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name = excluded.name,
  class = excluded.class,
  total_attendance = excluded.total_attendance,
  email = excluded.email,
  phone = excluded.phone,
  last_attendance = excluded.last_attendance;
`)
		if err != nil {
			return fmt.Errorf("SaveRoster prepare: %w", err)
		}
		defer stmt.Close()

		for _, ident := range identities {
			if _, err := stmt.ExecContext(ctx, ident.ID, ident.Name, ident.Class, ident.TotalAttendance,
				ident.Email, ident.Phone, database.NullTimestamp(ident.LastAttendance)); err != nil {
				return fmt.Errorf("SaveRoster upsert %s: %w", ident.ID, err)
			}
		}
		return nil
	})
}
