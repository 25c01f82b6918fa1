package mariadb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/database"
)

// RosterRepository stores the roster in the roster table.
type RosterRepository struct {
	pool *Pool
	loc  *time.Location
}

func NewRosterRepository(pool *Pool, loc *time.Location) *RosterRepository {
	if loc == nil {
		loc = time.Local
	}
	return &RosterRepository{pool: pool, loc: loc}
}

func (r *RosterRepository) LoadRoster(ctx context.Context) ([]attendance.Identity, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT id, name, class, total_attendance, email, phone, last_attendance FROM roster ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	var out []attendance.Identity
	for rows.Next() {
		var ident attendance.Identity
		var last sql.NullString
		if err := rows.Scan(&ident.ID, &ident.Name, &ident.Class, &ident.TotalAttendance,
			&ident.Email, &ident.Phone, &last); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", err)
		}
		if ident.LastAttendance, err = database.ParseNullTimestamp(last, r.loc); err != nil {
			return nil, fmt.Errorf("roster row %s: %w", ident.ID, err)
		}
		out = append(out, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster rows: %w", err)
	}
	return out, nil
}

func (r *RosterRepository) SaveRoster(ctx context.Context, identities []attendance.Identity) error {
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `INSERT INTO roster (id, name, class, total_attendance, email, phone, last_attendance)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name), class = VALUES(class), total_attendance = VALUES(total_attendance),
			email = VALUES(email), phone = VALUES(phone), last_attendance = VALUES(last_attendance)`
	for _, ident := range identities {
		if _, err := tx.ExecContext(ctx, query, ident.ID, ident.Name, ident.Class, ident.TotalAttendance,
			ident.Email, ident.Phone, database.NullTimestamp(ident.LastAttendance)); err != nil {
			return fmt.Errorf("upsert identity %s: %w", ident.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster: %w", err)
	}
	return nil
}
