package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/database"
)

// RosterRepository provides PostgreSQL-backed roster storage
type RosterRepository struct {
	pool *Pool
	loc  *time.Location
}

// NewRosterRepository creates a new PostgreSQL roster repository.
// Stored timestamps are interpreted in loc.
func NewRosterRepository(pool *Pool, loc *time.Location) *RosterRepository {
	if loc == nil {
		loc = time.Local
	}
	return &RosterRepository{pool: pool, loc: loc}
}

// LoadRoster returns every identity ordered by ID
func (r *RosterRepository) LoadRoster(ctx context.Context) ([]attendance.Identity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, class, total_attendance, email, phone, last_attendance
		FROM roster
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	var identities []attendance.Identity
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
		identities = append(identities, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster rows: %w", err)
	}
	return identities, nil
}

// SaveRoster upserts the snapshot in one transaction
func (r *RosterRepository) SaveRoster(ctx context.Context, identities []attendance.Identity) error {
	err := r.pool.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO roster (id, name, class, total_attendance, email, phone, last_attendance)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				class = EXCLUDED.class,
				total_attendance = EXCLUDED.total_attendance,
				email = EXCLUDED.email,
				phone = EXCLUDED.phone,
				last_attendance = EXCLUDED.last_attendance
		`)
		if err != nil {
			return fmt.Errorf("prepare roster upsert: %w", err)
		}
		defer stmt.Close()

		for _, ident := range identities {
			if _, err := stmt.ExecContext(ctx, ident.ID, ident.Name, ident.Class, ident.TotalAttendance,
				ident.Email, ident.Phone, database.NullTimestamp(ident.LastAttendance)); err != nil {
				return fmt.Errorf("upsert identity %s: %w", ident.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save roster: %w", err)
	}
	return nil
}
