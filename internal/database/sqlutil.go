package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
)

// NullTimestamp formats an optional timestamp for a nullable TEXT column.
func NullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: attendance.FormatTimestamp(*t), Valid: true}
}

// ParseNullTimestamp parses a nullable TEXT timestamp column in loc.
// NULL and empty strings mean "never attended".
func ParseNullTimestamp(s sql.NullString, loc *time.Location) (*time.Time, error) {
	if !s.Valid || strings.TrimSpace(s.String) == "" {
		return nil, nil
	}
	t, err := attendance.ParseTimestamp(strings.TrimSpace(s.String), loc)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", s.String, err)
	}
	return &t, nil
}
