package database

import (
	"context"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
)

// RosterReader loads the persisted roster table.
type RosterReader interface {
	// LoadRoster returns every persisted identity. Malformed rows are an error.
	LoadRoster(ctx context.Context) ([]attendance.Identity, error)
}

// RosterWriter persists roster snapshots.
type RosterWriter interface {
	// SaveRoster upserts every identity in the snapshot. Rows missing from the
	// snapshot are left untouched so a partial roster never erases identities.
	SaveRoster(ctx context.Context, identities []attendance.Identity) error
}

// RosterRepository is the persisted backing table of the roster store.
type RosterRepository interface {
	RosterReader
	RosterWriter
}

// LedgerWriter is append access to the attendance event log.
type LedgerWriter interface {
	// AppendEvent durably appends one event. Each append is atomic.
	AppendEvent(ctx context.Context, event attendance.AttendanceEvent) error
}

// EnrollmentReader provides read access to enrolled face embeddings
type EnrollmentReader interface {
	// ListEnrollments returns all enrollments ordered by ID
	ListEnrollments(ctx context.Context) ([]StoredEnrollment, error)
	// CountEnrollments returns the number of stored enrollments
	CountEnrollments(ctx context.Context) (int, error)
}

// EnrollmentWriter provides write access to enrolled face embeddings
type EnrollmentWriter interface {
	EnrollmentReader

	// ReplaceEnrollments replaces all enrollments of one identity in a single transaction
	ReplaceEnrollments(ctx context.Context, identityID string, enrollments []StoredEnrollment) error
}

// Backend bundles the repositories of one storage backend.
// Enrollments is nil for backends that cannot store embeddings.
type Backend struct {
	Name        string
	Roster      RosterRepository
	Ledger      LedgerWriter
	Enrollments EnrollmentWriter
	Close       func() error
}
