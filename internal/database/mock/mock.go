// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/database"
)

// MockRosterRepository is a mock implementation of database.RosterRepository
type MockRosterRepository struct {
	mu   sync.RWMutex
	rows map[string]attendance.Identity

	saveCalls int

	// Error injection
	LoadError error
	SaveError error
}

// NewMockRosterRepository creates a new mock roster repository seeded with identities
func NewMockRosterRepository(identities ...attendance.Identity) *MockRosterRepository {
	m := &MockRosterRepository{rows: make(map[string]attendance.Identity)}
	for _, ident := range identities {
		m.rows[ident.ID] = ident.Clone()
	}
	return m
}

// LoadRoster returns all stored identities ordered by ID
func (m *MockRosterRepository) LoadRoster(ctx context.Context) ([]attendance.Identity, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]attendance.Identity, 0, len(m.rows))
	for _, ident := range m.rows {
		out = append(out, ident.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveRoster upserts the snapshot
func (m *MockRosterRepository) SaveRoster(ctx context.Context, identities []attendance.Identity) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCalls++
	for _, ident := range identities {
		m.rows[ident.ID] = ident.Clone()
	}
	return nil
}

// Identity returns the persisted row for id
func (m *MockRosterRepository) Identity(id string) (attendance.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ident, ok := m.rows[id]
	return ident.Clone(), ok
}

// SaveCalls returns how many snapshots were written
func (m *MockRosterRepository) SaveCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveCalls
}

// MockLedger is a mock implementation of database.LedgerWriter
type MockLedger struct {
	mu     sync.Mutex
	events []attendance.AttendanceEvent

	// Error injection
	AppendError error
}

// NewMockLedger creates an empty mock ledger
func NewMockLedger() *MockLedger {
	return &MockLedger{}
}

// AppendEvent records the event
func (m *MockLedger) AppendEvent(ctx context.Context, event attendance.AttendanceEvent) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of all appended events in append order
func (m *MockLedger) Events() []attendance.AttendanceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]attendance.AttendanceEvent, len(m.events))
	copy(out, m.events)
	return out
}

// MockEnrollmentStore is a mock implementation of database.EnrollmentWriter
type MockEnrollmentStore struct {
	mu          sync.RWMutex
	enrollments []database.StoredEnrollment
	nextID      int64

	// Error injection
	ListError    error
	ReplaceError error
}

// NewMockEnrollmentStore creates an empty mock enrollment store
func NewMockEnrollmentStore() *MockEnrollmentStore {
	return &MockEnrollmentStore{nextID: 1}
}

// ListEnrollments returns all enrollments
func (m *MockEnrollmentStore) ListEnrollments(ctx context.Context) ([]database.StoredEnrollment, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.StoredEnrollment, len(m.enrollments))
	copy(out, m.enrollments)
	return out, nil
}

// CountEnrollments returns the number of enrollments
func (m *MockEnrollmentStore) CountEnrollments(ctx context.Context) (int, error) {
	if m.ListError != nil {
		return 0, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.enrollments), nil
}

// ReplaceEnrollments replaces all enrollments of one identity, assigning IDs
func (m *MockEnrollmentStore) ReplaceEnrollments(ctx context.Context, identityID string, enrollments []database.StoredEnrollment) error {
	if m.ReplaceError != nil {
		return m.ReplaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.enrollments[:0]
	for _, e := range m.enrollments {
		if e.IdentityID != identityID {
			kept = append(kept, e)
		}
	}
	m.enrollments = kept
	for _, e := range enrollments {
		e.ID = m.nextID
		e.IdentityID = identityID
		m.nextID++
		m.enrollments = append(m.enrollments, e)
	}
	return nil
}
