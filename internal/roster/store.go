// Package roster holds the in-memory identity table and its single mutation
// path for attendance counters.
package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/database"
	"github.com/google/uuid"
)

// ErrNotLoaded is returned by Persist before a successful Load. Writing an
// unloaded roster back would upsert nothing useful and hide a startup bug.
var ErrNotLoaded = errors.New("roster not loaded")

type entry struct {
	mu    sync.Mutex
	ident attendance.Identity

	// persistMu orders row writes for this identity; held without mu so
	// readers are not blocked by storage I/O.
	persistMu sync.Mutex
}

// Store owns the identity table. The map itself is guarded by mu; each
// identity's counters are guarded by its entry lock, so updates for
// different identities never wait on each other.
type Store struct {
	repo database.RosterRepository

	mu      sync.RWMutex
	entries map[string]*entry
	loaded  bool

	persistMu sync.Mutex
}

// New creates an empty store backed by repo. Call Load before use.
func New(repo database.RosterRepository) *Store {
	return &Store{
		repo:    repo,
		entries: make(map[string]*entry),
	}
}

// Load replaces the in-memory table with the persisted roster. Rows with an
// empty or duplicate id or a negative count are rejected as a whole.
func (s *Store) Load(ctx context.Context) error {
	identities, err := s.repo.LoadRoster(ctx)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	entries := make(map[string]*entry, len(identities))
	for i, ident := range identities {
		ident.ID = strings.TrimSpace(ident.ID)
		if ident.ID == "" {
			return fmt.Errorf("load roster: row %d has an empty id", i+1)
		}
		if _, dup := entries[ident.ID]; dup {
			return fmt.Errorf("load roster: duplicate id %q", ident.ID)
		}
		if ident.TotalAttendance < 0 {
			return fmt.Errorf("load roster: identity %s has negative attendance count %d", ident.ID, ident.TotalAttendance)
		}
		entries[ident.ID] = &entry{ident: ident.Clone()}
	}

	s.mu.Lock()
	s.entries = entries
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *Store) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

// Get returns a copy of the identity.
func (s *Store) Get(id string) (attendance.Identity, bool) {
	e := s.lookup(id)
	if e == nil {
		return attendance.Identity{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ident.Clone(), true
}

// Has reports whether id is in the roster.
func (s *Store) Has(id string) bool {
	return s.lookup(id) != nil
}

// Len returns the number of identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// List returns copies of all identities ordered by id.
func (s *Store) List() []attendance.Identity {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]attendance.Identity, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.ident.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RecordAttendance is the atomic check-and-update for one identity. Under the
// identity's lock it re-checks the debounce against the current last time,
// appends the event to ledger and only then bumps the counter and timestamp.
// applied is false when another caller recorded an event inside the debounce
// interval first. A ledger failure leaves the counters untouched.
func (s *Store) RecordAttendance(ctx context.Context, id string, now time.Time, debounce time.Duration,
	ledger database.LedgerWriter) (attendance.Identity, bool, error) {
	e := s.lookup(id)
	if e == nil {
		return attendance.Identity{}, false, fmt.Errorf("%w: %s", attendance.ErrUnknownIdentity, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if last := e.ident.LastAttendance; last != nil && attendance.WithinDebounce(*last, now, debounce) {
		return e.ident.Clone(), false, nil
	}

	event := attendance.AttendanceEvent{
		EventID:    uuid.NewString(),
		IdentityID: e.ident.ID,
		Name:       e.ident.Name,
		Timestamp:  now,
		Status:     attendance.StatusPresent,
	}
	// Once the append is issued it must not be abandoned by a cancelled
	// caller: a committed event with an unbumped counter would break
	// count == events.
	if err := ledger.AppendEvent(context.WithoutCancel(ctx), event); err != nil {
		return e.ident.Clone(), false, fmt.Errorf("%w: %w", attendance.ErrPersistenceFailure, err)
	}

	e.ident.TotalAttendance++
	t := now
	e.ident.LastAttendance = &t
	return e.ident.Clone(), true, nil
}

// PersistIdentity writes the current row of one identity. Writes for the same
// identity are serialized and each copies the row after taking the order
// lock, so the last write always carries the newest state. Other identities
// are never waited on.
func (s *Store) PersistIdentity(ctx context.Context, id string) error {
	e := s.lookup(id)
	if e == nil {
		return fmt.Errorf("%w: %s", attendance.ErrUnknownIdentity, id)
	}

	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	e.mu.Lock()
	row := e.ident.Clone()
	e.mu.Unlock()

	if err := s.repo.SaveRoster(ctx, []attendance.Identity{row}); err != nil {
		return fmt.Errorf("%w: save identity %s: %w", attendance.ErrPersistenceFailure, id, err)
	}
	return nil
}

// Persist writes a snapshot of the whole roster. Each identity is copied under
// its own lock so no snapshot observes a half-applied update, and concurrent
// Persist calls are serialized so an older snapshot never lands last.
func (s *Store) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if !loaded {
		return ErrNotLoaded
	}

	if err := s.repo.SaveRoster(ctx, s.List()); err != nil {
		return fmt.Errorf("%w: save roster: %w", attendance.ErrPersistenceFailure, err)
	}
	return nil
}
