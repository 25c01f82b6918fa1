// Package csvfile stores the roster and the ledger in the plain CSV layout
// used by earlier deployments: students.csv and attendance.csv in one directory.
// It has no enrollment storage.
package csvfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
)

const (
	RosterFile = "students.csv"
	LedgerFile = "attendance.csv"
)

// Store is a directory holding students.csv and attendance.csv.
type Store struct {
	dir string
	loc *time.Location

	rosterMu sync.Mutex
	ledgerMu sync.Mutex
}

// New creates the directory if needed.
func New(dir string, loc *time.Location) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create csv dir: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Store{dir: dir, loc: loc}, nil
}

func (s *Store) rosterPath() string { return filepath.Join(s.dir, RosterFile) }
func (s *Store) ledgerPath() string { return filepath.Join(s.dir, LedgerFile) }

// LoadRoster reads students.csv. A missing file is an empty roster.
func (s *Store) LoadRoster(ctx context.Context) ([]attendance.Identity, error) {
	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()
	return s.readRoster()
}

func (s *Store) readRoster() ([]attendance.Identity, error) {
	data, err := os.ReadFile(s.rosterPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	identities, err := ReadRoster(bytes.NewReader(data), s.loc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", RosterFile, err)
	}
	return identities, nil
}

// SaveRoster merges the snapshot into students.csv and replaces the file
// atomically. Rows not in the snapshot are kept.
func (s *Store) SaveRoster(ctx context.Context, identities []attendance.Identity) error {
	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()

	existing, err := s.readRoster()
	if err != nil {
		return err
	}

	merged := make(map[string]attendance.Identity, len(existing)+len(identities))
	for _, ident := range existing {
		merged[ident.ID] = ident
	}
	for _, ident := range identities {
		merged[ident.ID] = ident
	}
	rows := make([]attendance.Identity, 0, len(merged))
	for _, ident := range merged {
		rows = append(rows, ident)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	var buf bytes.Buffer
	if err := WriteRoster(&buf, rows); err != nil {
		return err
	}
	return writeFileAtomic(s.rosterPath(), buf.Bytes())
}

// AppendEvent appends one line to attendance.csv with a single write on an
// O_APPEND descriptor, creating the file with a header first if needed.
func (s *Store) AppendEvent(ctx context.Context, event attendance.AttendanceEvent) error {
	line, err := ledgerRecord(event)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	f, err := os.OpenFile(s.ledgerPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if info.Size() == 0 {
		line = append([]byte(strings.Join(LedgerHeader, ",")+"\n"), line...)
	}

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
