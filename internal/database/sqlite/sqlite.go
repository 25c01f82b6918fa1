// Package sqlite implements the roster, ledger and enrollment repositories on
// an embedded SQLite file. It is the default backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DSN builds a modernc.org/sqlite DSN with per-connection PRAGMAs.
func DSN(path string) string {
	return fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)
}

// DB is an open SQLite database plus its single writer.
type DB struct {
	db     *sql.DB
	writer *Worker
	loc    *time.Location
}

// Open opens (creating if needed) the database file at path and applies migrations.
// Stored timestamps are interpreted in loc.
func Open(ctx context.Context, path string, loc *time.Location) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	return open(ctx, DSN(path), loc)
}

func open(ctx context.Context, dsn string, loc *time.Location) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// Single connection: reads and the writer share it, SQLite never sees
	// two writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if loc == nil {
		loc = time.Local
	}
	return &DB{db: db, writer: NewWorker(db), loc: loc}, nil
}

// Close stops the writer and closes the database.
func (d *DB) Close() error {
	d.writer.Close()
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("closing sqlite database: %w", err)
	}
	return nil
}

// Roster returns the roster repository.
func (d *DB) Roster() *RosterRepository {
	return &RosterRepository{db: d.db, writer: d.writer, loc: d.loc}
}

// Ledger returns the attendance event ledger.
func (d *DB) Ledger() *LedgerRepository {
	return &LedgerRepository{db: d.db, writer: d.writer}
}

// Enrollments returns the enrollment repository.
func (d *DB) Enrollments() *EnrollmentRepository {
	return &EnrollmentRepository{db: d.db, writer: d.writer}
}
