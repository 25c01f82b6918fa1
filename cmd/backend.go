package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/config"
	"github.com/MMOSHII/Face-Attendance-System/internal/database"
	"github.com/MMOSHII/Face-Attendance-System/internal/database/csvfile"
	"github.com/MMOSHII/Face-Attendance-System/internal/database/mariadb"
	"github.com/MMOSHII/Face-Attendance-System/internal/database/postgres"
	"github.com/MMOSHII/Face-Attendance-System/internal/database/sqlite"
)

// openBackend connects to the storage selected by DATABASE_URL.
func openBackend(ctx context.Context, cfg *config.Config, loc *time.Location) (*database.Backend, error) {
	kind, target, err := cfg.Database.Backend()
	if err != nil {
		return nil, err
	}

	switch kind {
	case config.BackendPostgres:
		fmt.Println("Connecting to PostgreSQL database...")
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return &database.Backend{
			Name:        "PostgreSQL",
			Roster:      postgres.NewRosterRepository(pool, loc),
			Ledger:      postgres.NewLedgerRepository(pool),
			Enrollments: postgres.NewEnrollmentRepository(pool),
			Close:       pool.Close,
		}, nil

	case config.BackendMariaDB:
		fmt.Println("Connecting to MariaDB database...")
		pool, err := mariadb.NewPool(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		return &database.Backend{
			Name:        "MariaDB",
			Roster:      mariadb.NewRosterRepository(pool, loc),
			Ledger:      mariadb.NewLedgerRepository(pool),
			Enrollments: mariadb.NewEnrollmentRepository(pool),
			Close:       pool.Close,
		}, nil

	case config.BackendSQLite:
		fmt.Printf("Opening SQLite database %s...\n", target)
		db, err := sqlite.Open(ctx, target, loc)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		return &database.Backend{
			Name:        "SQLite",
			Roster:      db.Roster(),
			Ledger:      db.Ledger(),
			Enrollments: db.Enrollments(),
			Close:       db.Close,
		}, nil

	case config.BackendCSV:
		fmt.Printf("Using CSV files in %s...\n", target)
		store, err := csvfile.New(target, loc)
		if err != nil {
			return nil, fmt.Errorf("failed to open CSV store: %w", err)
		}
		return &database.Backend{
			Name:   "CSV",
			Roster: store,
			Ledger: store,
			Close:  func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unsupported backend %q", kind)
}
