// Package mariadb implements the roster, ledger and enrollment repositories on MariaDB/MySQL.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool and ensures the schema exists.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	p := &Pool{db: db}
	if err := p.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// schema is applied statement by statement; the driver runs one statement per Exec.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS roster (
		id               VARCHAR(64) NOT NULL PRIMARY KEY,
		name             VARCHAR(255) NOT NULL DEFAULT '',
		class            VARCHAR(255) NOT NULL DEFAULT '',
		total_attendance INT UNSIGNED NOT NULL DEFAULT 0,
		email            VARCHAR(255) NOT NULL DEFAULT '',
		phone            VARCHAR(64) NOT NULL DEFAULT '',
		last_attendance  VARCHAR(19) NULL
	) DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS attendance_events (
		seq         BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		event_id    CHAR(36) NOT NULL UNIQUE,
		identity_id VARCHAR(64) NOT NULL,
		name        VARCHAR(255) NOT NULL DEFAULT '',
		timestamp   VARCHAR(19) NOT NULL,
		status      VARCHAR(32) NOT NULL,
		INDEX idx_attendance_events_identity (identity_id, timestamp)
	) DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		id              BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		identity_id     VARCHAR(64) NOT NULL,
		source_path     VARCHAR(1024) NOT NULL DEFAULT '',
		embedding_json  MEDIUMBLOB NOT NULL,
		det_score       DOUBLE NOT NULL DEFAULT 0,
		model           VARCHAR(255) NOT NULL DEFAULT '',
		created_at_ms   BIGINT NOT NULL,
		INDEX idx_enrollments_identity (identity_id)
	) DEFAULT CHARSET=utf8mb4`,
}

func (p *Pool) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}
