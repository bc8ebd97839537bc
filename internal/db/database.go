// Package db is the durable store for time blocks, weekly schedules and reservations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the venue store.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// sqlite serialises writers anyway; one connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS time_blocks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			duration REAL NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// One document per weekday; special dates are embedded as a JSON array.
		`CREATE TABLE IF NOT EXISTS day_schedules (
			day_of_week INTEGER PRIMARY KEY CHECK (day_of_week BETWEEN 0 AND 6),
			block_ids TEXT NOT NULL DEFAULT '[]',
			is_rest_day BOOLEAN NOT NULL DEFAULT 0,
			rest_day_fee INTEGER NOT NULL DEFAULT 0,
			special_dates TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			event_date DATETIME NOT NULL,
			event_day TEXT NOT NULL,
			event_time TEXT NOT NULL DEFAULT '',
			block_id TEXT NOT NULL,
			block_name TEXT NOT NULL DEFAULT '',
			block_start TEXT NOT NULL DEFAULT '',
			block_end TEXT NOT NULL DEFAULT '',
			customer_name TEXT NOT NULL DEFAULT '',
			customer_phone TEXT NOT NULL DEFAULT '',
			customer_email TEXT NOT NULL,
			beneficiary_name TEXT NOT NULL DEFAULT '',
			beneficiary_age INTEGER NOT NULL DEFAULT 0,
			package_id TEXT NOT NULL DEFAULT '',
			price_base INTEGER NOT NULL DEFAULT 0,
			price_food INTEGER NOT NULL DEFAULT 0,
			price_extras INTEGER NOT NULL DEFAULT 0,
			price_theme INTEGER NOT NULL DEFAULT 0,
			price_rest_day_fee INTEGER NOT NULL DEFAULT 0,
			price_total INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			payment_status TEXT NOT NULL DEFAULT 'pending',
			comments TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_time_blocks_active ON time_blocks(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_time_blocks_start ON time_blocks(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_day ON reservations(event_day, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_email ON reservations(customer_email, event_date)`,
		// At most one live reservation per day and block.
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_reservations_slot
			ON reservations(event_day, block_id) WHERE status != 'cancelled'`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// withTx runs fn inside a transaction, committing when it returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// BackupTo writes a consistent copy of the database to path.
func (db *DB) BackupTo(ctx context.Context, path string) error {
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}
	return nil
}
