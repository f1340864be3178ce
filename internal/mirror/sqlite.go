// Package mirror provides the durable snapshot backends for the schedule
// cache. A mirror stores the full date-keyed schedule wholesale and is read
// back only when the remote store is unreachable at startup.
package mirror

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/example/dutyroster/internal/duty"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS assignments (
	date  TEXT PRIMARY KEY,
	name  TEXT NOT NULL,
	phone TEXT NOT NULL
);
`

// SQLite persists schedule snapshots in a local SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the snapshot database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("mirror: failed to open sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mirror: failed to prepare schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Save replaces the stored snapshot with the provided schedule in one
// transaction.
func (s *SQLite) Save(ctx context.Context, schedule duty.Schedule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mirror: failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assignments`); err != nil {
		return fmt.Errorf("mirror: failed to clear snapshot: %w", err)
	}
	for date, assignment := range schedule {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO assignments (date, name, phone) VALUES (?, ?, ?)`,
			date, assignment.EmployeeName, assignment.Phone,
		); err != nil {
			return fmt.Errorf("mirror: failed to write %s: %w", date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mirror: failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot back as a full schedule.
func (s *SQLite) Load(ctx context.Context) (duty.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, name, phone FROM assignments`)
	if err != nil {
		return nil, fmt.Errorf("mirror: failed to read snapshot: %w", err)
	}
	defer rows.Close()

	schedule := make(duty.Schedule)
	for rows.Next() {
		var assignment duty.Assignment
		if err := rows.Scan(&assignment.Date, &assignment.EmployeeName, &assignment.Phone); err != nil {
			return nil, fmt.Errorf("mirror: failed to scan snapshot row: %w", err)
		}
		schedule[assignment.Date] = assignment
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mirror: failed to iterate snapshot: %w", err)
	}
	return schedule, nil
}

// Ping verifies the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
