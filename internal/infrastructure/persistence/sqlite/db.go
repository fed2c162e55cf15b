// Package sqlite implements student.Repository on SQLite through the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private throwaway database.
// PRE: path is non-empty
// POST: the returned handle uses a single connection and has all tables
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// One connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// InitSchema creates the tables if they do not exist.
// PRE: db is a valid database connection
// POST: students and student_grades exist, foreign keys enforced
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL CHECK (length(trim(name)) > 0)
	);

	CREATE TABLE IF NOT EXISTS student_grades (
		student_id INTEGER NOT NULL,
		position   INTEGER NOT NULL,
		grade      INTEGER NOT NULL CHECK (grade BETWEEN 2 AND 5),
		PRIMARY KEY (student_id, position),
		FOREIGN KEY (student_id) REFERENCES students(id) ON DELETE CASCADE
	);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
