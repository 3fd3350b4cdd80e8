package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Executor runs catalog queries over the connection a describe is using.
// It must be re-entrant with Describe itself: catalog lookups are issued
// between Describe's own round trips on the same connection.
type Executor interface {
	// Query executes a SQL statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a SQL statement that returns at most one row.
	// A missing row surfaces from Scan as an errs.ErrKindNotFound error.
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Preparer creates and drops server-side prepared statements.
type Preparer interface {
	// Prepare parses and describes sql under name. The returned description
	// carries the parameter oids and the raw row description.
	Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)

	// Deallocate releases the prepared statement name.
	Deallocate(ctx context.Context, name string) error
}

// Session is a single exclusively-owned connection.
type Session interface {
	Executor
	Preparer
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Row is an abstraction over a single database row.
type Row interface {
	Scan(dest ...any) error
}
