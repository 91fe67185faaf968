package database

import "context"

// Engine is the connection handle returned by Open. It represents the
// ability to open connections to one data source. The caller owns it and
// must call Close when done.
type Engine interface {
	// Dialect returns the dialect name (e.g. DialectPostgres).
	Dialect() string

	// URL returns the connection string the engine was built from, with the
	// password redacted.
	URL() string

	// Connect checks out a single connection. The caller must Close it.
	Connect(ctx context.Context) (Conn, error)

	// Close releases all resources held by the engine.
	Close()
}

// Conn is one live connection obtained from an Engine.
type Conn interface {
	// Query executes raw SQL text, unmodified, and returns its rows.
	Query(ctx context.Context, sql string) (Rows, error)

	// Close returns the connection to its engine.
	Close() error
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}
