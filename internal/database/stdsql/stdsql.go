// Package stdsql adapts a database/sql pool to database.Engine. The mysql
// and sqlite dialects, and the lib/pq flavour of postgres, are built on it;
// each supplies a Classifier for its driver's native errors.
package stdsql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/koustreak/ingest/internal/database"
	"github.com/koustreak/ingest/internal/errs"
)

// Classifier maps a driver-native error to an ErrKind. ok is false when the
// error is not recognised, in which case the caller's fallback kind applies.
type Classifier func(err error) (kind errs.ErrKind, msg string, ok bool)

// Engine is a database.Engine backed by *sql.DB.
// It is safe for concurrent use by multiple goroutines.
type Engine struct {
	db       *sql.DB
	dialect  string
	url      string
	classify Classifier
}

// New wraps db. url should already be redacted.
func New(db *sql.DB, dialect, url string, classify Classifier) *Engine {
	return &Engine{db: db, dialect: dialect, url: url, classify: classify}
}

func (e *Engine) Dialect() string { return e.dialect }
func (e *Engine) URL() string     { return e.url }

// DB exposes the underlying pool.
func (e *Engine) DB() *sql.DB { return e.db }

// Connect checks out a dedicated *sql.Conn.
func (e *Engine) Connect(ctx context.Context) (database.Conn, error) {
	c, err := e.db.Conn(ctx)
	if err != nil {
		return nil, e.mapError(err, errs.ErrKindConnectionFailed, "failed to open connection")
	}
	return &conn{c: c, engine: e}, nil
}

func (e *Engine) Close() {
	_ = e.db.Close()
}

// mapError translates database/sql and driver errors into *errs.Error,
// using fallback when nothing more specific matches.
func (e *Engine) mapError(err error, fallback errs.ErrKind, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	if e.classify != nil {
		if kind, detail, ok := e.classify(err); ok {
			if detail != "" {
				msg = msg + ": " + detail
			}
			return errs.Wrap(kind, msg, err)
		}
	}

	return errs.Wrap(fallback, msg, err)
}

// --- sql.Conn wrappers ---

type conn struct {
	c      *sql.Conn
	engine *Engine
}

func (c *conn) Query(ctx context.Context, query string) (database.Rows, error) {
	rows, err := c.c.QueryContext(ctx, query)
	if err != nil {
		return nil, c.engine.mapError(err, errs.ErrKindQueryFailed, "query failed")
	}
	return &sqlRows{rows: rows, engine: c.engine}, nil
}

func (c *conn) Close() error {
	return c.c.Close()
}

type sqlRows struct {
	rows   *sql.Rows
	engine *Engine
}

func (r *sqlRows) Next() bool                 { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *sqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqlRows) Close()                     { _ = r.rows.Close() }

func (r *sqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return r.engine.mapError(err, errs.ErrKindQueryFailed, "error during row iteration")
	}
	return nil
}
