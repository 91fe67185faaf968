// Package sqlite registers the file-backed "sqlite" dialect, using the
// pure-Go modernc.org/sqlite driver.
//
//	sqlite:///relative/path.db
//	sqlite:////absolute/path.db
//	sqlite:///:memory:
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/koustreak/ingest/internal/database"
	"github.com/koustreak/ingest/internal/database/stdsql"
	"github.com/koustreak/ingest/internal/errs"
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

func init() {
	database.Register(database.DialectSQLite, "modernc", Open)
}

// Open builds an engine for u without connecting.
func Open(_ context.Context, u *database.URL) (database.Engine, error) {
	db, err := sql.Open(DriverName, DSN(u))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to open sqlite database", err)
	}

	// Every connection to ":memory:" is a fresh database, so keep exactly one.
	if isMemory(u.Database) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	return stdsql.New(db, database.DialectSQLite, u.String(), classify), nil
}

// DSN converts a parsed URL into the modernc driver's data source name.
// Query parameters (e.g. _pragma=busy_timeout(5000)) are passed through.
func DSN(u *database.URL) string {
	if len(u.Params) == 0 {
		return u.Database
	}
	path := u.Database
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + "?" + u.Params.Encode()
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// classify maps sqlite result codes to ErrKind.
func classify(err error) (errs.ErrKind, string, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return errs.ErrKindUnknown, "", false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_AUTH, sqlite3.SQLITE_PERM:
		return errs.ErrKindConnectionFailed, sqlite.ErrorCodeString[se.Code()], true
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return errs.ErrKindTimeout, sqlite.ErrorCodeString[se.Code()], true
	default:
		return errs.ErrKindQueryFailed, "", true
	}
}
