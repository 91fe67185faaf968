package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/koustreak/ingest/internal/database"
	"github.com/koustreak/ingest/internal/database/stdsql"
	"github.com/koustreak/ingest/internal/errs"
)

// OpenPQ builds a database/sql pool over lib/pq for "postgres+pq" URLs.
func OpenPQ(_ context.Context, u *database.URL) (database.Engine, error) {
	connector, err := pq.NewConnector(u.WithScheme("postgres"))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	db := sql.OpenDB(connector)
	return stdsql.New(db, database.DialectPostgres, u.String(), classifyPQ), nil
}

// classifyPQ maps *pq.Error SQLSTATE codes the same way the pgx driver does.
func classifyPQ(err error) (errs.ErrKind, string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return errs.ErrKindUnknown, "", false
	}
	return classifySQLState(string(pqErr.Code)), pqErr.Message, true
}
