package database

import (
	"context"

	"github.com/koustreak/ingest/internal/errs"
	"github.com/koustreak/ingest/internal/logger"
	"github.com/koustreak/ingest/internal/table"
)

// Query checks out a connection from eng, executes sql unmodified and
// collects every row into a table. The connection is released on every path.
//
// A query that matches no rows is an error of kind ErrKindEmptyResult, never
// an empty table. No parameterization or escaping is done here: sql must
// come from a trusted source.
func Query(ctx context.Context, eng Engine, sql string) (*table.Table, error) {
	log := logger.FromContext(ctx).Component("database").
		With().Str("dialect", eng.Dialect()).Logger()

	conn, err := eng.Connect(ctx)
	if err != nil {
		log.ErrorWith("failed to acquire connection", err, nil)
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.Query(ctx, sql)
	if err != nil {
		err = asQueryFailure(err, "query failed")
		log.ErrorWith("an error occurred while querying the database", err, nil)
		return nil, err
	}

	tbl, err := ScanRows(rows)
	if err != nil {
		err = asQueryFailure(err, "failed to read query result")
		log.ErrorWith("an error occurred while querying the database", err, nil)
		return nil, err
	}

	if tbl.Empty() {
		err := errs.New(errs.ErrKindEmptyResult, "query returned no rows")
		log.ErrorWith("sql query failed", err, nil)
		return nil, err
	}

	log.InfoWith("query executed successfully", map[string]interface{}{
		"rows":    tbl.Len(),
		"columns": len(tbl.Columns),
	})
	return tbl, nil
}

// asQueryFailure leaves classified errors alone and wraps unclassified ones
// as query failures.
func asQueryFailure(err error, msg string) error {
	if errs.KindOf(err) != errs.ErrKindUnknown {
		return err
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
