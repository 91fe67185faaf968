package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/ingest/internal/database"
	"github.com/koustreak/ingest/internal/database/sqlite"
	"github.com/koustreak/ingest/internal/errs"
)

// seed creates a database file with a small users table and returns its
// connection string.
func seed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ingest.db")

	db, err := sql.Open(sqlite.DriverName, path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, score REAL);
		INSERT INTO users (id, name, score) VALUES (1, 'ada', 9.5), (2, 'grace', NULL);`)
	require.NoError(t, err)

	return "sqlite:///" + path
}

func TestOpen_ReachableFile(t *testing.T) {
	ctx := context.Background()
	eng, err := database.Open(ctx, seed(t))
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, database.DialectSQLite, eng.Dialect())
}

func TestOpen_UnreachableFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing", "dir", "x.db")

	eng, err := database.Open(context.Background(), "sqlite:///"+dir)
	assert.Nil(t, eng)
	assert.True(t, errs.IsConnectionFailed(err), "got %v", err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := database.Open(context.Background(), "sqlite+cgo:///:memory:")
	assert.True(t, errs.IsDependencyMissing(err))
}

func TestQuery_ReturnsRowsAndColumns(t *testing.T) {
	ctx := context.Background()
	eng, err := database.Open(ctx, seed(t))
	require.NoError(t, err)
	defer eng.Close()

	tbl, err := database.Query(ctx, eng, "SELECT id, name, score FROM users ORDER BY id")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "score"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, int64(1), tbl.Rows[0]["id"])
	assert.Equal(t, "ada", tbl.Rows[0]["name"])
	assert.Equal(t, 9.5, tbl.Rows[0]["score"])
	assert.Nil(t, tbl.Rows[1]["score"])
}

func TestQuery_ZeroRowsIsEmptyResult(t *testing.T) {
	ctx := context.Background()
	eng, err := database.Open(ctx, seed(t))
	require.NoError(t, err)
	defer eng.Close()

	tbl, err := database.Query(ctx, eng, "SELECT * FROM users WHERE 1=0")
	assert.Nil(t, tbl)
	assert.True(t, errs.IsEmptyResult(err))
}

func TestQuery_MissingTableIsQueryFailure(t *testing.T) {
	ctx := context.Background()
	eng, err := database.Open(ctx, seed(t))
	require.NoError(t, err)
	defer eng.Close()

	_, err = database.Query(ctx, eng, "SELECT * FROM nope")
	assert.True(t, errs.IsQueryFailed(err), "got %v", err)
}

func TestMemoryDatabaseKeepsOneConnection(t *testing.T) {
	ctx := context.Background()
	eng, err := database.Open(ctx, "sqlite://")
	require.NoError(t, err)
	defer eng.Close()

	tbl, err := database.Query(ctx, eng, "SELECT 1 AS one")
	require.NoError(t, err)
	assert.Equal(t, int64(1), tbl.Rows[0]["one"])
}

func TestDSN(t *testing.T) {
	u, err := database.ParseURL("sqlite:///data/app.db?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	assert.Equal(t, "file:data/app.db?_pragma=busy_timeout%285000%29", sqlite.DSN(u))

	u, err = database.ParseURL("sqlite:////var/lib/app.db")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/app.db", sqlite.DSN(u))
}
