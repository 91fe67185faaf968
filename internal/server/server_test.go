package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/ingest/internal/config"
	"github.com/koustreak/ingest/internal/database/sqlite"
	"github.com/koustreak/ingest/internal/errs"
	"github.com/koustreak/ingest/internal/logger"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.db")

	db, err := sql.Open(sqlite.DriverName, path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE orders (id INTEGER PRIMARY KEY, total REAL);
		INSERT INTO orders (id, total) VALUES (1, 10.5), (2, 3);`)
	require.NoError(t, err)

	return "sqlite:///" + path
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Databases = map[string]string{"shop": seedDB(t)}
	cfg.Queries = map[string]config.Query{
		"orders": {Database: "shop", SQL: "SELECT id, total FROM orders ORDER BY id"},
		"none":   {Database: "shop", SQL: "SELECT id FROM orders WHERE 1 = 0"},
		"broken": {Database: "shop", SQL: "SELECT * FROM missing"},
		"inf":    {Database: "shop", SQL: "SELECT 1e999 AS x"},
	}
	cfg.CSV = map[string]string{
		"rates":   writeFile(t, "rates.csv", "ccy,rate\nEUR,1.1\n"),
		"special": writeFile(t, "special.csv", "a,b\n1.5,x\ninf,y\n"),
		"empty":   writeFile(t, "empty.csv", ""),
		"missing": filepath.Join(t.TempDir(), "nope.csv"),
	}

	s, err := Open(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	status, body := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestListQueries(t *testing.T) {
	ts := newTestServer(t)

	status, body := get(t, ts.URL+"/v1/queries")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[
		{"name":"broken","database":"shop"},
		{"name":"inf","database":"shop"},
		{"name":"none","database":"shop"},
		{"name":"orders","database":"shop"}
	]`, string(body))
}

func TestRunQuery(t *testing.T) {
	ts := newTestServer(t)

	status, body := get(t, ts.URL+"/v1/queries/orders")
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{
		"name":"orders",
		"columns":["id","total"],
		"count":2,
		"rows":[{"id":1,"total":10.5},{"id":2,"total":3}]
	}`, string(body))
}

func TestRunQuery_CSVFormat(t *testing.T) {
	ts := newTestServer(t)

	status, body := get(t, ts.URL+"/v1/queries/orders?format=csv")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "id,total\n1,10.5\n2,3\n", string(body))
}

func TestRunQuery_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		path   string
		status int
		kind   errs.ErrKind
	}{
		{"/v1/queries/none", http.StatusNotFound, errs.ErrKindEmptyResult},
		{"/v1/queries/broken", http.StatusBadGateway, errs.ErrKindQueryFailed},
		{"/v1/queries/unknown", http.StatusNotFound, errs.ErrKindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := get(t, ts.URL+tt.path)
			assert.Equal(t, tt.status, status)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.Equal(t, tt.kind.String(), resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestCSV(t *testing.T) {
	ts := newTestServer(t)

	status, body := get(t, ts.URL+"/v1/csv")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"name":"empty"},{"name":"missing"},{"name":"rates"},{"name":"special"}]`, string(body))

	status, body = get(t, ts.URL+"/v1/csv/rates")
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"name":"rates","columns":["ccy","rate"],"count":1,"rows":[{"ccy":"EUR","rate":1.1}]}`, string(body))

	status, _ = get(t, ts.URL+"/v1/csv/empty")
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = get(t, ts.URL+"/v1/csv/missing")
	assert.Equal(t, http.StatusBadGateway, status)

	status, _ = get(t, ts.URL+"/v1/csv/unknown")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCSV_NonFiniteNumbersAreText(t *testing.T) {
	ts := newTestServer(t)

	status, body := get(t, ts.URL+"/v1/csv/special")
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"name":"special","columns":["a","b"],"count":2,"rows":[{"a":"1.5","b":"x"},{"a":"inf","b":"y"}]}`, string(body))
}

func TestRunQuery_UnencodableResultIs500(t *testing.T) {
	ts := newTestServer(t)

	status, body := get(t, ts.URL+"/v1/queries/inf")
	assert.Equal(t, http.StatusInternalServerError, status)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, errs.ErrKindUnknown.String(), resp.Error)
	assert.Contains(t, resp.Message, "failed to encode JSON response")
}

func TestCSV_LogsCarryRequestID(t *testing.T) {
	cfg := config.Default()
	cfg.CSV = map[string]string{"empty": writeFile(t, "empty.csv", "")}

	var buf bytes.Buffer
	s, err := Open(context.Background(), cfg, logger.New(&logger.Config{Level: "info", Format: "json", Output: &buf}))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	req := httptest.NewRequest(http.MethodGet, "/v1/csv/empty", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var csvLines int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["component"] == "csvsource" {
			csvLines++
			assert.Equal(t, "req-42", entry["request_id"])
		}
	}
	assert.Positive(t, csvLines)
}

func TestOpen_BadDatabaseClosesEverything(t *testing.T) {
	cfg := config.Default()
	cfg.Databases = map[string]string{
		"a": seedDB(t),
		"b": "sqlite:///" + filepath.Join(t.TempDir(), "no", "such", "dir.db"),
	}

	s, err := Open(context.Background(), cfg, logger.Nop())
	assert.Nil(t, s)
	assert.True(t, errs.IsConnectionFailed(err), "got %v", err)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errs.ErrKindDependencyMissing))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(errs.ErrKindTimeout))
	assert.Equal(t, http.StatusBadRequest, statusFor(errs.ErrKindInvalidInput))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errs.ErrKindUnknown))
}
