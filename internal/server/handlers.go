package server

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/ingest/internal/database"
	"github.com/koustreak/ingest/internal/errs"
	"github.com/koustreak/ingest/internal/logger"
	"github.com/koustreak/ingest/internal/table"
)

type tableResponse struct {
	Name    string       `json:"name"`
	Columns []string     `json:"columns"`
	Count   int          `json:"count"`
	Rows    *table.Table `json:"rows"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type queryInfo struct {
	Name     string `json:"name"`
	Database string `json:"database"`
}

type csvInfo struct {
	Name string `json:"name"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	out := make([]queryInfo, 0, len(s.cfg.Queries))
	for name, q := range s.cfg.Queries {
		out = append(out, queryInfo{Name: name, Database: q.Database})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleRunQuery(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	q, ok := s.cfg.Queries[name]
	if !ok {
		s.writeError(w, r, errs.New(errs.ErrKindNotFound, fmt.Sprintf("unknown query %q", name)))
		return
	}
	eng, ok := s.engines[q.Database]
	if !ok {
		s.writeError(w, r, errs.New(errs.ErrKindDependencyMissing,
			fmt.Sprintf("database %q is not open", q.Database)))
		return
	}

	tbl, err := database.Query(r.Context(), eng, q.SQL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeTable(w, r, name, tbl)
}

func (s *Server) handleListCSV(w http.ResponseWriter, r *http.Request) {
	out := make([]csvInfo, 0, len(s.cfg.CSV))
	for name := range s.cfg.CSV {
		out = append(out, csvInfo{Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleLoadCSV(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	src, ok := s.cfg.CSV[name]
	if !ok {
		s.writeError(w, r, errs.New(errs.ErrKindNotFound, fmt.Sprintf("unknown csv source %q", name)))
		return
	}

	tbl, err := s.loader.Load(r.Context(), src)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeTable(w, r, name, tbl)
}

// writeTable answers with JSON, or with CSV when ?format=csv. The body is
// rendered in full before the status line goes out, so an encoding failure
// still reaches the client as a 500.
func (s *Server) writeTable(w http.ResponseWriter, r *http.Request, name string, tbl *table.Table) {
	if r.URL.Query().Get("format") == "csv" {
		var buf bytes.Buffer
		cw := csv.NewWriter(&buf)
		if err := cw.WriteAll(tbl.Records()); err != nil {
			s.writeError(w, r, errs.Wrap(errs.ErrKindUnknown, "failed to encode CSV response", err))
			return
		}
		s.writeBody(w, r, http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
		return
	}

	s.writeJSON(w, r, http.StatusOK, tableResponse{
		Name:    name,
		Columns: tbl.Columns,
		Count:   tbl.Len(),
		Rows:    tbl,
	})
}

// writeError logs err with the request's logger and answers with its kind
// mapped to an HTTP status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)

	logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]interface{}{
		"kind":   kind.String(),
		"status": status,
	})
	s.writeJSON(w, r, status, errorResponse{Error: kind.String(), Message: err.Error()})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind errs.ErrKind) int {
	switch kind {
	case errs.ErrKindNotFound, errs.ErrKindEmptyResult:
		return http.StatusNotFound
	case errs.ErrKindInvalidSource:
		return http.StatusUnprocessableEntity
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindConnectionFailed, errs.ErrKindFetchFailed, errs.ErrKindQueryFailed,
		errs.ErrKindPermissionDenied:
		return http.StatusBadGateway
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.writeError(w, r, errs.Wrap(errs.ErrKindUnknown, "failed to encode JSON response", err))
		return
	}
	s.writeBody(w, r, status, "application/json", append(body, '\n'))
}

func (s *Server) writeBody(w http.ResponseWriter, r *http.Request, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.FromContext(r.Context()).Debugf("failed to write response body: %v", err)
	}
}
