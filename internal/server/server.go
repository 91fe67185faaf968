// Package server exposes the configured named queries and CSV sources over
// a read-only HTTP API. Clients can only run what the config file declares;
// no SQL text or URL is ever taken from a request.
package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/ingest/internal/config"
	"github.com/koustreak/ingest/internal/csvsource"
	"github.com/koustreak/ingest/internal/database"
	"github.com/koustreak/ingest/internal/filestore"
	"github.com/koustreak/ingest/internal/filestore/minio"
	"github.com/koustreak/ingest/internal/logger"
)

// Server serves named queries and CSV sources.
type Server struct {
	cfg     *config.Config
	engines map[string]database.Engine
	loader  *csvsource.Loader
	store   filestore.Store
	base    *logger.Logger
	log     *logger.Logger
	router  chi.Router
}

// New wires a server from already-opened engines. engines must hold an
// entry for every database referenced by cfg.Queries. The server takes
// ownership of engines and closes them in Close.
func New(cfg *config.Config, engines map[string]database.Engine, loader *csvsource.Loader, log *logger.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		engines: engines,
		loader:  loader,
		base:    logger.OrGlobal(log),
		log:     logger.OrGlobal(log).Component("server"),
	}
	s.router = s.routes()
	return s
}

// Open builds a server from cfg: it opens one engine per configured
// database (each verified with a trial connection) and, when configured,
// connects the object store for s3:// CSV sources. On error everything
// already opened is closed.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Server, error) {
	log = logger.OrGlobal(log)
	ctx = log.WithContext(ctx)

	engines := make(map[string]database.Engine, len(cfg.Databases))
	closeAll := func() {
		for _, e := range engines {
			e.Close()
		}
	}

	names := make([]string, 0, len(cfg.Databases))
	for name := range cfg.Databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		log.Debugf("opening database %q", name)
		eng, err := database.Open(ctx, cfg.Databases[name])
		if err != nil {
			closeAll()
			return nil, err
		}
		engines[name] = eng
	}

	// No WithLogger: the loader logs through the request-scoped logger.
	var opts []csvsource.Option
	var store filestore.Store
	if cfg.ObjectStore != nil {
		st, err := minio.New(ctx, cfg.ObjectStore)
		if err != nil {
			closeAll()
			return nil, err
		}
		store = st
		opts = append(opts, csvsource.WithObjectStore(st))
	}

	s := New(cfg, engines, csvsource.New(opts...), log)
	s.store = store
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on cfg.Server.Addr until ctx is cancelled, then shuts down
// gracefully within ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Close releases every engine and the object store.
func (s *Server) Close() {
	for _, e := range s.engines {
		e.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/queries", s.handleListQueries)
		r.Get("/queries/{name}", s.handleRunQuery)
		r.Get("/csv", s.handleListCSV)
		r.Get("/csv/{name}", s.handleLoadCSV)
	})

	return r
}

// requestLogger puts a request-scoped logger into the context and writes one
// access log line per request. Components below the handlers add their own
// component field to the context logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())
		ctxLog := s.base.With().Str("request_id", reqID).Logger()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctxLog.WithContext(r.Context())))

		s.log.With().Str("request_id", reqID).Logger().Event().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
