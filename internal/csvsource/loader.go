// Package csvsource fetches CSV documents and parses them into tables.
//
// A source is an http(s) URL, an s3://bucket/key URL (read through a
// filestore.Store), a file:// URL or a plain local path:
//
//	tbl, err := csvsource.Load(ctx, "https://example.com/data.csv")
//	if errs.IsInvalidSource(err) { ... }
package csvsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/koustreak/ingest/internal/errs"
	"github.com/koustreak/ingest/internal/filestore"
	"github.com/koustreak/ingest/internal/logger"
	"github.com/koustreak/ingest/internal/table"
)

// Loader fetches and parses CSV sources. The zero value is not usable; build
// one with New. A Loader is safe for concurrent use.
type Loader struct {
	client *http.Client
	store  filestore.Store
	log    *logger.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithObjectStore enables s3:// sources.
func WithObjectStore(s filestore.Store) Option {
	return func(l *Loader) { l.store = s }
}

// WithLogger sets the logger. The default is the logger in the request
// context, falling back to the global logger.
func WithLogger(lg *logger.Logger) Option {
	return func(l *Loader) { l.log = lg }
}

// New returns a Loader with the given options applied.
func New(opts ...Option) *Loader {
	l := &Loader{client: http.DefaultClient}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load fetches source with a default Loader.
func Load(ctx context.Context, source string) (*table.Table, error) {
	return New().Load(ctx, source)
}

// Load fetches source and parses it as CSV.
//
// Empty or malformed content is ErrKindInvalidSource; any other retrieval
// failure is ErrKindFetchFailed, with the cause attached. There is no retry.
func (l *Loader) Load(ctx context.Context, source string) (*table.Table, error) {
	log := l.logger(ctx).With().Str("source", redact(source)).Logger()

	body, err := l.open(ctx, log, source)
	if err != nil {
		log.ErrorWith("failed to read CSV", err, nil)
		return nil, err
	}
	defer body.Close()

	tbl, err := Parse(body)
	if err != nil {
		if errs.IsInvalidSource(err) {
			log.ErrorWith("the source does not point to a valid CSV file", err, nil)
		} else {
			log.ErrorWith("failed to read CSV", err, nil)
		}
		return nil, err
	}

	log.InfoWith("CSV file read successfully", map[string]interface{}{
		"rows":    tbl.Len(),
		"columns": len(tbl.Columns),
	})
	return tbl, nil
}

func (l *Loader) logger(ctx context.Context) *logger.Logger {
	if l.log != nil {
		return l.log.Component("csvsource")
	}
	return logger.FromContext(ctx).Component("csvsource")
}

// open resolves source to a readable body.
func (l *Loader) open(ctx context.Context, log *logger.Logger, source string) (io.ReadCloser, error) {
	if !strings.Contains(source, "://") {
		return openFile(source)
	}

	u, err := url.Parse(source)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindFetchFailed, "invalid source URL", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return l.openHTTP(ctx, u)
	case "s3":
		return l.openObject(ctx, log, u)
	case "file":
		return openFile(u.Host + u.Path)
	default:
		return nil, errs.New(errs.ErrKindFetchFailed,
			fmt.Sprintf("unsupported source scheme %q", u.Scheme))
	}
}

func (l *Loader) openHTTP(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindFetchFailed, "failed to build request", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindFetchFailed, "request failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, errs.New(errs.ErrKindFetchFailed,
			fmt.Sprintf("unexpected HTTP status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}
	return resp.Body, nil
}

func (l *Loader) openObject(ctx context.Context, log *logger.Logger, u *url.URL) (io.ReadCloser, error) {
	if l.store == nil {
		return nil, errs.New(errs.ErrKindDependencyMissing, "no object store configured for s3:// sources")
	}

	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, errs.New(errs.ErrKindFetchFailed, "s3 source must be s3://bucket/key")
	}

	obj, err := l.store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindFetchFailed, "failed to get object", err)
	}

	if info := obj.Info(); info != nil {
		log.With().
			Str("bucket", bucket).
			Str("key", key).
			Any("size", info.Size).
			Str("content_type", info.ContentType).
			Str("etag", info.ETag).
			Logger().
			Debug("object opened")
	}
	return obj, nil
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindFetchFailed, "failed to open file", err)
	}
	return f, nil
}

// redact hides URL credentials before a source reaches the logs.
func redact(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.User == nil {
		return source
	}
	return u.Redacted()
}
