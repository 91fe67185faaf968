package database

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/koustreak/ingest/internal/errs"
)

// Dialect names understood by Open.
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// dialectAliases maps alternative scheme spellings onto a dialect.
var dialectAliases = map[string]string{
	"postgresql": DialectPostgres,
	"sqlite3":    DialectSQLite,
}

// URL is a parsed connection string of the form
//
//	dialect[+driver]://[user[:password]@][host[:port]]/[database][?params]
//
// File-backed dialects keep the path in Database:
//
//	sqlite:///relative.db   -> "relative.db"
//	sqlite:////abs/path.db  -> "/abs/path.db"
//	sqlite://               -> ":memory:"
type URL struct {
	Dialect  string
	Driver   string // empty selects the dialect's default driver
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Params   url.Values

	raw *url.URL
}

// ParseURL splits a connection string into its parts. A string that cannot
// be parsed is reported as a connection failure, since no handle can be
// constructed from it.
func ParseURL(s string) (*URL, error) {
	if !strings.Contains(s, "://") {
		return nil, errs.New(errs.ErrKindConnectionFailed,
			"invalid connection string: expected dialect://...")
	}

	raw, err := url.Parse(s)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid connection string", redactParseError(err))
	}

	scheme := strings.ToLower(raw.Scheme)
	dialect, driver, _ := strings.Cut(scheme, "+")
	if alias, ok := dialectAliases[dialect]; ok {
		dialect = alias
	}
	if dialect == "" {
		return nil, errs.New(errs.ErrKindConnectionFailed, "invalid connection string: empty dialect")
	}

	u := &URL{
		Dialect: dialect,
		Driver:  driver,
		Host:    raw.Hostname(),
		Params:  raw.Query(),
		raw:     raw,
	}

	if raw.User != nil {
		u.User = raw.User.Username()
		u.Password, _ = raw.User.Password()
	}

	if p := raw.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid port in connection string", err)
		}
		u.Port = port
	}

	// Strip exactly one leading slash: "/db" -> "db", "//abs" -> "/abs".
	u.Database = strings.TrimPrefix(raw.Path, "/")
	if dialect == DialectSQLite && u.Database == "" {
		u.Database = ":memory:"
	}

	return u, nil
}

// String returns the connection string with the password redacted. It is
// the form used in logs and by Engine.URL.
func (u *URL) String() string {
	return u.raw.Redacted()
}

// WithScheme returns the original connection string with its scheme
// replaced, for drivers that accept URLs but not the dialect+driver form.
func (u *URL) WithScheme(scheme string) string {
	c := *u.raw
	c.Scheme = scheme
	return c.String()
}

// Addr returns host:port, filling in defaults when either is missing.
func (u *URL) Addr(defaultHost string, defaultPort int) string {
	host := u.Host
	if host == "" {
		host = defaultHost
	}
	port := u.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// redactParseError drops the offending input from url.Parse errors, which
// would otherwise echo the password into logs.
func redactParseError(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err
	}
	return err
}
