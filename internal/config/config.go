// Package config loads the ingest YAML configuration file used by the
// serve command.
//
//	log:
//	  level: info
//	  format: json
//	server:
//	  addr: ":8080"
//	databases:
//	  warehouse: postgres://reader:${WAREHOUSE_PASSWORD}@db:5432/warehouse
//	queries:
//	  active_users:
//	    database: warehouse
//	    sql: SELECT id, email FROM users WHERE active
//	csv:
//	  rates: https://example.com/rates.csv
//	object_store:
//	  endpoint: minio:9000
//	  access_key: ${MINIO_ACCESS_KEY}
//	  secret_key: ${MINIO_SECRET_KEY}
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/ingest/internal/errs"
	"github.com/koustreak/ingest/internal/filestore"
	"github.com/koustreak/ingest/internal/logger"
)

// Config is the root of the configuration file.
type Config struct {
	Log         logger.Config     `yaml:"log"`
	Server      Server            `yaml:"server"`
	Databases   map[string]string `yaml:"databases"`
	Queries     map[string]Query  `yaml:"queries"`
	CSV         map[string]string `yaml:"csv"`
	ObjectStore *filestore.Config `yaml:"object_store"`
}

// Server holds HTTP listener settings.
type Server struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Query is a named SQL statement bound to one of the configured databases.
type Query struct {
	Database string `yaml:"database"`
	SQL      string `yaml:"sql"`
}

// Default returns a config with every default filled in and no sources.
func Default() *Config {
	return &Config{
		Log: logger.Config{
			Level:      "info",
			Format:     "json",
			TimeFormat: "rfc3339",
		},
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads and parses the file at path. See Parse.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("failed to read config %s", path), err)
	}
	return Parse(data)
}

// envRef matches the ${VAR} form only. Bare $name and $$ are left as they
// are, since both are ordinary SQL text.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Parse expands ${VAR} references from the environment, decodes data over
// Default() and validates the result. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(expandEnv(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every query names a configured database and that no
// source is blank.
func (c *Config) Validate() error {
	for _, name := range sortedKeys(c.Databases) {
		if c.Databases[name] == "" {
			return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("database %q has no connection string", name))
		}
	}

	for _, name := range sortedKeys(c.Queries) {
		q := c.Queries[name]
		if q.SQL == "" {
			return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("query %q has no sql", name))
		}
		if _, ok := c.Databases[q.Database]; !ok {
			return errs.New(errs.ErrKindInvalidInput,
				fmt.Sprintf("query %q references unknown database %q", name, q.Database))
		}
	}

	for _, name := range sortedKeys(c.CSV) {
		if c.CSV[name] == "" {
			return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("csv source %q has no url", name))
		}
	}

	if c.ObjectStore != nil && c.ObjectStore.Endpoint == "" {
		return errs.New(errs.ErrKindInvalidInput, "object_store.endpoint is required")
	}
	return nil
}

func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(envRef.FindSubmatch(ref)[1])))
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
