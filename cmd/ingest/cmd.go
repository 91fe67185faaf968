package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koustreak/ingest/internal/config"
	"github.com/koustreak/ingest/internal/csvsource"
	"github.com/koustreak/ingest/internal/database"
	"github.com/koustreak/ingest/internal/errs"
	"github.com/koustreak/ingest/internal/filestore"
	"github.com/koustreak/ingest/internal/filestore/minio"
	"github.com/koustreak/ingest/internal/logger"
	"github.com/koustreak/ingest/internal/server"
	"github.com/koustreak/ingest/internal/table"
)

type (
	Cmd struct {
		out        io.Writer
		errOut     io.Writer
		log        *logger.Logger
		rootFlags  rootFlags
		queryFlags queryFlags
		csvFlags   csvFlags
		serveFlags serveFlags
	}

	rootFlags struct {
		logLevel  string
		logFormat string
	}

	queryFlags struct {
		dsn    string
		sql    string
		format string
	}

	csvFlags struct {
		url    string
		config string
		format string
	}

	serveFlags struct {
		config string
	}
)

// New returns a command writing results to out and logs to errOut.
func New(out, errOut io.Writer) *Cmd {
	return &Cmd{out: out, errOut: errOut}
}

// Execute runs the command line in args.
func (c *Cmd) Execute(args []string) error {
	rootCmd := c.rootCmd()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func (c *Cmd) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load tabular data from SQL databases and CSV sources",
		Long: `ingest builds database connections from connection strings, runs SQL
queries and loads CSV files from URLs into tables, printed as JSON or CSV.`,
		PersistentPreRun:  c.initLogger,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}
	rootCmd.SetOut(c.out)
	rootCmd.SetErr(c.errOut)
	rootCmd.PersistentFlags().StringVar(&c.rootFlags.logLevel, "log-level", "info", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVar(&c.rootFlags.logFormat, "log-format", "console", "log format (json, console)")

	rootCmd.AddCommand(c.getPingCmd())
	rootCmd.AddCommand(c.getQueryCmd())
	rootCmd.AddCommand(c.getCSVCmd())
	rootCmd.AddCommand(c.getServeCmd())
	rootCmd.AddCommand(c.getDialectsCmd())
	return rootCmd
}

func (c *Cmd) initLogger(cmd *cobra.Command, args []string) {
	c.log = logger.New(&logger.Config{
		Level:      c.rootFlags.logLevel,
		Format:     c.rootFlags.logFormat,
		TimeFormat: "rfc3339",
		Output:     c.errOut,
	})
	logger.SetGlobal(c.log)
}

func (c *Cmd) context(cmd *cobra.Command) context.Context {
	return c.log.WithContext(cmd.Context())
}

// --- ping ---

func (c *Cmd) getPingCmd() *cobra.Command {
	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Open a connection string and verify it with a trial connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := database.Open(c.context(cmd), c.queryFlags.dsn)
			if err != nil {
				return err
			}
			defer eng.Close()
			_, err = fmt.Fprintf(c.out, "ok %s %s\n", eng.Dialect(), eng.URL())
			return err
		},
	}
	pingCmd.Flags().StringVar(&c.queryFlags.dsn, "dsn", "", "database connection string")
	_ = pingCmd.MarkFlagRequired("dsn")
	return pingCmd
}

// --- query ---

func (c *Cmd) getQueryCmd() *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Run a SQL statement and print the rows",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return checkFormat(c.queryFlags.format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.context(cmd)
			eng, err := database.Open(ctx, c.queryFlags.dsn)
			if err != nil {
				return err
			}
			defer eng.Close()

			tbl, err := database.Query(ctx, eng, c.queryFlags.sql)
			if err != nil {
				return err
			}
			return writeTable(c.out, tbl, c.queryFlags.format)
		},
	}
	queryCmd.Flags().StringVar(&c.queryFlags.dsn, "dsn", "", "database connection string")
	queryCmd.Flags().StringVar(&c.queryFlags.sql, "sql", "", "SQL statement to run")
	queryCmd.Flags().StringVarP(&c.queryFlags.format, "format", "f", "json", "output format (json, csv)")
	_ = queryCmd.MarkFlagRequired("dsn")
	_ = queryCmd.MarkFlagRequired("sql")
	return queryCmd
}

// --- csv ---

func (c *Cmd) getCSVCmd() *cobra.Command {
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Load a CSV source into a table and print it",
		Long: `Load a CSV source into a table and print it. The source may be an
http(s) URL, a local path, a file:// URL, or s3://bucket/key when --config
names an object_store.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return checkFormat(c.csvFlags.format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.context(cmd)
			opts := []csvsource.Option{csvsource.WithLogger(c.log)}

			if c.csvFlags.config != "" {
				cfg, err := config.Load(c.csvFlags.config)
				if err != nil {
					return err
				}
				if cfg.ObjectStore != nil {
					store, err := minio.New(ctx, cfg.ObjectStore)
					if err != nil {
						return err
					}
					defer closeStore(store)
					opts = append(opts, csvsource.WithObjectStore(store))
				}
			}

			tbl, err := csvsource.New(opts...).Load(ctx, c.csvFlags.url)
			if err != nil {
				return err
			}
			return writeTable(c.out, tbl, c.csvFlags.format)
		},
	}
	csvCmd.Flags().StringVar(&c.csvFlags.url, "url", "", "CSV source URL or path")
	csvCmd.Flags().StringVar(&c.csvFlags.config, "config", "", "config file providing object_store for s3:// sources")
	csvCmd.Flags().StringVarP(&c.csvFlags.format, "format", "f", "json", "output format (json, csv)")
	_ = csvCmd.MarkFlagRequired("url")
	return csvCmd
}

func closeStore(s filestore.Store) {
	_ = s.Close()
}

// --- serve ---

func (c *Cmd) getServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve configured queries and CSV sources over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.serveFlags.config)
			if err != nil {
				return err
			}

			log := c.log
			if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("log-format") {
				logCfg := cfg.Log
				logCfg.Output = c.errOut
				log = logger.New(&logCfg)
				logger.SetGlobal(log)
			}

			ctx, stop := signal.NotifyContext(log.WithContext(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := server.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer srv.Close()

			return srv.Run(ctx)
		},
	}
	serveCmd.Flags().StringVarP(&c.serveFlags.config, "config", "c", "ingest.yaml", "config file")
	return serveCmd
}

// --- dialects ---

func (c *Cmd) getDialectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List the database dialects and drivers linked into this binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, d := range database.Dialects() {
				if _, err := fmt.Fprintln(c.out, d); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// checkFormat rejects an unknown --format before any connection is made.
func checkFormat(format string) error {
	switch format {
	case "json", "csv", "":
		return nil
	default:
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unknown output format %q", format))
	}
}

// writeTable prints tbl to w as a JSON array of row objects or as CSV with
// a header line.
func writeTable(w io.Writer, tbl *table.Table, format string) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tbl)
	case "csv":
		cw := csv.NewWriter(w)
		return cw.WriteAll(tbl.Records())
	default:
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unknown output format %q", format))
	}
}
