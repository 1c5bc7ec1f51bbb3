package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/authcore/internal/config"
	"github.com/sakif/authcore/internal/repository/sqlstore"
	"github.com/sakif/authcore/internal/server"
	"github.com/sakif/authcore/internal/service"
)

// cli carries what every subcommand needs once the root has parsed flags.
type cli struct {
	envFile string
	driver  string
	dsn     string
	jsonOut bool
	verbose bool
	cfg     config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "authctl",
		Short: "Administer an authcore database",
		Long: `Administrative commands for the authcore authentication service.

Examples:
  authctl migrate
  authctl users list
  authctl users deactivate 42
  authctl sessions expire 42
  authctl users purge 42 43`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file to read before the environment")
	root.PersistentFlags().StringVar(&c.driver, "db-driver", "", "override DB_DRIVER (sqlite or postgres)")
	root.PersistentFlags().StringVar(&c.dsn, "db-dsn", "", "override DB_DSN")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print JSON instead of tables")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(c.migrateCmd(), c.usersCmd(), c.sessionsCmd())
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return err
	}
	if c.driver != "" {
		cfg.DBDriver = c.driver
	}
	if c.dsn != "" {
		cfg.DBDSN = c.dsn
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// withManager opens (and migrates) the configured database, builds the
// manager and runs fn.
func (c *cli) withManager(ctx context.Context, fn func(*service.Manager) error) error {
	db, err := sqlstore.Open(ctx, c.cfg.DBDriver, c.cfg.DBDSN, c.logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m, _, err := server.NewManager(ctx, c.cfg, db, c.logger)
	if err != nil {
		return err
	}
	return fn(m)
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlstore.New(c.cfg.DBDriver, c.cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context(), c.logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
			return nil
		},
	}
}

func (c *cli) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid user id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
