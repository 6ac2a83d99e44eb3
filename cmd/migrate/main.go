package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/migration"
	"github.com/erp/fulfillment/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("usage")

type options struct {
	path string // migrations directory, empty for the embedded set
	log  *zap.Logger
}

// source returns the migrations directory when one is given, the embedded set otherwise
func (o options) source() fs.FS {
	if o.path == "" {
		return migrations.FS
	}
	return os.DirFS(o.path)
}

type command struct {
	name     string
	usage    string
	summary  string
	database bool // needs a migrator
	run      func(o options, m *migration.Migrator, args []string) error
}

var commands = []command{
	{"up", "up", "Apply all pending migrations", true, runUp},
	{"down", "down", "Roll back all migrations", true, runDown},
	{"step", "step <n>", "Apply n migrations (positive=up, negative=down)", true, runStep},
	{"version", "version", "Show current migration version", true, runVersion},
	{"force", "force <version>", "Force set migration version (use with caution)", true, runForce},
	{"create", "create <name> [desc]", "Create a new migration file pair", false, runCreate},
	{"list", "list", "List available migrations", false, runList},
}

func main() {
	path := flag.String("path", "", "Path to a migrations directory (default: the migrations built into the binary)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	code := run(options{path: *path, log: log}, args)
	_ = log.Sync()
	os.Exit(code)
}

func run(o options, args []string) int {
	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		o.log.Error("Unknown command", zap.String("command", args[0]))
		printUsage()
		return 2
	}

	if o.path != "" {
		abs, err := filepath.Abs(o.path)
		if err != nil {
			o.log.Error("Failed to get absolute path", zap.Error(err))
			return 1
		}
		o.path = abs
	}
	o.log.Info("Migration CLI started",
		zap.String("command", cmd.name),
		zap.String("migrations_path", o.path),
	)

	var m *migration.Migrator
	if cmd.database {
		var closeDB func()
		var err error
		m, closeDB, err = openMigrator(o)
		if err != nil {
			o.log.Error("Failed to prepare migrations", zap.Error(err))
			return 1
		}
		defer closeDB()
	}

	if err := cmd.run(o, m, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Usage: migrate %s\n", cmd.usage)
			return 2
		}
		o.log.Error("Migration command failed", zap.String("command", cmd.name), zap.Error(err))
		return 1
	}
	return 0
}

func openMigrator(o options) (*migration.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	db, err := migration.Open(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	m, err := migration.New(db, cfg.Database.Driver, o.log, migration.WithSource(o.source()))
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, func() {
		_ = m.Close()
		_ = db.Close()
	}, nil
}

func runUp(_ options, m *migration.Migrator, _ []string) error {
	return m.Up()
}

func runDown(_ options, m *migration.Migrator, _ []string) error {
	return m.Down()
}

func runStep(_ options, m *migration.Migrator, args []string) error {
	n, err := intArg(args)
	if err != nil {
		return err
	}
	return m.Steps(n)
}

func runForce(_ options, m *migration.Migrator, args []string) error {
	version, err := intArg(args)
	if err != nil {
		return err
	}
	return m.Force(version)
}

func runVersion(o options, m *migration.Migrator, _ []string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		o.log.Info("No migrations applied")
		return nil
	}
	o.log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func runCreate(o options, _ *migration.Migrator, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	dir := o.path
	if dir == "" {
		dir = defaultMigrationsPath
	}

	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	o.log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func runList(o options, _ *migration.Migrator, _ []string) error {
	names, err := migration.ListMigrations(o.source())
	if err != nil {
		return err
	}
	if len(names) == 0 {
		o.log.Info("No migrations found")
		return nil
	}
	o.log.Info("Available migrations", zap.Int("count", len(names)))
	for _, name := range names {
		fmt.Println("  -", name)
	}
	return nil
}

// intArg parses the single integer argument of step and force
func intArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, args[0])
	}
	return n, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Fulfillment database migration tool")
	fmt.Fprintln(os.Stderr, "\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-22s%s\n", c.usage, c.summary)
	}
	fmt.Fprintln(os.Stderr, "\nFlags:")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, `
Database settings come from the FULFILLMENT_DATABASE_* environment variables
(DRIVER postgres or sqlite, HOST, PORT, USER, PASSWORD, DBNAME, SSLMODE).

Examples:
  migrate up
  migrate step -1
  migrate -path ./migrations create add_stock_locations "Stock locations of units"`)
}
