package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erp/fulfillment/internal/infrastructure/config"
)

// exit codes
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitMismatch = 3
)

// errMismatch marks a check that completed but found drift
var errMismatch = errors.New("integrity mismatches found")

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"check", "Check the stock ledgers, optionally fixing drift", runCheck},
	{"schedule", "Run the check every day at the configured time until interrupted", runSchedule},
	{"relay", "Deliver pending domain events once, or continuously with -watch", runRelay},
	{"outbox", "Show outbox entry counts by status", runOutbox},
	{"quantities", "Show the quantity ledger of a sale", runQuantities},
	{"assign", "Move sold or shipped quantity across the stock assignments of a sale item", runAssign},
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(exitUsage)
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(exitUsage)
	}

	os.Exit(run(cmd, args[1:]))
}

func run(cmd *command, args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return exitFailure
	}
	defer a.close()

	err = cmd.run(ctx, a, args)
	if code := exitCode(err); code != exitOK {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.name, err)
		return code
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, errMismatch):
		return exitMismatch
	default:
		return exitFailure
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Fulfillment stock ledger tool

Usage:
  integrity <command> [flags]

Commands:
`)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", c.name, c.summary)
	}
	fmt.Fprint(os.Stderr, `
Run "integrity <command> -h" for the flags of a command.

Configuration is read from config.toml and FULFILLMENT_ environment variables,
e.g. FULFILLMENT_DATABASE_HOST, FULFILLMENT_REDIS_ENABLED, FULFILLMENT_LOCK_BACKEND.

Exit codes:
  0  success
  1  failure
  2  usage error
  3  check found mismatches
`)
}
