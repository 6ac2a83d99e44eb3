package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/erp/fulfillment/internal/application/fulfillment"
	appintegrity "github.com/erp/fulfillment/internal/application/integrity"
	appstock "github.com/erp/fulfillment/internal/application/stock"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/event"
	"github.com/erp/fulfillment/internal/infrastructure/persistence"
	"github.com/erp/fulfillment/internal/infrastructure/scheduler"
	"github.com/erp/fulfillment/internal/interfaces/console"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// errUsage marks invalid command line arguments
var errUsage = errors.New("usage error")

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	return nil
}

func parseUUID(fs *flag.FlagSet, name, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		fs.Usage()
		return uuid.Nil, fmt.Errorf("%w: -%s must be a UUID, got %q", errUsage, name, value)
	}
	return id, nil
}

func splitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' })
}

// openOutput returns the file at path, or stdout when path is empty
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func checkFormat(fs *flag.FlagSet, format, output string) error {
	switch format {
	case config.FormatTable:
		return nil
	case config.FormatXLSX:
		if output == "" {
			fs.Usage()
			return fmt.Errorf("%w: the xlsx format needs -output", errUsage)
		}
		return nil
	}
	fs.Usage()
	return fmt.Errorf("%w: unknown format %q", errUsage, format)
}

func runCheck(ctx context.Context, a *app, args []string) error {
	cfg := a.cfg.Integrity
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fix := fs.Bool("fix", cfg.Fix, "Fix the mismatches found and check again")
	checkers := fs.String("checkers", strings.Join(cfg.Checkers, ","), "Comma separated checkers to run (default: all)")
	format := fs.String("format", cfg.Format, "Report format: table or xlsx")
	output := fs.String("output", cfg.Output, "Report file (default: stdout)")
	timeout := fs.Duration("timeout", cfg.Timeout, "Batch timeout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := checkFormat(fs, *format, *output); err != nil {
		return err
	}

	runner, err := a.runner(splitList(*checkers))
	if err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	report, runErr := runner.Run(ctx, *fix)
	if err := writeReport(report, *format, *output); err != nil {
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}
	if !*fix && !report.OK() {
		return fmt.Errorf("%w: %d rows", errMismatch, report.Mismatches())
	}
	return nil
}

func writeReport(report *appintegrity.Report, format, output string) error {
	w, err := openOutput(output)
	if err != nil {
		return err
	}
	if format == config.FormatXLSX {
		err = console.WriteReportXLSX(w, report)
	} else {
		err = console.WriteReport(w, report)
	}
	return errors.Join(err, w.Close())
}

func runSchedule(ctx context.Context, a *app, args []string) error {
	cfg := a.cfg.Scheduler
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fix := fs.Bool("fix", a.cfg.Integrity.Fix, "Fix the mismatches found")
	checkers := fs.String("checkers", strings.Join(a.cfg.Integrity.Checkers, ","), "Comma separated checkers to run (default: all)")
	now := fs.Bool("now", false, "Also run a batch right away")
	relay := fs.Bool("relay", false, "Also relay outbox events while running")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	names := splitList(*checkers)
	if _, err := a.runner(names); err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return err
	}

	executor := scheduler.NewIntegrityExecutor(func() (scheduler.BatchRunner, error) {
		return a.runner(names)
	}, a.log)
	sched := scheduler.NewScheduler(scheduler.Config{
		JobTimeout:    a.cfg.Integrity.Timeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	}, executor, a.log)
	trigger := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
		Hour:          cfg.Hour,
		Minute:        cfg.Minute,
		CheckInterval: cfg.CheckInterval,
		Fix:           *fix,
	}, sched, a.log)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	if err := trigger.Start(ctx); err != nil {
		return err
	}
	var outboxRelay *event.OutboxRelay
	if *relay {
		outboxRelay = a.relay()
		if err := outboxRelay.Start(ctx); err != nil {
			return err
		}
	}
	if *now {
		if _, err := sched.Schedule(*fix); err != nil {
			return err
		}
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	errs := []error{trigger.Stop(stopCtx), sched.Stop(stopCtx)}
	if outboxRelay != nil {
		errs = append(errs, outboxRelay.Stop(stopCtx))
	}
	return errors.Join(errs...)
}

func runRelay(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	watch := fs.Bool("watch", false, "Keep polling the outbox until interrupted")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	relay := a.relay()
	if !*watch {
		result, err := relay.Drain(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("sent: %d, failed: %d, dead: %d\n", result.Sent, result.Failed, result.Dead)
		return nil
	}

	if err := relay.Start(ctx); err != nil {
		return err
	}
	a.log.Info("Outbox relay running", zap.Duration("poll_interval", a.cfg.Outbox.PollInterval))
	<-ctx.Done()
	return relay.Stop(context.Background())
}

func runOutbox(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("outbox", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	counts, err := a.outbox.CountByStatus(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tENTRIES")
	for _, status := range []shared.OutboxStatus{
		shared.OutboxStatusPending,
		shared.OutboxStatusFailed,
		shared.OutboxStatusDead,
		shared.OutboxStatusSent,
	} {
		fmt.Fprintf(tw, "%s\t%d\n", status, counts[status])
	}
	return tw.Flush()
}

func runQuantities(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("quantities", flag.ContinueOnError)
	saleFlag := fs.String("sale", "", "Sale ID (required)")
	shipmentFlag := fs.String("shipment", "", "Show what remains to ship after this shipment instead")
	format := fs.String("format", config.FormatTable, "Output format: table or xlsx")
	output := fs.String("output", "", "Output file (default: stdout)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	saleID, err := parseUUID(fs, "sale", *saleFlag)
	if err != nil {
		return err
	}
	if err := checkFormat(fs, *format, *output); err != nil {
		return err
	}

	svc := fulfillment.NewQuantityService(persistence.NewGormSaleLoader(a.db.DB), a.log)

	w, err := openOutput(*output)
	if err != nil {
		return err
	}
	defer w.Close()

	if *shipmentFlag != "" {
		shipmentID, err := parseUUID(fs, "shipment", *shipmentFlag)
		if err != nil {
			return err
		}
		list, err := svc.RemainingList(ctx, saleID, shipmentID)
		if err != nil {
			return err
		}
		return console.WriteRemainingList(w, list)
	}

	qm, err := svc.QuantityMap(ctx, saleID)
	if err != nil {
		return err
	}
	if *format == config.FormatXLSX {
		return console.WriteQuantityMapXLSX(w, qm)
	}
	return console.WriteQuantityMap(w, qm)
}

func runAssign(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("assign", flag.ContinueOnError)
	itemFlag := fs.String("item", "", "Sale item ID (required)")
	field := fs.String("field", appstock.FieldSold, "Quantity to move: sold or shipped")
	quantity := fs.String("quantity", "", "Signed decimal delta, e.g. 2 or -1.5 (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	itemID, err := parseUUID(fs, "item", *itemFlag)
	if err != nil {
		return err
	}

	svc, err := a.assignmentService()
	if err != nil {
		return err
	}
	result, err := svc.Update(ctx, appstock.UpdateAssignmentsRequest{
		SaleItemID: itemID,
		Field:      *field,
		Quantity:   *quantity,
	})
	if err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			fs.Usage()
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Sale item\t%s\n", result.SaleItemID)
	fmt.Fprintf(tw, "Field\t%s\n", result.Field)
	fmt.Fprintf(tw, "Requested\t%s\n", result.Requested)
	fmt.Fprintf(tw, "Applied\t%s\n", result.Applied)
	fmt.Fprintf(tw, "Remaining\t%s\n", result.Remaining)
	fmt.Fprintf(tw, "Stock units\t%d\n", len(result.UnitIDs))
	fmt.Fprintf(tw, "Removed assignments\t%d\n", result.Removed)
	return tw.Flush()
}
