// Package integrity runs the integrity checkers as one batch: it checks, optionally fixes and
// re-checks each invariant in order, and reports the units whose aggregates changed.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/fulfillment/internal/domain/integrity"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrStillMismatched is returned when a checker reports mismatches again right after its fix
var ErrStillMismatched = errors.New("integrity: mismatches remain after fix")

// Runner executes checkers in their run order
type Runner struct {
	checkers       []integrity.Checker
	eventPublisher shared.EventPublisher
	metrics        *telemetry.IntegrityMetrics
	logger         *zap.Logger
}

// NewRunner creates a new Runner
func NewRunner(checkers []integrity.Checker, logger *zap.Logger) *Runner {
	return &Runner{
		checkers: checkers,
		logger:   logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (r *Runner) SetEventPublisher(publisher shared.EventPublisher) {
	r.eventPublisher = publisher
}

// SetMetrics sets the integrity metrics instruments
func (r *Runner) SetMetrics(metrics *telemetry.IntegrityMetrics) {
	r.metrics = metrics
}

// Run checks every checker in order. With fix set, mismatches are turned into actions,
// executed and checked again. A checker error stops the batch; the returned report then
// holds the checkers run so far.
func (r *Runner) Run(ctx context.Context, fix bool) (*Report, error) {
	report := &Report{
		BatchID:   uuid.New(),
		Fix:       fix,
		StartedAt: time.Now(),
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "integrity", "run",
		telemetry.WithAttribute("batch_id", report.BatchID.String()),
		telemetry.WithAttribute("fix", fix),
	)
	defer span.End()
	ctx, log := logger.WithBatchID(ctx, r.logger, report.BatchID.String())

	seen := make(map[uuid.UUID]struct{})
	for _, checker := range r.checkers {
		cr, units, err := r.runChecker(ctx, checker, fix)
		report.Checkers = append(report.Checkers, cr)
		for _, id := range units {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				report.UnitIDs = append(report.UnitIDs, id)
			}
		}
		report.Fixes += cr.Fixed
		if err != nil {
			report.FinishedAt = time.Now()
			telemetry.RecordError(span, err)
			r.publishReconciled(ctx, report)
			return report, err
		}
	}
	report.FinishedAt = time.Now()

	telemetry.SetAttributes(span,
		"mismatches", report.Mismatches(),
		"fixes", report.Fixes,
		"units", len(report.UnitIDs),
	)
	telemetry.SetOK(span)

	log.Info("Integrity batch finished",
		zap.Bool("fix", fix),
		zap.Int("mismatches", report.Mismatches()),
		zap.Int("fixes", report.Fixes),
		zap.Int("units", len(report.UnitIDs)),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	r.publishReconciled(ctx, report)
	return report, nil
}

func (r *Runner) runChecker(ctx context.Context, checker integrity.Checker, fix bool) (CheckerReport, []uuid.UUID, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "integrity", checker.Name(),
		telemetry.WithAttribute("checker", checker.Name()),
	)
	defer span.End()

	cr := CheckerReport{
		Name:    checker.Name(),
		Title:   checker.Title(),
		Columns: checker.Columns(),
	}
	log := logger.L(ctx).With(zap.String("checker", checker.Name()))

	start := time.Now()
	ok, err := checker.Check(ctx)
	cr.Results = checker.Results()
	r.recordCheck(ctx, checker.Name(), ok, err, len(cr.Results), time.Since(start))
	if err != nil {
		log.Error(checker.Title(), zap.Int("mismatches", len(cr.Results)), zap.Error(err))
		cr.Err = err
		telemetry.RecordError(span, err)
		return cr, nil, err
	}
	log.Info(checker.Title(), zap.Int("mismatches", len(cr.Results)))
	telemetry.SetAttributes(span, "mismatches", len(cr.Results))
	if ok || !fix {
		telemetry.SetOK(span)
		return cr, nil, nil
	}

	units, err := r.fix(ctx, checker, &cr, span)
	if err != nil {
		log.Error("Integrity fix failed", zap.Error(err))
		cr.Err = err
		telemetry.RecordError(span, err)
		return cr, units, err
	}
	log.Info("Integrity fix applied",
		zap.Int("actions", cr.Fixed),
		zap.Int("units", len(units)),
	)
	telemetry.SetOK(span)
	return cr, units, nil
}

func (r *Runner) fix(ctx context.Context, checker integrity.Checker, cr *CheckerReport, span trace.Span) ([]uuid.UUID, error) {
	if err := checker.Build(ctx); err != nil {
		return nil, fmt.Errorf("%s: build: %w", checker.Name(), err)
	}
	cr.Actions = checker.Actions()

	units, err := checker.Fix(ctx)
	if err != nil {
		return units, fmt.Errorf("%s: fix: %w", checker.Name(), err)
	}
	cr.Fixed = len(cr.Actions)
	r.recordFix(ctx, checker.Name(), cr.Actions, len(units))
	telemetry.AddEvent(span, "fixed", "actions", cr.Fixed, "units", len(units))

	ok, err := checker.Check(ctx)
	if err != nil {
		return units, fmt.Errorf("%s: re-check: %w", checker.Name(), err)
	}
	if !ok {
		return units, fmt.Errorf("%s: %d rows: %w", checker.Name(), len(checker.Results()), ErrStillMismatched)
	}
	return units, nil
}

func (r *Runner) recordCheck(ctx context.Context, checker string, ok bool, err error, mismatches int, d time.Duration) {
	if r.metrics == nil {
		return
	}
	outcome := telemetry.OutcomeOK
	switch {
	case err != nil:
		outcome = telemetry.OutcomeFailed
	case !ok:
		outcome = telemetry.OutcomeMismatch
	}
	r.metrics.RecordCheck(ctx, checker, outcome, mismatches, d)
}

func (r *Runner) recordFix(ctx context.Context, checker string, actions []integrity.Action, units int) {
	if r.metrics == nil {
		return
	}
	kinds := make(map[string]int)
	for _, a := range actions {
		kinds[string(a.Kind)]++
	}
	r.metrics.RecordFix(ctx, checker, kinds, units)
}

// publishReconciled raises StockUnitsReconciled when the batch changed unit aggregates
func (r *Runner) publishReconciled(ctx context.Context, report *Report) {
	if r.eventPublisher == nil || len(report.UnitIDs) == 0 {
		return
	}
	event := stock.NewUnitsReconciledEvent(report.BatchID, report.UnitIDs, report.Fixes)
	if err := r.eventPublisher.Publish(ctx, event); err != nil {
		logger.L(ctx).Warn("Failed to publish units reconciled event",
			zap.Error(err),
		)
	}
}
