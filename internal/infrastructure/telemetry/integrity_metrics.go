package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Integrity outcomes recorded on the check duration histogram
const (
	OutcomeOK       = "ok"
	OutcomeMismatch = "mismatch"
	OutcomeFailed   = "failed"
)

var (
	attrChecker    = attribute.Key("integrity.checker")
	attrActionKind = attribute.Key("integrity.action")
	attrOutcome    = attribute.Key("outcome")
)

// checkDurationBuckets spans fast sqlite checks up to full postgres scans, in seconds
var checkDurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300}

// ErrMeterNil is returned by NewIntegrityMetrics without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// IntegrityMetrics counts drift found and repaired by integrity batches.
type IntegrityMetrics struct {
	mismatches    metric.Int64Counter
	actions       metric.Int64Counter
	units         metric.Int64Counter
	checkDuration metric.Float64Histogram
}

// NewIntegrityMetrics creates the integrity instruments on meter
func NewIntegrityMetrics(meter metric.Meter) (*IntegrityMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		im   IntegrityMetrics
		errs []error
		err  error
	)
	im.mismatches, err = meter.Int64Counter("fulfillment_integrity_mismatches_total",
		metric.WithDescription("Rows whose stored aggregate differs from the recomputed value"),
		metric.WithUnit("{rows}"))
	errs = append(errs, err)
	im.actions, err = meter.Int64Counter("fulfillment_integrity_actions_total",
		metric.WithDescription("Fix actions executed"),
		metric.WithUnit("{actions}"))
	errs = append(errs, err)
	im.units, err = meter.Int64Counter("fulfillment_integrity_units_reconciled_total",
		metric.WithDescription("Stock units whose aggregates were fixed"),
		metric.WithUnit("{units}"))
	errs = append(errs, err)
	im.checkDuration, err = meter.Float64Histogram("fulfillment_integrity_check_duration_seconds",
		metric.WithDescription("Duration of a checker check"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(checkDurationBuckets...))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to create integrity instruments: %w", err)
	}
	return &im, nil
}

// RecordCheck records one checker pass
func (im *IntegrityMetrics) RecordCheck(ctx context.Context, checker, outcome string, mismatches int, d time.Duration) {
	im.checkDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attrChecker.String(checker), attrOutcome.String(outcome)))
	if mismatches > 0 {
		im.mismatches.Add(ctx, int64(mismatches), metric.WithAttributes(attrChecker.String(checker)))
	}
}

// RecordFix records the actions executed by a checker and the units they touched
func (im *IntegrityMetrics) RecordFix(ctx context.Context, checker string, actions map[string]int, units int) {
	for kind, n := range actions {
		im.actions.Add(ctx, int64(n),
			metric.WithAttributes(attrChecker.String(checker), attrActionKind.String(kind)))
	}
	if units > 0 {
		im.units.Add(ctx, int64(units), metric.WithAttributes(attrChecker.String(checker)))
	}
}
