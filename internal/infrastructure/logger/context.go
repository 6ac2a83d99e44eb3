package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey int

const (
	loggerKey contextKey = iota
	batchIDKey
	saleItemIDKey
)

// WithContext attaches logger to ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger attached to ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithBatchID tags ctx with an integrity batch. The returned logger, also attached
// to the returned context, carries a batch_id field.
func WithBatchID(ctx context.Context, logger *zap.Logger, batchID string) (context.Context, *zap.Logger) {
	return withCorrelation(ctx, logger, batchIDKey, "batch_id", batchID)
}

// WithSaleItemID tags ctx with the sale item whose assignments are being updated
func WithSaleItemID(ctx context.Context, logger *zap.Logger, saleItemID string) (context.Context, *zap.Logger) {
	return withCorrelation(ctx, logger, saleItemIDKey, "sale_item_id", saleItemID)
}

func withCorrelation(ctx context.Context, logger *zap.Logger, key contextKey, field, id string) (context.Context, *zap.Logger) {
	enriched := logger.With(zap.String(field, id))
	ctx = context.WithValue(ctx, key, id)
	return WithContext(ctx, enriched), enriched
}

// GetBatchID returns the batch id of ctx, or an empty string
func GetBatchID(ctx context.Context) string {
	id, _ := ctx.Value(batchIDKey).(string)
	return id
}

// GetSaleItemID returns the sale item id of ctx, or an empty string
func GetSaleItemID(ctx context.Context) string {
	id, _ := ctx.Value(saleItemIDKey).(string)
	return id
}

// Fields returns the trace and correlation fields found in ctx
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if id := GetBatchID(ctx); id != "" {
		fields = append(fields, zap.String("batch_id", id))
	}
	if id := GetSaleItemID(ctx); id != "" {
		fields = append(fields, zap.String("sale_item_id", id))
	}
	return fields
}

// WithTraceContext adds trace_id and span_id of the span in ctx.
// Without a valid span the logger is returned unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

// L returns the logger of ctx with the trace of its current span.
//
//	logger.L(ctx).Info("Checker finished", zap.Int("mismatches", n))
func L(ctx context.Context) *zap.Logger {
	return WithTraceContext(ctx, FromContext(ctx))
}
