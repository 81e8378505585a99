package observability

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
)

type meterContextKey struct{}

// NewRequestMeter builds a meter pre-attributed for the current request, so
// every counter recorded downstream carries the same request dimensions.
func NewRequestMeter(ctx context.Context, attrs ...attribute.Builder) sentry.Meter {
	meter := sentry.NewMeter(ctx).WithCtx(ctx)
	if len(attrs) > 0 {
		meter.SetAttributes(attrs...)
	}
	return meter
}

// WithMeter returns a context carrying the provided meter.
func WithMeter(ctx context.Context, meter sentry.Meter) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter == nil {
		meter = sentry.NewMeter(ctx)
	}
	return context.WithValue(ctx, meterContextKey{}, meter.WithCtx(ctx))
}

// MeterFromContext returns the request-scoped meter, or a fresh unattributed
// one when called outside a request.
func MeterFromContext(ctx context.Context) sentry.Meter {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter, ok := ctx.Value(meterContextKey{}).(sentry.Meter); ok && meter != nil {
		return meter.WithCtx(ctx)
	}
	return sentry.NewMeter(ctx).WithCtx(ctx)
}
