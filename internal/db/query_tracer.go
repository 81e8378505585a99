package db

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
)

// maxSpanSQLLen bounds the query text attached to a span.
const maxSpanSQLLen = 512

type querySpanContextKey struct{}

// queryTracer attaches a db.query span to every statement when the request
// already carries a transaction span. Statements outside a trace are left alone.
type queryTracer struct{}

func newQueryTracer() *queryTracer {
	return &queryTracer{}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if sentry.SpanFromContext(ctx) == nil {
		return ctx
	}

	sql := condenseSQL(data.SQL)
	span := sentry.StartSpan(
		ctx,
		"db.query",
		sentry.WithDescription(sql),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	span.SetData("db.system", "postgresql")
	if fields := strings.Fields(sql); len(fields) > 0 {
		span.SetData("db.operation", strings.ToUpper(fields[0]))
	}

	return context.WithValue(span.Context(), querySpanContextKey{}, span)
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, _ := ctx.Value(querySpanContextKey{}).(*sentry.Span)
	if span == nil {
		return
	}

	span.Status = sentry.SpanStatusOK
	if data.Err != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetData("db.error", data.Err.Error())
	}
	if rows := data.CommandTag.RowsAffected(); rows >= 0 {
		span.SetData("db.rows_affected", rows)
	}

	span.Finish()
}

// condenseSQL collapses whitespace so multi-line statements read as one span
// description, truncated to keep span payloads small.
func condenseSQL(sql string) string {
	condensed := strings.Join(strings.Fields(sql), " ")
	if condensed == "" {
		return "sql.query"
	}
	if len(condensed) > maxSpanSQLLen {
		return condensed[:maxSpanSQLLen]
	}
	return condensed
}
