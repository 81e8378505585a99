package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// MultiHandler fans out slog records to every non-nil handler. With no
// handlers it swallows records.
func MultiHandler(handlers ...slog.Handler) slog.Handler {
	sinks := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			sinks = append(sinks, h)
		}
	}
	if len(sinks) == 0 {
		return slog.NewTextHandler(io.Discard, nil)
	}
	return &fanoutHandler{sinks: sinks}
}

type fanoutHandler struct {
	sinks []slog.Handler
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range f.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, sink := range f.sinks {
		if !sink.Enabled(ctx, record.Level) {
			continue
		}
		if err := sink.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.apply(func(sink slog.Handler) slog.Handler { return sink.WithAttrs(attrs) })
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	return f.apply(func(sink slog.Handler) slog.Handler { return sink.WithGroup(name) })
}

func (f *fanoutHandler) apply(transform func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, len(f.sinks))
	for i, sink := range f.sinks {
		next[i] = transform(sink)
	}
	return &fanoutHandler{sinks: next}
}
