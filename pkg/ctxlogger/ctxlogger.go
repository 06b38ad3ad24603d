package ctxlogger

import (
	"context"
	"log/slog"
)

type ctxKey string

const slogFields ctxKey = "slog_fields"

// ContextHandler adds attributes stored in the context to every record.
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(slogFields).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}

	return h.Handler.Handle(ctx, r)
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// AppendCtx returns a copy of parent carrying attr for ContextHandler.
func AppendCtx(parent context.Context, attr slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	if v, ok := parent.Value(slogFields).([]slog.Attr); ok {
		attrs := make([]slog.Attr, len(v), len(v)+1)
		copy(attrs, v)
		return context.WithValue(parent, slogFields, append(attrs, attr))
	}

	return context.WithValue(parent, slogFields, []slog.Attr{attr})
}
