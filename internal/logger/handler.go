package logger

import (
	"context"
	"log/slog"

	"github.com/sarvottam-bhagat/docu-ai-processor/internal/middleware"
)

// ContextHandler decorates a slog.Handler so that every record emitted
// inside a request carries its correlation id without the call site
// having to pass it explicitly.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(middleware.CorrelationKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}
