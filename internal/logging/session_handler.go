package logging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// FieldSessionID is the structured logging key for per-invocation session identifiers.
const FieldSessionID = "session_id"

// WithSession tags every record from logger with a fresh session id and
// returns both. A nil logger yields a no-op logger.
func WithSession(logger *slog.Logger) (*slog.Logger, string) {
	id := uuid.NewString()
	if logger == nil {
		return NewNop(), id
	}
	return slog.New(newSessionIDHandler(logger.Handler(), id)), id
}

// sessionIDHandler wraps another handler to inject a session_id attribute into all records.
type sessionIDHandler struct {
	base      slog.Handler
	sessionID string
}

func newSessionIDHandler(base slog.Handler, sessionID string) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	return &sessionIDHandler{
		base:      base,
		sessionID: sessionID,
	}
}

func (h *sessionIDHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *sessionIDHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(slog.String(FieldSessionID, h.sessionID))
	return h.base.Handle(ctx, record)
}

func (h *sessionIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sessionIDHandler{
		base:      h.base.WithAttrs(attrs),
		sessionID: h.sessionID,
	}
}

func (h *sessionIDHandler) WithGroup(name string) slog.Handler {
	return &sessionIDHandler{
		base:      h.base.WithGroup(name),
		sessionID: h.sessionID,
	}
}
