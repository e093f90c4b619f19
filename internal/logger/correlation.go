package logger

import (
	"context"

	"github.com/rs/zerolog/log"
)

const CorrelationIDHeader = "X-Correlation-ID"

type correlationIDKey struct{}

// WithCorrelationID stores id in ctx and attaches a logger carrying it,
// so Ctx(ctx) tags every line of the request.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, correlationIDKey{}, id)
	l := log.Ctx(ctx).With().Str("correlation_id", id).Logger()
	return l.WithContext(ctx)
}

// CorrelationID returns the id stored by WithCorrelationID, if any.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
