package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// requestScope is the per-request logging state carried in a context.
type requestScope struct {
	id     string
	fields []zap.Field
}

func scopeFrom(ctx context.Context) requestScope {
	s, _ := ctx.Value(ctxKey{}).(requestScope)
	return s
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	s := scopeFrom(ctx)
	s.id = requestID
	return context.WithValue(ctx, ctxKey{}, s)
}

// WithFields returns a context whose FromCtx logger also carries fields.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	s := scopeFrom(ctx)
	s.fields = append(append([]zap.Field(nil), s.fields...), fields...)
	return context.WithValue(ctx, ctxKey{}, s)
}

func RequestIDFrom(ctx context.Context) string {
	return scopeFrom(ctx).id
}

// FromCtx returns the global logger annotated with the request id and any
// fields attached to ctx.
func FromCtx(ctx context.Context) *zap.Logger {
	s := scopeFrom(ctx)
	if s.id == "" && len(s.fields) == 0 {
		return L()
	}
	fields := s.fields
	if s.id != "" {
		fields = append([]zap.Field{zap.String("request_id", s.id)}, s.fields...)
	}
	return L().With(fields...)
}
