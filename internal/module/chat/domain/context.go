package domain

import "context"

type requestIDKey struct{}

// WithRequestID はリクエストIDをcontextに格納する
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext はcontextからリクエストIDを取り出す（無い場合は空文字）
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
