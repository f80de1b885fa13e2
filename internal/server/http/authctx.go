package httpserver

import "context"

type ctxKey string

const (
	userIDKey    ctxKey = "ac.userID"
	requestIDKey ctxKey = "ac.requestID"
)

// WithUserID stores the authenticated account id in context.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx fetches the authenticated account id from context.
func UserIDFromCtx(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// RequestIDFromCtx returns the id assigned by the RequestID middleware.
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
