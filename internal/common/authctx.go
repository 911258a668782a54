package common

import "context"

type ctxKey string

const (
	userIDKey   ctxKey = "auth/user-id"
	userTypeKey ctxKey = "auth/user-type"
)

// WithUser stores the authenticated user's identifier and account type
// (farmer, buyer, or both) on the context.
func WithUser(ctx context.Context, id, userType string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, id)
	return context.WithValue(ctx, userTypeKey, userType)
}

// UserID extracts the authenticated user identifier from the context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// UserType extracts the account type stored by the auth middleware.
func UserType(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(userTypeKey).(string)
	return t, ok
}
