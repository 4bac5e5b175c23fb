// Package ctxkeys holds the typed context keys shared by middleware and
// handlers. It is a leaf package so both can import it without a cycle.
package ctxkeys

import "context"

// Key is the named type for all API context keys. context.Value compares type
// and value, so these never collide with plain string keys.
type Key string

const (
	// UserID is the authenticated user's id, injected by AuthMiddleware.
	UserID Key = "user_id"

	// Username is the authenticated user's login name, injected by AuthMiddleware.
	Username Key = "username"
)

// WithValue adds a string value under key.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// String returns the value stored under key and whether it is a non-empty string.
func String(ctx context.Context, key Key) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
