package ctxkeys

import (
	"context"
	"testing"
)

func TestWithValue_SetsAndGetsTypedKey(t *testing.T) {
	t.Parallel()

	ctx := WithValue(context.Background(), UserID, "user-999")
	got, ok := ctx.Value(UserID).(string)
	if !ok {
		t.Fatalf("expected string value")
	}
	if got != "user-999" {
		t.Fatalf("expected user-999, got %q", got)
	}
}

func TestString(t *testing.T) {
	t.Parallel()

	ctx := WithValue(context.Background(), Username, "alice")
	if got, ok := String(ctx, Username); !ok || got != "alice" {
		t.Errorf("String(Username) = %q, %v; want alice, true", got, ok)
	}
	if _, ok := String(ctx, UserID); ok {
		t.Error("String(UserID) on missing key must report false")
	}
	if _, ok := String(WithValue(context.Background(), UserID, ""), UserID); ok {
		t.Error("String on empty value must report false")
	}
	// A plain string key with the same text is a different key.
	plain := context.WithValue(context.Background(), "user_id", "x") //nolint:staticcheck
	if _, ok := String(plain, UserID); ok {
		t.Error("plain string key must not match typed key")
	}
}
