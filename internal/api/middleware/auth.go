package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/matiasleandrokruk/aiweb/internal/api/ctxkeys"
	pkgauth "github.com/matiasleandrokruk/aiweb/pkg/auth"
)

const (
	schemeBearer = "Bearer"

	reasonMissing = "missing or invalid Authorization header"
	reasonExpired = "token expired"
	reasonInvalid = "invalid token"
)

// AuthMiddleware guards the knowledge admin routes. The caller must present
// a token issued by /auth/register or /auth/login; its account identity is
// placed in the request context under ctxkeys.UserID and ctxkeys.Username.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			challenge(w, "", reasonMissing)
			return
		}

		claims, err := pkgauth.ParseJWT(token)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			challenge(w, "invalid_token", reasonExpired)
			return
		case err != nil:
			challenge(w, "invalid_token", reasonInvalid)
			return
		}

		ctx := ctxkeys.WithValue(r.Context(), ctxkeys.UserID, claims.UserID)
		ctx = ctxkeys.WithValue(ctx, ctxkeys.Username, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken splits "<scheme> <token>". The scheme compares case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, schemeBearer) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// challenge answers 401 with a WWW-Authenticate header and the JSON error body
// the handlers use.
func challenge(w http.ResponseWriter, code, message string) {
	value := schemeBearer + ` realm="aiweb"`
	if code != "" {
		value += `, error="` + code + `"`
	}
	w.Header().Set("WWW-Authenticate", value)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck
}
