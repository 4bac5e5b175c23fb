// Package auth implements password hashing and bearer-token issuance for gateway accounts.
// Leaf package with no domain dependencies; used by internal/domain/auth and internal/api/middleware.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ===== CONSTANTS =====

// BCryptCost is the bcrypt work factor.
const BCryptCost = 12

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// DefaultJWTExpiry is the token lifetime in hours when JWT_EXPIRY is unset or invalid.
const DefaultJWTExpiry = 24

// Issuer is written into the iss claim and required on parse.
const Issuer = "aiweb"

const (
	envJWTSecret = "JWT_SECRET"
	envJWTExpiry = "JWT_EXPIRY"
)

// ErrEmptyToken is returned by ParseJWT for an empty token string.
var ErrEmptyToken = errors.New("token is empty")

// ===== ENVIRONMENT VARIABLES =====

// getJWTSecret reads JWT_SECRET from environment. Panics if not set so a
// misconfigured binary fails on the first auth call instead of signing with "".
func getJWTSecret() []byte {
	secret := os.Getenv(envJWTSecret)
	if secret == "" {
		panic(envJWTSecret + " environment variable not set: cannot initialize auth")
	}
	return []byte(secret)
}

// parseJWTExpiry parses an expiry string (hours) into a Duration.
// Empty or non-numeric input yields DefaultJWTExpiry.
func parseJWTExpiry(expiryStr string) time.Duration {
	if expiryStr == "" {
		return time.Duration(DefaultJWTExpiry) * time.Hour
	}

	hours, err := strconv.Atoi(expiryStr)
	if err != nil {
		return time.Duration(DefaultJWTExpiry) * time.Hour
	}

	return time.Duration(hours) * time.Hour
}

func getJWTExpiry() time.Duration {
	return parseJWTExpiry(os.Getenv(envJWTExpiry))
}

// ===== BCRYPT FUNCTIONS =====

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BCryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash.
// Malformed hashes return false rather than an error.
func VerifyPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ===== JWT FUNCTIONS =====

// Claims carries the account identity. Subject mirrors UserID.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a signed HS256 token for the given account.
// Panics if JWT_SECRET is not set.
func GenerateJWT(userID, username string) (string, error) {
	now := time.Now()
	expiresAt := now.Add(getJWTExpiry())

	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(getJWTSecret())
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signedToken, nil
}

// ParseJWT validates a token and returns its claims.
// Rejects non-HMAC algorithms, expired tokens and tokens from another issuer.
func ParseJWT(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return getJWTSecret(), nil
	}, jwt.WithIssuer(Issuer))

	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid JWT claims or signature")
	}

	return claims, nil
}
