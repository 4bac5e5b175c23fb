// Package auth implements username/password accounts: Register, Login and
// the idempotent EnsureUser used to seed an operator account at startup.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	pkgauth "github.com/matiasleandrokruk/aiweb/pkg/auth"
	"github.com/matiasleandrokruk/aiweb/pkg/uuid"
)

// ErrInvalidCredentials is returned by Login when the username or password is
// wrong. One error for both cases so callers cannot enumerate usernames.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUsernameTaken is returned by Register when the username already exists.
var ErrUsernameTaken = errors.New("username already registered")

// ErrInvalidInput is returned for a blank username or password.
var ErrInvalidInput = errors.New("username and password are required")

// MaxUsernameLength bounds the stored username.
const MaxUsernameLength = 64

// Credentials is the input for Register and Login.
type Credentials struct {
	Username string
	Password string
}

// AuthResult is returned after a successful Register or Login.
//
//nolint:revive // auth.AuthResult reads fine at call sites in handlers
type AuthResult struct {
	Token    string
	UserID   string
	Username string
}

// AuthService defines the authentication business operations.
//
//nolint:revive // see AuthResult
type AuthService interface {
	Register(ctx context.Context, in Credentials) (*AuthResult, error)
	Login(ctx context.Context, in Credentials) (*AuthResult, error)
	EnsureUser(ctx context.Context, in Credentials) (created bool, err error)
}

type authService struct {
	db     *sql.DB
	log    zerolog.Logger
	verify func(hash, password string) bool
}

// NewAuthService creates an AuthService backed by db.
func NewAuthService(db *sql.DB, log zerolog.Logger) AuthService {
	return &authService{db: db, log: log, verify: pkgauth.VerifyPassword}
}

// unknownUserHash is compared against when the username does not exist, so a
// miss costs the same bcrypt run as a wrong password.
var unknownUserHash = sync.OnceValue(func() string {
	hash, err := pkgauth.HashPassword("aiweb-unknown-user")
	if err != nil {
		panic(err)
	}
	return hash
})

// Register creates a user and returns a JWT. The password is stored as a
// bcrypt hash only.
func (s *authService) Register(ctx context.Context, in Credentials) (*AuthResult, error) {
	username, err := normalize(in)
	if err != nil {
		return nil, err
	}

	userID, err := s.insertUser(ctx, username, in.Password)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			s.log.Info().Str("username", username).Msg("register rejected: username taken")
		}
		return nil, err
	}

	token, err := pkgauth.GenerateJWT(userID, username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}

	s.log.Info().Str("user_id", userID).Msg("user registered")
	return &AuthResult{Token: token, UserID: userID, Username: username}, nil
}

// Login verifies credentials and returns a JWT. Every failure, including a
// query error, is reported as ErrInvalidCredentials.
func (s *authService) Login(ctx context.Context, in Credentials) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)

	var userID, hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, password_hash
		FROM user_account
		WHERE username = ?
		LIMIT 1
	`, username).Scan(&userID, &hash)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Error().Err(err).Msg("login query failed")
		}
		s.verify(unknownUserHash(), in.Password)
		return nil, ErrInvalidCredentials
	}

	if !s.verify(hash, in.Password) {
		s.log.Info().Str("user_id", userID).Msg("login rejected: wrong password")
		return nil, ErrInvalidCredentials
	}

	token, err := pkgauth.GenerateJWT(userID, username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}
	return &AuthResult{Token: token, UserID: userID, Username: username}, nil
}

// EnsureUser creates the user unless the username already exists. A
// concurrent insert of the same username counts as "already exists".
// The existing user's password is left untouched.
func (s *authService) EnsureUser(ctx context.Context, in Credentials) (bool, error) {
	username, err := normalize(in)
	if err != nil {
		return false, err
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_account WHERE username = ?`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	if exists > 0 {
		return false, nil
	}

	if _, err := s.insertUser(ctx, username, in.Password); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return false, nil
		}
		return false, err
	}
	s.log.Info().Str("username", username).Msg("user provisioned")
	return true, nil
}

func (s *authService) insertUser(ctx context.Context, username, password string) (string, error) {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	userID := uuid.NewV7().String()
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_account (id, username, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, username, hash, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrUsernameTaken
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	return userID, nil
}

func normalize(in Credentials) (string, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return "", ErrInvalidInput
	}
	if len(username) > MaxUsernameLength {
		return "", fmt.Errorf("%w: username longer than %d characters", ErrInvalidInput, MaxUsernameLength)
	}
	if len(in.Password) > pkgauth.MaxPasswordBytes {
		return "", fmt.Errorf("%w: password longer than %d bytes", ErrInvalidInput, pkgauth.MaxPasswordBytes)
	}
	return username, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
