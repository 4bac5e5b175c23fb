// Tests run against in-memory SQLite with real migrations.
package auth_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	domainauth "github.com/matiasleandrokruk/aiweb/internal/domain/auth"
	"github.com/matiasleandrokruk/aiweb/internal/infra/sqlite"
	"github.com/matiasleandrokruk/aiweb/pkg/auth"
)

// TestMain sets JWT_SECRET before any test runs; GenerateJWT panics without it.
func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret-key-32-chars-min!!!") //nolint:errcheck
	os.Exit(m.Run())
}

func newService(t *testing.T) (domainauth.AuthService, *sql.DB) {
	t.Helper()
	db := mustOpenDB(t)
	return domainauth.NewAuthService(db, zerolog.Nop()), db
}

// ===== REGISTER TESTS =====

func TestAuthService_Register_Success(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	result, err := svc.Register(context.Background(), domainauth.Credentials{
		Username: "alice",
		Password: "SecurePass123!",
	})
	if err != nil {
		t.Fatalf("Register() error = %v; want nil", err)
	}
	if result.Token == "" {
		t.Error("Register() Token is empty; want JWT token")
	}
	if result.UserID == "" {
		t.Error("Register() UserID is empty; want non-empty ID")
	}
	if result.Username != "alice" {
		t.Errorf("Register() Username = %q; want alice", result.Username)
	}
}

func TestAuthService_Register_TokenIsValid(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	result, err := svc.Register(context.Background(), domainauth.Credentials{Username: " bob ", Password: "SecurePass123!"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	claims, err := auth.ParseJWT(result.Token)
	if err != nil {
		t.Fatalf("Returned token is not a valid JWT: %v", err)
	}
	if claims.UserID != result.UserID {
		t.Errorf("JWT UserID = %q; want %q", claims.UserID, result.UserID)
	}
	if claims.Username != "bob" {
		t.Errorf("JWT Username = %q; want trimmed %q", claims.Username, "bob")
	}
}

func TestAuthService_Register_PasswordStoredHashed(t *testing.T) {
	t.Parallel()

	svc, db := newService(t)
	result, err := svc.Register(context.Background(), domainauth.Credentials{Username: "carol", Password: "SecurePass123!"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	var username, hash string
	if err := db.QueryRow(`SELECT username, password_hash FROM user_account WHERE id = ?`, result.UserID).
		Scan(&username, &hash); err != nil {
		t.Fatalf("User not found in DB after Register: %v", err)
	}
	if username != "carol" {
		t.Errorf("username = %q; want carol", username)
	}
	if hash == "" || hash == "SecurePass123!" {
		t.Errorf("password_hash = %q; want bcrypt hash", hash)
	}
	if !auth.VerifyPassword(hash, "SecurePass123!") {
		t.Error("stored hash does not verify the original password")
	}
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	in := domainauth.Credentials{Username: "dup", Password: "SecurePass123!"}

	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("First Register() error = %v; want nil", err)
	}
	_, err := svc.Register(context.Background(), in)
	if !errors.Is(err, domainauth.ErrUsernameTaken) {
		t.Errorf("Register() duplicate error = %v; want ErrUsernameTaken", err)
	}
}

func TestAuthService_Register_InvalidInput(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	cases := []domainauth.Credentials{
		{Username: "", Password: "x"},
		{Username: "   ", Password: "x"},
		{Username: "erin", Password: ""},
		{Username: strings.Repeat("u", domainauth.MaxUsernameLength+1), Password: "x"},
		{Username: "erin", Password: strings.Repeat("p", auth.MaxPasswordBytes+1)},
	}
	for _, in := range cases {
		if _, err := svc.Register(context.Background(), in); !errors.Is(err, domainauth.ErrInvalidInput) {
			t.Errorf("Register(%q) error = %v; want ErrInvalidInput", in.Username, err)
		}
	}
}

// ===== LOGIN TESTS =====

func TestAuthService_Login_Success(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	reg, err := svc.Register(context.Background(), domainauth.Credentials{Username: "eve", Password: "SecurePass123!"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := svc.Login(context.Background(), domainauth.Credentials{Username: "eve", Password: "SecurePass123!"})
	if err != nil {
		t.Fatalf("Login() error = %v; want nil", err)
	}
	if got.Token == "" {
		t.Error("Login() Token is empty; want JWT token")
	}
	if got.UserID != reg.UserID {
		t.Errorf("Login() UserID = %q; want %q", got.UserID, reg.UserID)
	}

	claims, err := auth.ParseJWT(got.Token)
	if err != nil {
		t.Fatalf("Login() token is not valid JWT: %v", err)
	}
	if claims.Username != "eve" {
		t.Errorf("claims.Username = %q; want eve", claims.Username)
	}
}

// A wrong password and an unknown user must be indistinguishable.
func TestAuthService_Login_ErrorIsGeneric(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	if _, err := svc.Register(context.Background(), domainauth.Credentials{Username: "hank", Password: "SecurePass123!"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, errWrongPw := svc.Login(context.Background(), domainauth.Credentials{Username: "hank", Password: "WrongPassword!"})
	_, errNoUser := svc.Login(context.Background(), domainauth.Credentials{Username: "nosuchuser", Password: "SecurePass123!"})

	if !errors.Is(errWrongPw, domainauth.ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v; want ErrInvalidCredentials", errWrongPw)
	}
	if !errors.Is(errNoUser, domainauth.ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v; want ErrInvalidCredentials", errNoUser)
	}
	if errWrongPw.Error() != errNoUser.Error() {
		t.Errorf("messages differ: %q vs %q", errWrongPw, errNoUser)
	}
}

// ===== ENSURE USER TESTS =====

func TestAuthService_EnsureUser_Idempotent(t *testing.T) {
	t.Parallel()

	svc, db := newService(t)
	in := domainauth.Credentials{Username: "admin", Password: "first"}

	created, err := svc.EnsureUser(context.Background(), in)
	if err != nil || !created {
		t.Fatalf("EnsureUser() = %v, %v; want true, nil", created, err)
	}

	created, err = svc.EnsureUser(context.Background(), domainauth.Credentials{Username: "admin", Password: "second"})
	if err != nil || created {
		t.Fatalf("EnsureUser() second = %v, %v; want false, nil", created, err)
	}

	// The original password still works; the second call did not overwrite it.
	if _, err := svc.Login(context.Background(), in); err != nil {
		t.Errorf("Login with original password error = %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM user_account WHERE username = 'admin'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("user rows = %d; want 1", count)
	}
}

func TestAuthService_EnsureUser_Concurrent(t *testing.T) {
	t.Parallel()

	svc, db := newService(t)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.EnsureUser(context.Background(), domainauth.Credentials{Username: "race", Password: "pw"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("EnsureUser() concurrent error = %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM user_account WHERE username = 'race'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("user rows = %d; want 1", count)
	}
}

// ===== TEST HELPERS =====

func mustOpenDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.NewDB(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("sqlite.NewDB error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := sqlite.MigrateUp(context.Background(), db); err != nil {
		t.Fatalf("MigrateUp error = %v", err)
	}
	return db
}
