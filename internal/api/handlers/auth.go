// HTTP handlers for register + login (public endpoints, no AuthMiddleware).
// Translates HTTP requests into domain/auth.AuthService calls and maps domain errors to HTTP codes.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	domainauth "github.com/matiasleandrokruk/aiweb/internal/domain/auth"
)

// AuthHandler handles authentication HTTP requests (register and login).
type AuthHandler struct {
	authService domainauth.AuthService
}

// NewAuthHandler creates a new AuthHandler backed by the provided AuthService.
func NewAuthHandler(authService domainauth.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// CredentialsRequest is the request body for POST /auth/register and POST /auth/login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is the response body returned after successful register or login.
type AuthResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Register handles POST /auth/register.
//
// Response codes:
//   - 201 Created: registration successful
//   - 400 Bad Request: invalid JSON or missing required fields
//   - 409 Conflict: username already registered
//   - 500 Internal Server Error: unexpected failure
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	result, err := h.authService.Register(r.Context(), domainauth.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, domainauth.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "username already registered")
		case errors.Is(err, domainauth.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(result))
}

// Login handles POST /auth/login.
//
// Response codes:
//   - 200 OK: login successful
//   - 400 Bad Request: invalid JSON or missing required fields
//   - 401 Unauthorized: invalid credentials (generic, doesn't reveal if the username exists)
//   - 500 Internal Server Error: unexpected failure
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	result, err := h.authService.Login(r.Context(), domainauth.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, domainauth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, domainauth.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(result))
}

// decodeCredentials parses and validates the shared request body.
// It writes the 400 itself and reports false when the handler must stop.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (CredentialsRequest, bool) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return req, false
	}
	if err := validateCredentials(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

func validateCredentials(req CredentialsRequest) error {
	if req.Username == "" {
		return errors.New("username is required")
	}
	if req.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

func toAuthResponse(r *domainauth.AuthResult) AuthResponse {
	return AuthResponse{Token: r.Token, UserID: r.UserID, Username: r.Username}
}
