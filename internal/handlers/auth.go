package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// LockoutGate defines the login gate call sites used by the login handler
type LockoutGate interface {
	ResolveIdentity(r *http.Request) string
	PreCheck(ctx context.Context, identity, username string) *services.BlockResult
	OnFailure(ctx context.Context, identity, username string)
	OnSuccess(ctx context.Context, identity, username string)
}

// CredentialVerifier checks a username and password. It must return
// models.ErrInvalidCredential for a rejected login; any other error is
// treated as an internal failure and is not counted against the caller.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	gate     LockoutGate
	verifier CredentialVerifier
	timing   *auth.TimingDelay
	logger   *slog.Logger
	env      string
}

// NewAuthHandler creates a new AuthHandler. timing may be nil.
func NewAuthHandler(gate LockoutGate, verifier CredentialVerifier, timing *auth.TimingDelay, logger *slog.Logger, env string) *AuthHandler {
	return &AuthHandler{
		gate:     gate,
		verifier: verifier,
		timing:   timing,
		logger:   logger,
		env:      env,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginResponse is returned on a successful login
type LoginResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username"`
}

const invalidCredentialsMessage = "Invalid username or password"

// maxLoginBodyBytes bounds the login request body
const maxLoginBodyBytes = 4 << 10

// Login handles POST /auth/login. The lockout check runs before the
// credentials are looked at, so a locked caller learns nothing about the password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	identity := h.gate.ResolveIdentity(r)

	if block := h.gate.PreCheck(ctx, identity, req.Username); block != nil {
		h.timing.WaitFrom(ctx, start, false)
		pkghttp.WriteLoginBlocked(w, block.Message, block.RetryAfterMinutes)
		return
	}

	err := h.verifier.Verify(ctx, req.Username, req.Password)
	switch {
	case errors.Is(err, models.ErrInvalidCredential):
		h.gate.OnFailure(ctx, identity, req.Username)
		h.timing.WaitFrom(ctx, start, false)
		pkghttp.WriteUnauthorized(w, invalidCredentialsMessage)
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "credential verification failed",
			slog.String("ip_address", identity),
			slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.gate.OnSuccess(ctx, identity, req.Username)
	h.timing.WaitFrom(ctx, start, true)

	h.logger.InfoContext(ctx, "login succeeded",
		slog.String("ip_address", identity),
		pkglogger.CredentialAttr("username", req.Username, h.env))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LoginResponse{
		Authenticated: true,
		Username:      req.Username,
	})
}
