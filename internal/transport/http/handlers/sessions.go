package handlers

import (
	"errors"
	"net/http"

	"github.com/pribylovaa/auth-service/internal/service"
	apierrors "github.com/pribylovaa/auth-service/internal/transport/http/errors"
	"github.com/pribylovaa/auth-service/internal/transport/http/middleware"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgVerifyEmail        = "Please verify your email"
	msgCouldNotRefresh    = "Could not refresh access token"
	msgCouldNotLogout     = "Could not invalidate session"
	msgLoggedOut          = "Session invalidated"
)

// CreateSession — POST /sessions: вход по email и паролю.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var in CreateSessionRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeInvalidArgument, "invalid request body")
		return
	}

	if err := in.Validate(); err != nil {
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeInvalidArgument, err.Error())
		return
	}

	pair, err := h.svc.LoginUser(r.Context(), in.Email, in.Password, r.UserAgent())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, tokenResponse(pair))
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUnavailable):
		apierrors.Write(w, r, http.StatusUnauthorized, apierrors.CodeUnauthenticated, msgInvalidCredentials)
	case errors.Is(err, service.ErrUnverified):
		apierrors.Write(w, r, http.StatusForbidden, apierrors.CodeUnverified, msgVerifyEmail)
	default:
		internal(w, r, err)
	}
}

// RefreshSession — POST /sessions/refresh: новый access-токен по X-Refresh.
func (h *Handlers) RefreshSession(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(middleware.HeaderRefresh)
	if token == "" {
		apierrors.Write(w, r, http.StatusUnauthorized, apierrors.CodeUnauthenticated, msgCouldNotRefresh)
		return
	}

	pair, err := h.svc.RefreshAccessToken(r.Context(), token)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, tokenResponse(pair))
	case isSessionRejection(err):
		apierrors.Write(w, r, http.StatusUnauthorized, apierrors.CodeUnauthenticated, msgCouldNotRefresh)
	default:
		internal(w, r, err)
	}
}

// DeleteSession — DELETE /sessions: инвалидация сессии из X-Refresh.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(middleware.HeaderRefresh)
	if token == "" {
		apierrors.Write(w, r, http.StatusUnauthorized, apierrors.CodeUnauthenticated, msgCouldNotLogout)
		return
	}

	err := h.svc.Logout(r.Context(), token)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, msgLoggedOut)
	case isSessionRejection(err):
		apierrors.Write(w, r, http.StatusUnauthorized, apierrors.CodeUnauthenticated, msgCouldNotLogout)
	default:
		internal(w, r, err)
	}
}

func isSessionRejection(err error) bool {
	return errors.Is(err, service.ErrInvalidToken) ||
		errors.Is(err, service.ErrTokenExpired) ||
		errors.Is(err, service.ErrSessionRevoked) ||
		errors.Is(err, service.ErrUserNotFound) ||
		errors.Is(err, service.ErrUnavailable)
}
