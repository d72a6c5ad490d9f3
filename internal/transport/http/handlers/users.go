package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/auth-service/internal/pkg/log"
	"github.com/pribylovaa/auth-service/internal/service"
	apierrors "github.com/pribylovaa/auth-service/internal/transport/http/errors"
	"github.com/pribylovaa/auth-service/internal/transport/http/middleware"
)

// Сообщения пользовательских сценариев.
const (
	msgUserCreated        = "User successfully created"
	msgAccountExists      = "Account already exists"
	msgUserVerified       = "User successfully verified"
	msgCouldNotVerify     = "Could not verify user"
	msgAlreadyVerified    = "User is already verified"
	msgForgotPassword     = "If a user with that email is registered you will receive a password reset email"
	msgNotVerified        = "User is not verified"
	msgPasswordUpdated    = "Successfully updated password"
	msgCouldNotReset      = "Could not reset user password"
	msgServiceUnavailable = "service unavailable"
)

// CreateUser — POST /users: регистрация и письмо с кодом подтверждения.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in CreateUserRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeInvalidArgument, "invalid request body")
		return
	}

	if err := in.Validate(); err != nil {
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeInvalidArgument, err.Error())
		return
	}

	_, err := h.svc.RegisterUser(r.Context(), service.RegisterInput{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	switch {
	case err == nil:
		writeMessage(w, http.StatusCreated, msgUserCreated)
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword):
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeInvalidArgument, rootMessage(err))
	case errors.Is(err, service.ErrEmailTaken):
		apierrors.Write(w, r, http.StatusConflict, apierrors.CodeAlreadyExists, msgAccountExists)
	case errors.Is(err, service.ErrUnavailable):
		apierrors.Write(w, r, http.StatusServiceUnavailable, apierrors.CodeUnavailable, msgServiceUnavailable)
	default:
		internal(w, r, err)
	}
}

// VerifyUser — POST /users/verify/{id}/{verificationCode}.
func (h *Handlers) VerifyUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.Write(w, r, http.StatusNotFound, apierrors.CodeNotFound, msgCouldNotVerify)
		return
	}

	err = h.svc.VerifyUser(r.Context(), id, chi.URLParam(r, "verificationCode"))
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, msgUserVerified)
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrUnavailable):
		apierrors.Write(w, r, http.StatusNotFound, apierrors.CodeNotFound, msgCouldNotVerify)
	case errors.Is(err, service.ErrAlreadyVerified):
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeAlreadyVerified, msgAlreadyVerified)
	case errors.Is(err, service.ErrCodeMismatch):
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeInvalidCode, msgCouldNotVerify)
	default:
		internal(w, r, err)
	}
}

// ForgotPassword — POST /users/forgotpassword. Для неизвестного email ответ
// такой же, как для успешного запроса.
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in ForgotPasswordRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeInvalidArgument, "invalid request body")
		return
	}

	if err := in.Validate(); err != nil {
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeInvalidArgument, err.Error())
		return
	}

	err := h.svc.ForgotPassword(r.Context(), in.Email)
	switch {
	case err == nil, errors.Is(err, service.ErrUnavailable):
		writeMessage(w, http.StatusOK, msgForgotPassword)
	case errors.Is(err, service.ErrUnverified):
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeUnverified, msgNotVerified)
	default:
		internal(w, r, err)
	}
}

// ResetPassword — POST /users/resetpassword/{id}/{passwordResetCode}.
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in ResetPasswordRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeInvalidArgument, "invalid request body")
		return
	}

	if err := in.Validate(); err != nil {
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeInvalidArgument, err.Error())
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeInvalidCode, msgCouldNotReset)
		return
	}

	err = h.svc.ResetPassword(r.Context(), id, chi.URLParam(r, "passwordResetCode"), in.Password)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, msgPasswordUpdated)
	case errors.Is(err, service.ErrWeakPassword), errors.Is(err, service.ErrEmptyPassword):
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeInvalidArgument, rootMessage(err))
	case errors.Is(err, service.ErrCodeMismatch), errors.Is(err, service.ErrUnavailable):
		apierrors.Write(w, r, http.StatusBadRequest, apierrors.CodeInvalidCode, msgCouldNotReset)
	default:
		internal(w, r, err)
	}
}

// Me — GET /users/me: пользователь из access-токена (после RequireUser).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		apierrors.Write(w, r, http.StatusForbidden, apierrors.CodeForbidden, "Access denied. No user found.")
		return
	}

	writeJSON(w, http.StatusOK, userResponse(user))
}

// rootMessage возвращает текст sentinel-ошибки сервиса без префиксов op.
func rootMessage(err error) string {
	for _, e := range []error{service.ErrInvalidEmail, service.ErrWeakPassword, service.ErrEmptyPassword} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}

	return "invalid argument"
}

// internal логирует неожиданную ошибку и отвечает 500 без деталей.
func internal(w http.ResponseWriter, r *http.Request, err error) {
	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.String("err", err.Error()),
	}
	if cause := context.Cause(r.Context()); cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}

	log.From(r.Context()).Error("request_failed", attrs...)
	apierrors.Internal(w, r)
}
