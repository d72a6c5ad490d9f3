package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pribylovaa/auth-service/internal/models"
	"github.com/pribylovaa/auth-service/internal/pkg/log"
	"github.com/pribylovaa/auth-service/internal/pkg/redact"
	"github.com/pribylovaa/auth-service/internal/signer"
	"github.com/pribylovaa/auth-service/internal/storage"
)

// LoginUser выполняет вход по email+пароль и открывает новую refresh-сессию.
// Сессия создаётся только после всех проверок.
func (s *Service) LoginUser(ctx context.Context, email, password, userAgent string) (pair *models.TokenPair, err error) {
	const op = "service.auth.LoginUser"

	defer func() { s.observe("login", err) }()

	lg := log.From(ctx)

	normEmail, err := normalizeEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			checkPassword(dummyHash(), password)
			lg.Info("login_rejected", slog.String("email", redact.Email(normEmail)), slog.String("reason", "unknown_email"))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, storeErr(op, err)
	}

	if !user.Verified {
		lg.Info("login_rejected", slog.String("user_id", user.ID.String()), slog.String("reason", "unverified"))
		return nil, fmt.Errorf("%s: %w", op, ErrUnverified)
	}

	if !checkPassword(user.PasswordHash, password) {
		lg.Info("login_rejected", slog.String("user_id", user.ID.String()), slog.String("reason", "bad_password"))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	now := s.now()

	access, exp, err := s.signer.SignAccess(user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	session := &models.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		Valid:     true,
		UserAgent: userAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storage.CreateSession(ctx, session); err != nil {
		return nil, storeErr(op, err)
	}

	refresh, err := s.signer.SignRefresh(session.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("session_created",
		slog.String("user_id", user.ID.String()),
		slog.String("session_id", session.ID.String()),
	)

	return &models.TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: exp,
	}, nil
}

// RefreshAccessToken выпускает новый access-токен по refresh-токену.
// Refresh-токен не ротируется и остаётся действительным до истечения срока или
// инвалидации сессии.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (pair *models.TokenPair, err error) {
	const op = "service.auth.RefreshAccessToken"

	defer func() { s.observe("refresh", err) }()

	lg := log.From(ctx)

	sessionID, err := s.signer.ParseRefresh(refreshToken)
	if err != nil {
		lg.Info("refresh_rejected", slog.String("reason", "token"), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, tokenErr(err))
	}

	session, err := s.storage.SessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Info("refresh_rejected", slog.String("reason", "session_not_found"), slog.String("session_id", sessionID.String()))
			return nil, fmt.Errorf("%s: %w", op, ErrSessionRevoked)
		}

		return nil, storeErr(op, err)
	}

	if !session.Valid {
		lg.Info("refresh_rejected", slog.String("reason", "session_invalid"), slog.String("session_id", sessionID.String()))
		return nil, fmt.Errorf("%s: %w", op, ErrSessionRevoked)
	}

	user, err := s.storage.UserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Info("refresh_rejected", slog.String("reason", "user_not_found"), slog.String("session_id", sessionID.String()))
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, storeErr(op, err)
	}

	access, exp, err := s.signer.SignAccess(user, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{AccessToken: access, AccessExpiresAt: exp}, nil
}

// Logout инвалидирует сессию, на которую ссылается refresh-токен.
// Повторный logout той же сессии не ошибка.
func (s *Service) Logout(ctx context.Context, refreshToken string) (err error) {
	const op = "service.auth.Logout"

	defer func() { s.observe("logout", err) }()

	sessionID, err := s.signer.ParseRefresh(refreshToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, tokenErr(err))
	}

	if err := s.storage.InvalidateSession(ctx, sessionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrSessionRevoked)
		}

		return storeErr(op, err)
	}

	log.From(ctx).Info("session_invalidated", slog.String("session_id", sessionID.String()))

	return nil
}

// CurrentUser проверяет access-токен и возвращает пользователя из его claims.
// Хранилище не опрашивается: access-токены stateless.
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "service.auth.CurrentUser"

	claims, err := s.signer.ParseAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, tokenErr(err))
	}

	id, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return &models.User{
		ID:        id,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Verified:  claims.Verified,
	}, nil
}

// tokenErr переводит ошибки signer в ошибки сервиса.
func tokenErr(err error) error {
	if errors.Is(err, signer.ErrTokenExpired) {
		return ErrTokenExpired
	}

	return ErrInvalidToken
}

// SweepSessions инвалидирует сессии, созданные раньше, чем RefreshTokenTTL назад:
// refresh-токены таких сессий уже истекли. Возвращает число затронутых сессий.
func (s *Service) SweepSessions(ctx context.Context) (int64, error) {
	const op = "service.auth.SweepSessions"

	n, err := s.storage.InvalidateSessionsBefore(ctx, s.now().Add(-s.cfg.RefreshTokenTTL))
	if err != nil {
		return 0, storeErr(op, err)
	}

	if n > 0 {
		log.From(ctx).Info("session_janitor_swept", slog.Int64("invalidated", n))
	}

	return n, nil
}
