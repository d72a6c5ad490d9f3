package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pribylovaa/auth-service/internal/mail"
	"github.com/pribylovaa/auth-service/internal/models"
	"github.com/pribylovaa/auth-service/internal/pkg/log"
	"github.com/pribylovaa/auth-service/internal/pkg/redact"
	"github.com/pribylovaa/auth-service/internal/storage"
)

// RegisterInput — данные регистрации.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterUser создаёт неподтверждённого пользователя и отправляет письмо с кодом подтверждения.
func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (user *models.User, err error) {
	const op = "service.users.RegisterUser"

	defer func() { s.observe("register", err) }()

	normEmail, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	code, err := s.codes.Generate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	user = &models.User{
		ID:               uuid.New(),
		Email:            normEmail,
		FirstName:        strings.TrimSpace(in.FirstName),
		LastName:         strings.TrimSpace(in.LastName),
		PasswordHash:     hash,
		VerificationCode: code,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, storeErr(op, err)
	}

	log.From(ctx).Info("user_registered",
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	s.sendMail(ctx, op, mail.VerificationMessage(user.Email, user.ID, code))

	return user, nil
}

// VerifyUser подтверждает email по коду. Код не очищается: дальнейшие проверки
// закрыты флагом verified.
func (s *Service) VerifyUser(ctx context.Context, id uuid.UUID, code string) (err error) {
	const op = "service.users.VerifyUser"

	defer func() { s.observe("verify", err) }()

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return storeErr(op, err)
	}

	if user.Verified {
		return fmt.Errorf("%s: %w", op, ErrAlreadyVerified)
	}

	if !codesEqual(user.VerificationCode, code) {
		log.From(ctx).Info("verify_rejected", slog.String("user_id", id.String()), slog.String("code", redact.Code()))
		return fmt.Errorf("%s: %w", op, ErrCodeMismatch)
	}

	if err := s.storage.MarkVerified(ctx, id, code); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			// код неизменен, значит конкурентный запрос успел подтвердить аккаунт.
			return fmt.Errorf("%s: %w", op, ErrAlreadyVerified)
		case errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return storeErr(op, err)
	}

	log.From(ctx).Info("user_verified", slog.String("user_id", id.String()))

	return nil
}

// ForgotPassword выпускает новый код сброса пароля и отправляет его письмом.
// Для неизвестного email возвращает nil без побочных эффектов; для
// неподтверждённого аккаунта — ErrUnverified, если не включён UniformForgotPassword.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	const op = "service.users.ForgotPassword"

	defer func() { s.observe("forgot_password", err) }()

	lg := log.From(ctx)

	normEmail, err := normalizeEmail(email)
	if err != nil {
		lg.Debug("forgot_password_ignored", slog.String("reason", "invalid_email"))
		return nil
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Debug("forgot_password_ignored", slog.String("email", redact.Email(normEmail)), slog.String("reason", "unknown_email"))
			return nil
		}

		return storeErr(op, err)
	}

	if !user.Verified {
		if s.cfg.UniformForgotPassword {
			lg.Debug("forgot_password_ignored", slog.String("user_id", user.ID.String()), slog.String("reason", "unverified"))
			return nil
		}

		return fmt.Errorf("%s: %w", op, ErrUnverified)
	}

	code, err := s.codes.Generate()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.SetPasswordResetCode(ctx, user.ID, code); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}

		return storeErr(op, err)
	}

	s.sendMail(ctx, op, mail.PasswordResetMessage(user.Email, user.ID, code))

	lg.Info("password_reset_requested", slog.String("user_id", user.ID.String()))

	return nil
}

// ResetPassword меняет пароль по коду сброса. Код очищается той же операцией
// хранилища, что и смена пароля, поэтому один код срабатывает ровно один раз.
// Неизвестный пользователь, отсутствующий и неверный код неразличимы: ErrCodeMismatch.
func (s *Service) ResetPassword(ctx context.Context, id uuid.UUID, code, newPassword string) (err error) {
	const op = "service.users.ResetPassword"

	defer func() { s.observe("reset_password", err) }()

	if err := validatePassword(newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrCodeMismatch)
		}

		return storeErr(op, err)
	}

	if user.PasswordResetCode == nil || !codesEqual(*user.PasswordResetCode, code) {
		return fmt.Errorf("%s: %w", op, ErrCodeMismatch)
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.ConsumePasswordResetCode(ctx, id, code, hash); err != nil {
		if errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrCodeMismatch)
		}

		return storeErr(op, err)
	}

	log.From(ctx).Info("password_reset", slog.String("user_id", id.String()))

	return nil
}

func codesEqual(stored, supplied string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}
