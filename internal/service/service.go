// service содержит бизнес-логику auth-сервиса: жизненный цикл токенов и
// refresh-сессий, подтверждение email и сброс пароля по одноразовым кодам.
//
// Основные аспекты:
//   - Service не хранит состояние запросов и безопасен для конкурентного
//     использования; вся координация (условные обновления) лежит на хранилище.
//   - Операции возвращают sentinel-ошибки ниже; транспорт маппит их на HTTP-статусы
//     и сообщения.
//   - Отправка писем — best effort: ошибки почты логируются и не меняют исход операции.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/auth-service/internal/codegen"
	"github.com/pribylovaa/auth-service/internal/config"
	"github.com/pribylovaa/auth-service/internal/mail"
	"github.com/pribylovaa/auth-service/internal/metrics"
	"github.com/pribylovaa/auth-service/internal/pkg/log"
	"github.com/pribylovaa/auth-service/internal/signer"
	"github.com/pribylovaa/auth-service/internal/storage"
)

var (
	// ErrInvalidCredentials — неизвестный email или неверный пароль (одно сообщение на оба случая).
	// HTTP 401.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUnverified — аккаунт не подтверждён. HTTP 403 (login) / 400 (forgot-password).
	ErrUnverified = errors.New("please verify your email")

	// ErrInvalidToken — токен повреждён, подписан чужим ключом или не той роли. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrSessionRevoked — сессия не найдена или недействительна. HTTP 401.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrUserNotFound — пользователь не найден. HTTP 404 (verify) / 401 (refresh).
	ErrUserNotFound = errors.New("user not found")

	// ErrCodeMismatch — одноразовый код не совпал, отсутствует или уже использован. HTTP 400.
	ErrCodeMismatch = errors.New("code mismatch")

	// ErrAlreadyVerified — аккаунт уже подтверждён. HTTP 400.
	ErrAlreadyVerified = errors.New("user is already verified")

	// ErrUnavailable — хранилище не ответило вовремя. Транспорт отвечает тем же
	// сообщением, что и на "не найдено" в соответствующем сценарии.
	ErrUnavailable = errors.New("store unavailable")

	// ErrEmailTaken — e-mail уже занят. HTTP 409.
	ErrEmailTaken = errors.New("account already exists")

	// ErrInvalidEmail — e-mail имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политике сложности. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")
)

// rejections — ожидаемые исходы операций (не сбои инфраструктуры).
var rejections = []error{
	ErrInvalidCredentials, ErrUnverified, ErrInvalidToken, ErrTokenExpired,
	ErrSessionRevoked, ErrUserNotFound, ErrCodeMismatch, ErrAlreadyVerified,
	ErrEmailTaken, ErrInvalidEmail, ErrWeakPassword, ErrEmptyPassword,
}

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	storage storage.Storage
	signer  *signer.Signer
	codes   codegen.Generator
	mailer  mail.Mailer
	metrics *metrics.Metrics
	cfg     config.AuthConfig
	now     func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics включает учёт исходов операций.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New создаёт новый экземпляр Service.
func New(st storage.Storage, sg *signer.Signer, codes codegen.Generator, mailer mail.Mailer, cfg config.AuthConfig, opts ...Option) *Service {
	s := &Service{
		storage: st,
		signer:  sg,
		codes:   codes,
		mailer:  mailer,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// storeErr переводит ошибку хранилища в ErrUnavailable, если она вызвана таймаутом.
func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// observe фиксирует исход операции в метриках.
func (s *Service) observe(op string, err error) {
	switch {
	case err == nil:
		s.metrics.Outcome(op, metrics.ResultOK)
	case isRejection(err):
		s.metrics.Outcome(op, metrics.ResultRejected)
	default:
		s.metrics.Outcome(op, metrics.ResultError)
	}
}

func isRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}

	return false
}

// sendMail отправляет письмо; ошибка только логируется.
func (s *Service) sendMail(ctx context.Context, op string, msg mail.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.From(ctx).Warn("mail_send_failed",
			slog.String("op", op),
			slog.String("subject", msg.Subject),
			slog.String("err", err.Error()),
		)
	}
}
