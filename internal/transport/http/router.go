// http собирает публичный REST API auth-сервиса на chi.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/auth-service/internal/metrics"
	"github.com/pribylovaa/auth-service/internal/transport/http/handlers"
	"github.com/pribylovaa/auth-service/internal/transport/http/middleware"
)

// Service — всё, что роутеру нужно от сервисного слоя.
type Service interface {
	handlers.Service
	middleware.UserResolver
}

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
		middleware.Metrics(opts.Metrics),
		middleware.Timeout(opts.Timeout),
		middleware.DeserializeUser(svc),
	)

	h := handlers.New(svc)

	if opts.BasePath != "" && opts.BasePath != "/" {
		sub := chi.NewRouter()
		registerRoutes(sub, h)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h)

	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// users
	r.Post("/users", h.CreateUser)
	r.Post("/users/verify/{id}/{verificationCode}", h.VerifyUser)
	r.Post("/users/forgotpassword", h.ForgotPassword)
	r.Post("/users/resetpassword/{id}/{passwordResetCode}", h.ResetPassword)
	r.With(middleware.RequireUser()).Get("/users/me", h.Me)

	// sessions
	r.Post("/sessions", h.CreateSession)
	r.Post("/sessions/refresh", h.RefreshSession)
	r.Delete("/sessions", h.DeleteSession)
}
