package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pribylovaa/auth-service/internal/models"
	"github.com/pribylovaa/auth-service/internal/pkg/log"
	"github.com/pribylovaa/auth-service/internal/service"
	apierrors "github.com/pribylovaa/auth-service/internal/transport/http/errors"
)

// Заголовки токенов.
const (
	HeaderRefresh     = "X-Refresh"
	HeaderAccessToken = "X-Access-Token"
)

// UserResolver проверяет токены для DeserializeUser.
type UserResolver interface {
	CurrentUser(ctx context.Context, accessToken string) (*models.User, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*models.TokenPair, error)
}

type userKey struct{}

// UserFrom возвращает пользователя, положенного DeserializeUser.
func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey{}).(*models.User)
	return u, ok && u != nil
}

// DeserializeUser читает Bearer access-токен и кладёт пользователя из claims в контекст.
// Если access-токен истёк, а в X-Refresh передан действующий refresh-токен,
// выпускает новый access-токен и отдаёт его в заголовке X-Access-Token.
// Отсутствие или невалидность токена не ошибка: запрос идёт дальше анонимным.
func DeserializeUser(res UserResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()

			user, err := res.CurrentUser(ctx, token)
			if errors.Is(err, service.ErrTokenExpired) {
				user = refreshUser(ctx, w, res, r.Header.Get(HeaderRefresh))
			}

			if user != nil {
				ctx = context.WithValue(ctx, userKey{}, user)
				ctx = log.With(ctx, slog.String("user_id", user.ID.String()))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func refreshUser(ctx context.Context, w http.ResponseWriter, res UserResolver, refresh string) *models.User {
	if refresh == "" {
		return nil
	}

	pair, err := res.RefreshAccessToken(ctx, refresh)
	if err != nil {
		return nil
	}

	user, err := res.CurrentUser(ctx, pair.AccessToken)
	if err != nil {
		return nil
	}

	w.Header().Set(HeaderAccessToken, pair.AccessToken)

	return user
}

// RequireUser отвечает 403, если DeserializeUser не нашёл пользователя.
func RequireUser() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserFrom(r.Context()); !ok {
				apierrors.Write(w, r, http.StatusForbidden, apierrors.CodeForbidden, "Access denied. No user found.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearer(h string) string {
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}

	return strings.TrimSpace(h[len(prefix):])
}
