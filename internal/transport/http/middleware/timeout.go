package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrRequestTimeout — причина отмены контекста, когда истёк бюджет запроса
// сервера (в отличие от отмены клиентом). Достаётся через context.Cause.
var ErrRequestTimeout = errors.New("request budget exceeded")

// Timeout ограничивает запрос бюджетом d. Дедлайн, уже заданный выше по
// цепочке, сохраняется. d <= 0 отключает middleware.
func Timeout(d time.Duration) Middleware {
	if d <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeoutCause(r.Context(), d, ErrRequestTimeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
