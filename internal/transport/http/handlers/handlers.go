// handlers реализует REST-эндпойнты auth-сервиса поверх service.
// Хендлеры декодируют вход, валидируют DTO и маппят ошибки сервиса на
// HTTP-ответы; вся бизнес-логика в service.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/pribylovaa/auth-service/internal/models"
	"github.com/pribylovaa/auth-service/internal/service"
)

// Service — операции сервиса, нужные HTTP-слою.
type Service interface {
	RegisterUser(ctx context.Context, in service.RegisterInput) (*models.User, error)
	VerifyUser(ctx context.Context, id uuid.UUID, code string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, id uuid.UUID, code, newPassword string) error
	LoginUser(ctx context.Context, email, password, userAgent string) (*models.TokenPair, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	CurrentUser(ctx context.Context, accessToken string) (*models.User, error)
}

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	svc Service
}

func New(svc Service) *Handlers {
	return &Handlers{svc: svc}
}

// maxBodyBytes ограничивает размер JSON-тела запроса.
const maxBodyBytes = 1 << 16

// writeJSON — единый ответ JSON с нужным Content-Type.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeMessage отвечает {"message": msg}.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageResponse{Message: msg})
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}
