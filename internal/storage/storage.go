package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/auth-service/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/сессия).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/id).
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict — условие conditional update не выполнено: запись изменилась
	// или код не совпал.
	ErrConflict = errors.New("conditional update failed")
)

// UserStorage выполняет операции над пользователями.
//
// Email хранится и ищется регистронезависимо.
type UserStorage interface {
	// SaveUser создает нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// MarkVerified выставляет verified=true, только если аккаунт ещё не
	// подтверждён и код совпадает. Иначе ErrConflict (ErrNotFound — нет пользователя).
	MarkVerified(ctx context.Context, id uuid.UUID, code string) error
	// SetPasswordResetCode перезаписывает код сброса пароля (последняя запись выигрывает).
	SetPasswordResetCode(ctx context.Context, id uuid.UUID, code string) error
	// ConsumePasswordResetCode одной операцией очищает код сброса и меняет хэш
	// пароля при условии, что текущий код равен code. Иначе ErrConflict.
	ConsumePasswordResetCode(ctx context.Context, id uuid.UUID, code, passwordHash string) error
}

// SessionStorage выполняет операции над refresh-сессиями.
// Сессии не удаляются: единственное изменяемое поле — valid.
type SessionStorage interface {
	// CreateSession сохраняет новую сессию.
	CreateSession(ctx context.Context, session *models.Session) error
	// SessionByID находит сессию по ID.
	SessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	// InvalidateSession выставляет valid=false. Повторный вызов не ошибка.
	InvalidateSession(ctx context.Context, id uuid.UUID) error
	// InvalidateSessionsBefore инвалидирует действующие сессии, созданные раньше before,
	// и возвращает их количество.
	InvalidateSessionsBefore(ctx context.Context, before time.Time) (int64, error)
}

// Storage задает контракт работы с хранилищем.
type Storage interface {
	UserStorage
	SessionStorage
	// Ping проверяет доступность бэкенда (readiness).
	Ping(ctx context.Context) error
	Close()
}
