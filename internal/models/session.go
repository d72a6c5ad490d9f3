package models

import (
	"time"

	"github.com/google/uuid"
)

// Session — refresh-сессия, на которую ссылается refresh-токен.
//
// После создания меняется только Valid: отзыв мягкий, записи не удаляются.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Valid     bool
	UserAgent string
	CreatedAt time.Time
	UpdatedAt time.Time
}
