package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись пользователя.
//
// VerificationCode выставляется при регистрации и больше не меняется:
// после подтверждения e-mail его проверку закрывает флаг Verified.
// PasswordResetCode — одноразовый код сброса пароля; nil, если сброс не запрошен
// или код уже использован.
type User struct {
	ID                uuid.UUID
	Email             string
	FirstName         string
	LastName          string
	PasswordHash      string
	Verified          bool
	VerificationCode  string
	PasswordResetCode *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
