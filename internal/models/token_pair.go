package models

import "time"

// TokenPair — результат входа или обновления токена. При обновлении
// RefreshToken пустой: refresh-токен не ротируется.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}
