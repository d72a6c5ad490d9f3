package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/auth-service/internal/models"
	"github.com/pribylovaa/auth-service/internal/pkg/log"
	"github.com/pribylovaa/auth-service/internal/storage"
)

// ErrStaleCache — сессия инвалидирована в хранилище, но в кэше могла остаться
// её действующая копия. Повторный вызов безопасен.
var ErrStaleCache = errors.New("session cache not invalidated")

// CachedSessions — декоратор storage.Storage с кэшированием сессий:
//   - CreateSession: запись в БД, затем в кэш (read-your-writes для ближайшего refresh);
//   - SessionByID: read-through, промах или ошибка кэша ведут в БД; заполнение
//     после промаха не перезаписывает существующий ключ;
//   - InvalidateSession: обновление в БД, затем valid=0 в кэше.
//
// Ошибки Redis на чтении и записи не меняют результат операции: источник истины —
// хранилище. Исключение — инвалидация: если кэш не удалось ни пометить, ни
// очистить, возвращается ErrStaleCache.
//
// InvalidateSessionsBefore кэш не трогает: janitor инвалидирует сессии старше
// refresh TTL, их токены к этому моменту уже истекли.
type CachedSessions struct {
	storage.Storage
	cache SessionCache
	ttl   time.Duration
}

// NewCachedSessions оборачивает хранилище кэшем.
func NewCachedSessions(st storage.Storage, c SessionCache, ttl time.Duration) *CachedSessions {
	return &CachedSessions{Storage: st, cache: c, ttl: ttl}
}

// CreateSession сохраняет сессию в хранилище и прогревает кэш.
func (c *CachedSessions) CreateSession(ctx context.Context, session *models.Session) error {
	const op = "cache.CachedSessions.CreateSession"

	if err := c.Storage.CreateSession(ctx, session); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.cache.Set(ctx, session, c.ttl); err != nil {
		log.From(ctx).Warn("session_cache_set_failed",
			slog.String("op", op),
			slog.String("session_id", session.ID.String()),
			slog.String("err", err.Error()),
		)
	}

	return nil
}

// SessionByID читает сессию из кэша, при промахе — из хранилища.
func (c *CachedSessions) SessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const op = "cache.CachedSessions.SessionByID"

	lg := log.From(ctx)

	s, ok, err := c.cache.Get(ctx, id)
	switch {
	case err != nil:
		lg.Warn("session_cache_get_failed",
			slog.String("op", op),
			slog.String("session_id", id.String()),
			slog.String("err", err.Error()),
		)
	case ok:
		return s, nil
	}

	s, err = c.Storage.SessionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := c.cache.Fill(ctx, s, c.ttl); err != nil {
		lg.Warn("session_cache_fill_failed",
			slog.String("op", op),
			slog.String("session_id", id.String()),
			slog.String("err", err.Error()),
		)
	}

	return s, nil
}

// InvalidateSession инвалидирует сессию в хранилище и помечает её отозванной в кэше.
// Если пометить не удалось, ключ удаляется; если не удалось и удаление — ErrStaleCache.
func (c *CachedSessions) InvalidateSession(ctx context.Context, id uuid.UUID) error {
	const op = "cache.CachedSessions.InvalidateSession"

	if err := c.Storage.InvalidateSession(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	revokeErr := c.cache.Revoke(ctx, id, c.ttl)
	if revokeErr == nil {
		return nil
	}

	lg := log.From(ctx)
	lg.Warn("session_cache_revoke_failed",
		slog.String("op", op),
		slog.String("session_id", id.String()),
		slog.String("err", revokeErr.Error()),
	)

	if err := c.cache.Delete(ctx, id); err != nil {
		lg.Error("session_cache_delete_failed",
			slog.String("op", op),
			slog.String("session_id", id.String()),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w: %v", op, ErrStaleCache, errors.Join(revokeErr, err))
	}

	return nil
}

// Close закрывает кэш и хранилище.
func (c *CachedSessions) Close() {
	_ = c.cache.Close()
	c.Storage.Close()
}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*CachedSessions)(nil)
