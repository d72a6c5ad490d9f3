// cache — кэш refresh-сессий в Redis.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/auth-service/internal/models"
)

// SessionCache — минимальный контракт кэша сессий.
type SessionCache interface {
	// Get возвращает сессию и признак её наличия в кэше.
	Get(ctx context.Context, id uuid.UUID) (*models.Session, bool, error)
	// Set сохраняет сессию с TTL, перезаписывая ключ.
	Set(ctx context.Context, s *models.Session, ttl time.Duration) error
	// Fill сохраняет сессию, только если ключа ещё нет (заполнение после промаха).
	// Возвращает false, если ключ уже существовал.
	Fill(ctx context.Context, s *models.Session, ttl time.Duration) (bool, error)
	// Revoke выставляет valid=0 в ключе сессии (создаёт его при отсутствии).
	// Такой ключ Fill уже не перезапишет.
	Revoke(ctx context.Context, id uuid.UUID, ttl time.Duration) error
	// Delete удаляет ключ сессии.
	Delete(ctx context.Context, id uuid.UUID) error
	// Close закрывает клиент Redis.
	Close() error
}

// fillScript пишет hash и TTL атомарно и только при отсутствии ключа.
// KEYS[1] — ключ; ARGV[1] — TTL в мс; далее пары поле/значение.
var fillScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return 1
`)

type redisCache struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "auth:session:".
func NewRedisCache(ctx context.Context, redisURL, prefix string) (SessionCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return newRedisCache(rdb, prefix), nil
}

func newRedisCache(rdb redis.UniversalClient, prefix string) *redisCache {
	if prefix == "" {
		prefix = "auth:session:"
	}

	return &redisCache{rdb: rdb, prefix: prefix}
}

func (c *redisCache) key(id uuid.UUID) string { return c.prefix + id.String() }

// Храним как Redis Hash с полями: uid, valid (0/1), ua, created, updated (unix nano).
// После Revoke в ключе может быть только valid=0.
func (c *redisCache) Get(ctx context.Context, id uuid.UUID) (*models.Session, bool, error) {
	m, err := c.rdb.HGetAll(ctx, c.key(id)).Result()
	if err != nil {
		return nil, false, err
	}

	if len(m) == 0 {
		return nil, false, nil
	}

	if m["valid"] != "1" {
		return &models.Session{ID: id, Valid: false}, true, nil
	}

	uid, err := uuid.Parse(m["uid"])
	if err != nil {
		return nil, false, err
	}

	created, err := strconv.ParseInt(m["created"], 10, 64)
	if err != nil {
		return nil, false, err
	}

	updated, err := strconv.ParseInt(m["updated"], 10, 64)
	if err != nil {
		return nil, false, err
	}

	return &models.Session{
		ID:        id,
		UserID:    uid,
		Valid:     m["valid"] == "1",
		UserAgent: m["ua"],
		CreatedAt: time.Unix(0, created).UTC(),
		UpdatedAt: time.Unix(0, updated).UTC(),
	}, true, nil
}

func sessionFields(s *models.Session) []any {
	return []any{
		"uid", s.UserID.String(),
		"valid", boolTo01(s.Valid),
		"ua", s.UserAgent,
		"created", strconv.FormatInt(s.CreatedAt.UnixNano(), 10),
		"updated", strconv.FormatInt(s.UpdatedAt.UnixNano(), 10),
	}
}

func (c *redisCache) Set(ctx context.Context, s *models.Session, ttl time.Duration) error {
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(s.ID), sessionFields(s)...)
	pipe.PExpire(ctx, c.key(s.ID), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) Fill(ctx context.Context, s *models.Session, ttl time.Duration) (bool, error) {
	args := append([]any{ttl.Milliseconds()}, sessionFields(s)...)

	n, err := fillScript.Run(ctx, c.rdb, []string{c.key(s.ID)}, args...).Int()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (c *redisCache) Revoke(ctx context.Context, id uuid.UUID, ttl time.Duration) error {
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(id), "valid", "0")
	pipe.PExpire(ctx, c.key(id), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) Delete(ctx context.Context, id uuid.UUID) error {
	return c.rdb.Del(ctx, c.key(id)).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }

func boolTo01(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
