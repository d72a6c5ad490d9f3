// postgres реализует storage.Storage поверх PostgreSQL (pgx/v5).
//
// Таблицы users и sessions создаются миграциями goose (см. migrate.go).
// Условные переходы (подтверждение email, сброс пароля) выполняются одним
// UPDATE ... WHERE с проверкой кода, поэтому конкурентные вызовы с одним
// кодом дают ровно одного победителя.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pribylovaa/auth-service/internal/storage"
)

// applicationName помечает соединения сервиса в pg_stat_activity.
const applicationName = "auth-service"

// Storage — пул соединений с PostgreSQL.
type Storage struct {
	db *pgxpool.Pool
}

// New открывает пул по dbURL и проверяет соединение.
func New(ctx context.Context, dbURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	poolCfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: pool}, nil
}

// Ping используется readiness-пробой.
func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.postgres.Ping"

	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() {
	s.db.Close()
}

var _ storage.Storage = (*Storage)(nil)
