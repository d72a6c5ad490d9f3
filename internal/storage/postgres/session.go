package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/auth-service/internal/models"
	"github.com/pribylovaa/auth-service/internal/storage"
)

// CreateSession сохраняет новую refresh-сессию.
func (s *Storage) CreateSession(ctx context.Context, session *models.Session) error {
	const op = "storage.postgres.CreateSession"

	query := `
		INSERT INTO sessions(id, user_id, valid, user_agent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Valid,
		session.UserAgent,
		session.CreatedAt,
		session.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
			case pgerrcode.ForeignKeyViolation:
				return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
			}
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SessionByID находит сессию по ID.
func (s *Storage) SessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const op = "storage.postgres.SessionByID"

	query := `
		SELECT id, user_id, valid, user_agent, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`

	var session models.Session
	err := s.db.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.Valid,
		&session.UserAgent,
		&session.CreatedAt,
		&session.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &session, nil
}

// InvalidateSession помечает сессию недействительной. Уже недействительная
// сессия не считается ошибкой.
func (s *Storage) InvalidateSession(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.InvalidateSession"

	const upd = `
		UPDATE sessions
		SET valid = FALSE,
		    updated_at = CASE WHEN valid THEN now() ELSE updated_at END
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, upd, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// InvalidateSessionsBefore инвалидирует действующие сессии, созданные раньше before.
func (s *Storage) InvalidateSessionsBefore(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.postgres.InvalidateSessionsBefore"

	const upd = `
		UPDATE sessions
		SET valid = FALSE, updated_at = now()
		WHERE valid AND created_at < $1
	`

	tag, err := s.db.Exec(ctx, upd, before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}
