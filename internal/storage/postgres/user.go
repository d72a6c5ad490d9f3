package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/auth-service/internal/models"
	"github.com/pribylovaa/auth-service/internal/storage"
)

const userColumns = `id, email, first_name, last_name, password_hash, verified,
		verification_code, password_reset_code, created_at, updated_at`

// SaveUser создает нового пользователя в БД.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users(` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.Verified,
		user.VerificationCode,
		user.PasswordResetCode,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserByEmail"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// MarkVerified подтверждает аккаунт, если он ещё не подтверждён и код совпадает.
// Возвращает:
//
//	nil                  — аккаунт подтверждён сейчас;
//	storage.ErrConflict  — аккаунт уже подтверждён или код не совпал;
//	storage.ErrNotFound  — пользователь не найден.
func (s *Storage) MarkVerified(ctx context.Context, id uuid.UUID, code string) error {
	const op = "storage.postgres.MarkVerified"

	const upd = `
		UPDATE users
		SET verified = TRUE, updated_at = now()
		WHERE id = $1 AND verified = FALSE AND verification_code = $2
	`

	tag, err := s.db.Exec(ctx, upd, id, code)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	return s.conflictOrNotFound(ctx, op, id)
}

// SetPasswordResetCode перезаписывает код сброса пароля.
func (s *Storage) SetPasswordResetCode(ctx context.Context, id uuid.UUID, code string) error {
	const op = "storage.postgres.SetPasswordResetCode"

	const upd = `
		UPDATE users
		SET password_reset_code = $2, updated_at = now()
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, upd, id, code)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ConsumePasswordResetCode меняет хэш пароля и очищает код одним UPDATE,
// только если текущий код равен code. Повторное использование кода невозможно.
func (s *Storage) ConsumePasswordResetCode(ctx context.Context, id uuid.UUID, code, passwordHash string) error {
	const op = "storage.postgres.ConsumePasswordResetCode"

	const upd = `
		UPDATE users
		SET password_hash = $3, password_reset_code = NULL, updated_at = now()
		WHERE id = $1 AND password_reset_code IS NOT NULL AND password_reset_code = $2
	`

	tag, err := s.db.Exec(ctx, upd, id, code, passwordHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	return s.conflictOrNotFound(ctx, op, id)
}

func (s *Storage) conflictOrNotFound(ctx context.Context, op string, id uuid.UUID) error {
	const sel = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := s.db.QueryRow(ctx, sel, id).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return fmt.Errorf("%s: %w", op, storage.ErrConflict)
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.Verified,
		&user.VerificationCode,
		&user.PasswordResetCode,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	return &user, nil
}
