// memory — хранилище пользователей и сессий в памяти процесса.
// Используется локально и в тестах; данные теряются при перезапуске.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/auth-service/internal/models"
	"github.com/pribylovaa/auth-service/internal/storage"
)

// Storage хранит записи в map, индексированных по id; email — вторичный индекс.
// Наружу отдаются только копии.
type Storage struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]models.User
	byEmail  map[string]uuid.UUID
	sessions map[uuid.UUID]models.Session
	now      func() time.Time
}

// New создает пустое хранилище.
func New() *Storage {
	return &Storage{
		users:    make(map[uuid.UUID]models.User),
		byEmail:  make(map[string]uuid.UUID),
		sessions: make(map[uuid.UUID]models.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func cloneUser(u models.User) *models.User {
	if u.PasswordResetCode != nil {
		code := *u.PasswordResetCode
		u.PasswordResetCode = &code
	}

	return &u
}

// SaveUser создает нового пользователя.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.memory.SaveUser"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(user.Email)
	if _, ok := s.byEmail[key]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	s.users[user.ID] = *cloneUser(*user)
	s.byEmail[key] = user.ID

	return nil
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.memory.UserByEmail"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return cloneUser(s.users[id]), nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.memory.UserByID"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return cloneUser(u), nil
}

// MarkVerified подтверждает аккаунт при совпадении кода.
func (s *Storage) MarkVerified(ctx context.Context, id uuid.UUID, code string) error {
	const op = "storage.memory.MarkVerified"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if u.Verified || u.VerificationCode != code {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}

	u.Verified = true
	u.UpdatedAt = s.now()
	s.users[id] = u

	return nil
}

// SetPasswordResetCode перезаписывает код сброса пароля.
func (s *Storage) SetPasswordResetCode(ctx context.Context, id uuid.UUID, code string) error {
	const op = "storage.memory.SetPasswordResetCode"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	u.PasswordResetCode = &code
	u.UpdatedAt = s.now()
	s.users[id] = u

	return nil
}

// ConsumePasswordResetCode меняет пароль и очищает код за одну операцию.
func (s *Storage) ConsumePasswordResetCode(ctx context.Context, id uuid.UUID, code, passwordHash string) error {
	const op = "storage.memory.ConsumePasswordResetCode"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if u.PasswordResetCode == nil || *u.PasswordResetCode != code {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}

	u.PasswordResetCode = nil
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now()
	s.users[id] = u

	return nil
}

// CreateSession сохраняет новую сессию.
func (s *Storage) CreateSession(ctx context.Context, session *models.Session) error {
	const op = "storage.memory.CreateSession"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	s.sessions[session.ID] = *session

	return nil
}

// SessionByID находит сессию по ID.
func (s *Storage) SessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const op = "storage.memory.SessionByID"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return &sess, nil
}

// InvalidateSession выставляет valid=false.
func (s *Storage) InvalidateSession(ctx context.Context, id uuid.UUID) error {
	const op = "storage.memory.InvalidateSession"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if sess.Valid {
		sess.Valid = false
		sess.UpdatedAt = s.now()
		s.sessions[id] = sess
	}

	return nil
}

// InvalidateSessionsBefore инвалидирует действующие сессии старше before.
func (s *Storage) InvalidateSessionsBefore(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.memory.InvalidateSessionsBefore"

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	now := s.now()
	for id, sess := range s.sessions {
		if sess.Valid && sess.CreatedAt.Before(before) {
			sess.Valid = false
			sess.UpdatedAt = now
			s.sessions[id] = sess
			n++
		}
	}

	return n, nil
}

// Ping всегда успешен, пока контекст жив.
func (s *Storage) Ping(ctx context.Context) error { return ctx.Err() }

// Close ничего не освобождает.
func (s *Storage) Close() {}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Storage)(nil)
