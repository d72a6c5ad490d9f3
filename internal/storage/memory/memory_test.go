package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/auth-service/internal/models"
	"github.com/pribylovaa/auth-service/internal/storage"
)

func newUser(email string) *models.User {
	now := time.Now().UTC()
	return &models.User{
		ID:               uuid.New(),
		Email:            email,
		PasswordHash:     "hash",
		VerificationCode: "vcode",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestUsers_SaveAndLookup(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	u := newUser("User@Example.com")

	require.NoError(t, s.SaveUser(ctx, u))

	got, err := s.UserByEmail(ctx, "user@example.COM")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got, err = s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "User@Example.com", got.Email)

	_, err = s.UserByID(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.UserByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUsers_Unique(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	u := newUser("a@example.com")
	require.NoError(t, s.SaveUser(ctx, u))

	err := s.SaveUser(ctx, newUser("A@EXAMPLE.COM"))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	dup := newUser("b@example.com")
	dup.ID = u.ID
	err = s.SaveUser(ctx, dup)
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestUsers_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	u := newUser("copy@example.com")
	require.NoError(t, s.SaveUser(ctx, u))
	require.NoError(t, s.SetPasswordResetCode(ctx, u.ID, "r1"))

	got, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	got.Verified = true
	*got.PasswordResetCode = "tampered"

	again, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, again.Verified)
	require.Equal(t, "r1", *again.PasswordResetCode)
}

func TestMarkVerified(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	u := newUser("v@example.com")
	require.NoError(t, s.SaveUser(ctx, u))

	require.ErrorIs(t, s.MarkVerified(ctx, uuid.New(), "vcode"), storage.ErrNotFound)
	require.ErrorIs(t, s.MarkVerified(ctx, u.ID, "wrong"), storage.ErrConflict)

	require.NoError(t, s.MarkVerified(ctx, u.ID, "vcode"))

	got, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.Verified)
	require.Equal(t, "vcode", got.VerificationCode)

	require.ErrorIs(t, s.MarkVerified(ctx, u.ID, "vcode"), storage.ErrConflict)
}

func TestPasswordReset_LastWriteWins_AndSingleUse(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	u := newUser("r@example.com")
	require.NoError(t, s.SaveUser(ctx, u))

	require.ErrorIs(t, s.ConsumePasswordResetCode(ctx, u.ID, "", "x"), storage.ErrConflict)

	require.NoError(t, s.SetPasswordResetCode(ctx, u.ID, "first"))
	require.NoError(t, s.SetPasswordResetCode(ctx, u.ID, "second"))

	require.ErrorIs(t, s.ConsumePasswordResetCode(ctx, u.ID, "first", "x"), storage.ErrConflict)
	require.NoError(t, s.ConsumePasswordResetCode(ctx, u.ID, "second", "new-hash"))
	require.ErrorIs(t, s.ConsumePasswordResetCode(ctx, u.ID, "second", "other"), storage.ErrConflict)

	got, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, got.PasswordResetCode)
	require.Equal(t, "new-hash", got.PasswordHash)

	require.ErrorIs(t, s.SetPasswordResetCode(ctx, uuid.New(), "c"), storage.ErrNotFound)
	require.ErrorIs(t, s.ConsumePasswordResetCode(ctx, uuid.New(), "c", "h"), storage.ErrNotFound)
}

func TestPasswordReset_ConcurrentConsume_ExactlyOneWins(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	u := newUser("race@example.com")
	require.NoError(t, s.SaveUser(ctx, u))
	require.NoError(t, s.SetPasswordResetCode(ctx, u.ID, "code"))

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.ConsumePasswordResetCode(ctx, u.ID, "code", "h") == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
}

func TestSessions(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	sess := &models.Session{ID: uuid.New(), UserID: uuid.New(), Valid: true, UserAgent: "ua", CreatedAt: now, UpdatedAt: now}

	require.NoError(t, s.CreateSession(ctx, sess))
	require.ErrorIs(t, s.CreateSession(ctx, sess), storage.ErrAlreadyExists)

	got, err := s.SessionByID(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, got.Valid)
	require.Equal(t, "ua", got.UserAgent)

	require.NoError(t, s.InvalidateSession(ctx, sess.ID))
	require.NoError(t, s.InvalidateSession(ctx, sess.ID))

	got, err = s.SessionByID(ctx, sess.ID)
	require.NoError(t, err)
	require.False(t, got.Valid)

	require.ErrorIs(t, s.InvalidateSession(ctx, uuid.New()), storage.ErrNotFound)
	_, err = s.SessionByID(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInvalidateSessionsBefore(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	old := &models.Session{ID: uuid.New(), Valid: true, CreatedAt: now.Add(-48 * time.Hour)}
	fresh := &models.Session{ID: uuid.New(), Valid: true, CreatedAt: now}
	require.NoError(t, s.CreateSession(ctx, old))
	require.NoError(t, s.CreateSession(ctx, fresh))

	n, err := s.InvalidateSessionsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := s.SessionByID(ctx, old.ID)
	require.NoError(t, err)
	require.False(t, got.Valid)

	got, err = s.SessionByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.True(t, got.Valid)

	n, err = s.InvalidateSessionsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, s.SaveUser(ctx, newUser("c@example.com")), context.Canceled)
	_, err := s.SessionByID(ctx, uuid.New())
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, s.Ping(ctx), context.Canceled)
}
