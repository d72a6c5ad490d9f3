package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/auth-service/internal/models"
	"github.com/pribylovaa/auth-service/internal/storage"
)

func newSession(userID uuid.UUID, createdAt time.Time) *models.Session {
	return &models.Session{
		ID:        uuid.New(),
		UserID:    userID,
		Valid:     true,
		UserAgent: "curl/8.0",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestIntegration_CreateSession_And_GetByID_OK(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	u := seedUser(t, st, "session@example.com")
	now := time.Now().UTC()

	sess := newSession(u.ID, now)
	require.NoError(t, st.CreateSession(ctx, sess))

	got, err := st.SessionByID(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.UserID)
	require.True(t, got.Valid)
	require.Equal(t, "curl/8.0", got.UserAgent)
	require.WithinDuration(t, now, got.CreatedAt, time.Second)

	require.ErrorIs(t, st.CreateSession(ctx, sess), storage.ErrAlreadyExists)
}

func TestIntegration_CreateSession_UnknownUser(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	err := st.CreateSession(context.Background(), newSession(uuid.New(), time.Now().UTC()))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_SessionByID_NotFound(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	_, err := st.SessionByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_InvalidateSession(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	u := seedUser(t, st, "logout@example.com")
	sess := newSession(u.ID, time.Now().UTC())
	require.NoError(t, st.CreateSession(ctx, sess))

	require.NoError(t, st.InvalidateSession(ctx, sess.ID))
	require.NoError(t, st.InvalidateSession(ctx, sess.ID))

	got, err := st.SessionByID(ctx, sess.ID)
	require.NoError(t, err)
	require.False(t, got.Valid)

	require.ErrorIs(t, st.InvalidateSession(ctx, uuid.New()), storage.ErrNotFound)
}

func TestIntegration_InvalidateSessionsBefore(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	u := seedUser(t, st, "janitor@example.com")
	now := time.Now().UTC()

	old := newSession(u.ID, now.Add(-48*time.Hour))
	fresh := newSession(u.ID, now)
	require.NoError(t, st.CreateSession(ctx, old))
	require.NoError(t, st.CreateSession(ctx, fresh))

	n, err := st.InvalidateSessionsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := st.SessionByID(ctx, old.ID)
	require.NoError(t, err)
	require.False(t, got.Valid)

	got, err = st.SessionByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.True(t, got.Valid)
}

func TestIntegration_SessionQueries_ContextCanceled(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.SessionByID(ctx, uuid.New())
	require.ErrorIs(t, err, context.Canceled)

	err = st.InvalidateSession(ctx, uuid.New())
	require.ErrorIs(t, err, context.Canceled)
}
