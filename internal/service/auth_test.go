package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/auth-service/internal/models"
	"github.com/pribylovaa/auth-service/internal/storage"
)

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()
	h, err := hashPassword(pw)
	require.NoError(t, err)
	return h
}

func verifiedUser(t *testing.T) *models.User {
	t.Helper()
	return &models.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		FirstName:    "Ada",
		PasswordHash: mustHashPW(t, strongPW),
		Verified:     true,
	}
}

// registerVerified регистрирует и подтверждает пользователя в memory-хранилище.
func registerVerified(t *testing.T, env memEnv, email string) *models.User {
	t.Helper()
	ctx := context.Background()

	u, err := env.svc.RegisterUser(ctx, RegisterInput{Email: email, Password: strongPW, FirstName: "Ada"})
	require.NoError(t, err)
	require.NoError(t, env.svc.VerifyUser(ctx, u.ID, u.VerificationCode))

	return u
}

func TestLoginUser_OK(t *testing.T) {
	t.Parallel()

	svc, m, _ := newSvc(t)
	u := verifiedUser(t)

	m.st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(u, nil)
	m.st.EXPECT().CreateSession(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, s *models.Session) error {
			require.Equal(t, u.ID, s.UserID)
			require.True(t, s.Valid)
			require.Equal(t, "curl/8", s.UserAgent)
			return nil
		})

	pair, err := svc.LoginUser(context.Background(), " User@Example.com ", strongPW, "curl/8")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.WithinDuration(t, time.Now().Add(30*time.Second), pair.AccessExpiresAt, 2*time.Second)

	claims, err := svc.signer.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID.String(), claims.Subject)
	require.Equal(t, "Ada", claims.FirstName)
}

func TestLoginUser_UnknownEmail(t *testing.T) {
	t.Parallel()

	svc, m, _ := newSvc(t)
	m.st.EXPECT().UserByEmail(gomock.Any(), "ghost@example.com").Return(nil, storage.ErrNotFound)

	_, err := svc.LoginUser(context.Background(), "ghost@example.com", strongPW, "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUser_MalformedEmail(t *testing.T) {
	t.Parallel()

	svc, _, _ := newSvc(t)

	_, err := svc.LoginUser(context.Background(), "not-an-email", strongPW, "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUser_BadPassword_NoSession(t *testing.T) {
	t.Parallel()

	svc, m, _ := newSvc(t)
	m.st.EXPECT().UserByEmail(gomock.Any(), gomock.Any()).Return(verifiedUser(t), nil)
	m.st.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.LoginUser(context.Background(), "user@example.com", "Wrong1!pass", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUser_Unverified_NoSession(t *testing.T) {
	t.Parallel()

	svc, m, _ := newSvc(t)
	u := verifiedUser(t)
	u.Verified = false

	m.st.EXPECT().UserByEmail(gomock.Any(), gomock.Any()).Return(u, nil)
	m.st.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.LoginUser(context.Background(), "user@example.com", strongPW, "")
	require.ErrorIs(t, err, ErrUnverified)
}

func TestLoginUser_StoreTimeout(t *testing.T) {
	t.Parallel()

	svc, m, _ := newSvc(t)
	m.st.EXPECT().UserByEmail(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("pg: %w", context.DeadlineExceeded))

	_, err := svc.LoginUser(context.Background(), "user@example.com", strongPW, "")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestLoginUser_CreateSessionError(t *testing.T) {
	t.Parallel()

	svc, m, _ := newSvc(t)
	boom := errors.New("db down")
	m.st.EXPECT().UserByEmail(gomock.Any(), gomock.Any()).Return(verifiedUser(t), nil)
	m.st.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Return(boom)

	pair, err := svc.LoginUser(context.Background(), "user@example.com", strongPW, "")
	require.ErrorIs(t, err, boom)
	require.Nil(t, pair)
}

func TestRefreshAccessToken_OK(t *testing.T) {
	t.Parallel()

	svc, m, _ := newSvc(t)
	u := verifiedUser(t)
	sid := uuid.New()

	refresh, err := svc.signer.SignRefresh(sid, time.Now())
	require.NoError(t, err)

	m.st.EXPECT().SessionByID(gomock.Any(), sid).Return(&models.Session{ID: sid, UserID: u.ID, Valid: true}, nil)
	m.st.EXPECT().UserByID(gomock.Any(), u.ID).Return(u, nil)

	pair, err := svc.RefreshAccessToken(context.Background(), refresh)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.Empty(t, pair.RefreshToken)

	claims, err := svc.signer.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.Email, claims.Email)
}

func TestRefreshAccessToken_Rejections(t *testing.T) {
	t.Parallel()

	svc, m, _ := newSvc(t)
	ctx := context.Background()

	// access-токен вместо refresh.
	access, _, err := svc.signer.SignAccess(verifiedUser(t), time.Now())
	require.NoError(t, err)
	_, err = svc.RefreshAccessToken(ctx, access)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.RefreshAccessToken(ctx, "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, err := svc.signer.SignRefresh(uuid.New(), time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	_, err = svc.RefreshAccessToken(ctx, expired)
	require.ErrorIs(t, err, ErrTokenExpired)

	missing := uuid.New()
	tok, err := svc.signer.SignRefresh(missing, time.Now())
	require.NoError(t, err)
	m.st.EXPECT().SessionByID(gomock.Any(), missing).Return(nil, storage.ErrNotFound)
	_, err = svc.RefreshAccessToken(ctx, tok)
	require.ErrorIs(t, err, ErrSessionRevoked)

	revoked := uuid.New()
	tok, err = svc.signer.SignRefresh(revoked, time.Now())
	require.NoError(t, err)
	m.st.EXPECT().SessionByID(gomock.Any(), revoked).Return(&models.Session{ID: revoked, UserID: uuid.New()}, nil)
	_, err = svc.RefreshAccessToken(ctx, tok)
	require.ErrorIs(t, err, ErrSessionRevoked)

	orphan := uuid.New()
	tok, err = svc.signer.SignRefresh(orphan, time.Now())
	require.NoError(t, err)
	m.st.EXPECT().SessionByID(gomock.Any(), orphan).Return(&models.Session{ID: orphan, UserID: uuid.New(), Valid: true}, nil)
	m.st.EXPECT().UserByID(gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)
	_, err = svc.RefreshAccessToken(ctx, tok)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestRefreshAccessToken_StoreTimeout(t *testing.T) {
	t.Parallel()

	svc, m, _ := newSvc(t)
	sid := uuid.New()
	tok, err := svc.signer.SignRefresh(sid, time.Now())
	require.NoError(t, err)

	m.st.EXPECT().SessionByID(gomock.Any(), sid).Return(nil, context.DeadlineExceeded)

	_, err = svc.RefreshAccessToken(context.Background(), tok)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestRefreshAccessToken_ForeignRefreshKey(t *testing.T) {
	t.Parallel()

	svc, _, _ := newSvc(t)
	other := mustSigner(t, testCfg(t))

	tok, err := other.SignRefresh(uuid.New(), time.Now())
	require.NoError(t, err)

	_, err = svc.RefreshAccessToken(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	svc, m, _ := newSvc(t)
	ctx := context.Background()
	sid := uuid.New()
	tok, err := svc.signer.SignRefresh(sid, time.Now())
	require.NoError(t, err)

	m.st.EXPECT().InvalidateSession(gomock.Any(), sid).Return(nil)
	require.NoError(t, svc.Logout(ctx, tok))

	m.st.EXPECT().InvalidateSession(gomock.Any(), sid).Return(storage.ErrNotFound)
	require.ErrorIs(t, svc.Logout(ctx, tok), ErrSessionRevoked)

	require.ErrorIs(t, svc.Logout(ctx, "nope"), ErrInvalidToken)
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()

	svc, _, _ := newSvc(t)
	u := verifiedUser(t)

	access, _, err := svc.signer.SignAccess(u, time.Now())
	require.NoError(t, err)

	got, err := svc.CurrentUser(context.Background(), access)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, u.Email, got.Email)
	require.True(t, got.Verified)
	require.Empty(t, got.PasswordHash)

	refresh, err := svc.signer.SignRefresh(uuid.New(), time.Now())
	require.NoError(t, err)
	_, err = svc.CurrentUser(context.Background(), refresh)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, _, err := svc.signer.SignAccess(u, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = svc.CurrentUser(context.Background(), expired)
	require.ErrorIs(t, err, ErrTokenExpired)
}

// Сценарий: вход, refresh, инвалидация сессии, повторный refresh отклонён.
func TestScenario_LoginRefreshInvalidate(t *testing.T) {
	t.Parallel()

	env := newMemSvc(t)
	ctx := context.Background()
	registerVerified(t, env, "flow@example.com")

	pair, err := env.svc.LoginUser(ctx, "flow@example.com", strongPW, "ua")
	require.NoError(t, err)

	fresh, err := env.svc.RefreshAccessToken(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = env.svc.CurrentUser(ctx, fresh.AccessToken)
	require.NoError(t, err)

	// refresh-токен не ротируется.
	_, err = env.svc.RefreshAccessToken(ctx, pair.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, env.svc.Logout(ctx, pair.RefreshToken))

	_, err = env.svc.RefreshAccessToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)

	// ранее выданный access-токен действует до истечения.
	_, err = env.svc.CurrentUser(ctx, fresh.AccessToken)
	require.NoError(t, err)
}

func TestScenario_SessionsIndependent(t *testing.T) {
	t.Parallel()

	env := newMemSvc(t)
	ctx := context.Background()
	registerVerified(t, env, "multi@example.com")

	a, err := env.svc.LoginUser(ctx, "multi@example.com", strongPW, "phone")
	require.NoError(t, err)
	b, err := env.svc.LoginUser(ctx, "multi@example.com", strongPW, "laptop")
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, a.RefreshToken))

	_, err = env.svc.RefreshAccessToken(ctx, a.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)
	_, err = env.svc.RefreshAccessToken(ctx, b.RefreshToken)
	require.NoError(t, err)
}

func TestScenario_JanitorSweep(t *testing.T) {
	t.Parallel()

	env := newMemSvc(t)
	ctx := context.Background()
	registerVerified(t, env, "sweep@example.com")

	pair, err := env.svc.LoginUser(ctx, "sweep@example.com", strongPW, "")
	require.NoError(t, err)

	// пока refresh-TTL не истёк, сессия не трогается.
	n, err := env.svc.SweepSessions(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	later := time.Now().UTC().Add(env.cfg.RefreshTokenTTL + time.Minute)
	env.svc.now = func() time.Time { return later }

	n, err = env.svc.SweepSessions(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	env.svc.now = func() time.Time { return time.Now().UTC() }

	_, err = env.svc.RefreshAccessToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)
}

func TestScenario_RefreshAfterKeyRotation(t *testing.T) {
	t.Parallel()

	env := newMemSvc(t)
	ctx := context.Background()
	registerVerified(t, env, "rotate@example.com")

	pair, err := env.svc.LoginUser(ctx, "rotate@example.com", strongPW, "")
	require.NoError(t, err)

	// ротация access-ключа: refresh-токены продолжают работать.
	rotated := env.cfg
	rotated.AccessPrivateKey = edKey(t)
	svc := New(env.st, mustSigner(t, rotated), env.svc.codes, env.mailer, rotated)

	_, err = svc.CurrentUser(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	fresh, err := svc.RefreshAccessToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, err = svc.CurrentUser(ctx, fresh.AccessToken)
	require.NoError(t, err)
}

func TestSweepSessions_StoreTimeout(t *testing.T) {
	t.Parallel()

	svc, m, _ := newSvc(t)
	m.st.EXPECT().InvalidateSessionsBefore(gomock.Any(), gomock.Any()).Return(int64(0), context.DeadlineExceeded)

	_, err := svc.SweepSessions(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}
