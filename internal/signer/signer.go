// signer выпускает и проверяет асимметрично подписанные JWT.
//
// У сервиса две независимые роли ключей: access и refresh. Каждая роль
// подписывает своим приватным ключом и проверяет своим публичным, поэтому
// ротация ключа одной роли не затрагивает токены другой. В заголовок kid
// пишется "<роль>:<отпечаток ключа>": токен, подписанный ключом другой роли
// или заменённым ключом, отклоняется ещё до проверки подписи.
//
// Поддерживаемые ключи: Ed25519 (EdDSA) и RSA (RS256) в PEM.
// Signer неизменяем после создания и безопасен для конкурентного использования.
package signer

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/auth-service/internal/config"
	"github.com/pribylovaa/auth-service/internal/models"
)

// Role — роль ключа.
type Role string

const (
	RoleAccess  Role = "access"
	RoleRefresh Role = "refresh"
)

var (
	// ErrInvalidToken — токен повреждён, подпись не сходится или claims некорректны.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired — срок действия токена истёк.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongKey — токен подписан ключом другой роли или заменённым ключом.
	ErrWrongKey = errors.New("token signed with unknown key")
	// ErrNoKey — ключ роли не задан или не разбирается.
	ErrNoKey = errors.New("signing key is not configured")
)

// AccessClaims — claims access-токена: subject и видимые поля профиля.
type AccessClaims struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Verified  bool   `json:"verified"`
	jwt.RegisteredClaims
}

// UserID возвращает subject как UUID.
func (c *AccessClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// RefreshClaims — claims refresh-токена: только ссылка на сессию.
type RefreshClaims struct {
	SessionID string `json:"session"`
	jwt.RegisteredClaims
}

type keyPair struct {
	kid     string
	method  jwt.SigningMethod
	private crypto.Signer
	public  crypto.PublicKey
}

// Signer подписывает и проверяет токены обеих ролей.
type Signer struct {
	keys       map[Role]keyPair
	issuer     string
	audience   []string
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
}

// New разбирает ключи обеих ролей из конфигурации.
// Отсутствующий или некорректный ключ — ошибка: сервис не должен стартовать без ключей.
func New(cfg config.AuthConfig) (*Signer, error) {
	const op = "signer.New"

	access, err := loadKeyPair(RoleAccess, cfg.AccessPrivateKey, cfg.AccessPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := loadKeyPair(RoleRefresh, cfg.RefreshPrivateKey, cfg.RefreshPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Signer{
		keys:       map[Role]keyPair{RoleAccess: access, RoleRefresh: refresh},
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		leeway:     cfg.Leeway,
	}, nil
}

// AccessTTL возвращает срок жизни access-токена.
func (s *Signer) AccessTTL() time.Duration { return s.accessTTL }

// SignAccess выпускает access-токен для пользователя.
func (s *Signer) SignAccess(user *models.User, now time.Time) (string, time.Time, error) {
	const op = "signer.SignAccess"

	exp := now.Add(s.accessTTL)
	claims := &AccessClaims{
		Email:            user.Email,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		Verified:         user.Verified,
		RegisteredClaims: s.registered(user.ID.String(), now, exp),
	}

	token, err := s.sign(RoleAccess, claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return token, exp, nil
}

// SignRefresh выпускает refresh-токен, ссылающийся на сессию.
func (s *Signer) SignRefresh(sessionID uuid.UUID, now time.Time) (string, error) {
	const op = "signer.SignRefresh"

	claims := &RefreshClaims{
		SessionID:        sessionID.String(),
		RegisteredClaims: s.registered("", now, now.Add(s.refreshTTL)),
	}

	token, err := s.sign(RoleRefresh, claims)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// ParseAccess проверяет access-токен и возвращает его claims.
func (s *Signer) ParseAccess(token string) (*AccessClaims, error) {
	const op = "signer.ParseAccess"

	var claims AccessClaims
	if err := s.parse(RoleAccess, token, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return &claims, nil
}

// ParseRefresh проверяет refresh-токен и возвращает id сессии.
func (s *Signer) ParseRefresh(token string) (uuid.UUID, error) {
	const op = "signer.ParseRefresh"

	var claims RefreshClaims
	if err := s.parse(RoleRefresh, token, &claims); err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return id, nil
}

func (s *Signer) registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings(s.audience),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
}

func (s *Signer) sign(role Role, claims jwt.Claims) (string, error) {
	kp, ok := s.keys[role]
	if !ok {
		return "", ErrNoKey
	}

	token := jwt.NewWithClaims(kp.method, claims)
	token.Header["kid"] = kp.kid

	return token.SignedString(kp.private)
}

// parse никогда не паникует на недоверенном вводе: любая проблема — ошибка из набора
// ErrInvalidToken / ErrTokenExpired / ErrWrongKey.
func (s *Signer) parse(role Role, tokenStr string, claims jwt.Claims) error {
	kp, ok := s.keys[role]
	if !ok {
		return ErrNoKey
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{kp.method.Alg()}),
		jwt.WithLeeway(s.leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if len(s.audience) > 0 {
		opts = append(opts, jwt.WithAudience(s.audience...))
	}

	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != kp.kid {
			return nil, ErrWrongKey
		}

		return kp.public, nil
	}, opts...)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrWrongKey):
		return ErrWrongKey
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrInvalidToken
	}
}

func loadKeyPair(role Role, rawPrivate, rawPublic string) (keyPair, error) {
	privPEM, err := config.DecodeKey(rawPrivate)
	if err != nil {
		return keyPair{}, fmt.Errorf("%s key: %w", role, err)
	}

	if len(privPEM) == 0 {
		return keyPair{}, fmt.Errorf("%s key: %w", role, ErrNoKey)
	}

	priv, method, err := parsePrivateKey(privPEM)
	if err != nil {
		return keyPair{}, fmt.Errorf("%s key: %w", role, err)
	}

	pub := priv.Public()

	pubPEM, err := config.DecodeKey(rawPublic)
	if err != nil {
		return keyPair{}, fmt.Errorf("%s public key: %w", role, err)
	}

	if len(pubPEM) > 0 {
		given, err := parsePublicKey(pubPEM)
		if err != nil {
			return keyPair{}, fmt.Errorf("%s public key: %w", role, err)
		}

		eq, ok := pub.(interface{ Equal(crypto.PublicKey) bool })
		if !ok || !eq.Equal(given) {
			return keyPair{}, fmt.Errorf("%s public key does not match private key", role)
		}
	}

	fp, err := fingerprint(pub)
	if err != nil {
		return keyPair{}, fmt.Errorf("%s key: %w", role, err)
	}

	return keyPair{
		kid:     string(role) + ":" + fp,
		method:  method,
		private: priv,
		public:  pub,
	}, nil
}

func parsePrivateKey(pemBytes []byte) (crypto.Signer, jwt.SigningMethod, error) {
	if k, err := jwt.ParseEdPrivateKeyFromPEM(pemBytes); err == nil {
		if ed, ok := k.(ed25519.PrivateKey); ok {
			return ed, jwt.SigningMethodEdDSA, nil
		}
	}

	if k, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes); err == nil {
		return k, jwt.SigningMethodRS256, nil
	}

	return nil, nil, errors.New("unsupported private key: expected Ed25519 or RSA PEM")
}

func parsePublicKey(pemBytes []byte) (crypto.PublicKey, error) {
	if k, err := jwt.ParseEdPublicKeyFromPEM(pemBytes); err == nil {
		if ed, ok := k.(ed25519.PublicKey); ok {
			return ed, nil
		}
	}

	if k, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes); err == nil {
		return k, nil
	}

	return nil, errors.New("unsupported public key: expected Ed25519 or RSA PEM")
}

// fingerprint — первые 8 байт SHA-256 от DER публичного ключа.
func fingerprint(pub crypto.PublicKey) (string, error) {
	switch pub.(type) {
	case ed25519.PublicKey, *rsa.PublicKey:
	default:
		return "", fmt.Errorf("unsupported public key type %T", pub)
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(der)

	return base64.RawURLEncoding.EncodeToString(sum[:8]), nil
}
