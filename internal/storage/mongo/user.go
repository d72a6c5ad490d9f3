package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/pribylovaa/auth-service/internal/models"
	"github.com/pribylovaa/auth-service/internal/storage"
)

// userDoc — представление пользователя в коллекции users.
type userDoc struct {
	ID                string    `bson:"_id"`
	Email             string    `bson:"email"`
	EmailLower        string    `bson:"email_lower"`
	FirstName         string    `bson:"first_name"`
	LastName          string    `bson:"last_name"`
	PasswordHash      string    `bson:"password_hash"`
	Verified          bool      `bson:"verified"`
	VerificationCode  string    `bson:"verification_code"`
	PasswordResetCode *string   `bson:"password_reset_code"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func toUserDoc(u *models.User) userDoc {
	return userDoc{
		ID:                u.ID.String(),
		Email:             u.Email,
		EmailLower:        strings.ToLower(u.Email),
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		PasswordHash:      u.PasswordHash,
		Verified:          u.Verified,
		VerificationCode:  u.VerificationCode,
		PasswordResetCode: u.PasswordResetCode,
		CreatedAt:         toMS(u.CreatedAt),
		UpdatedAt:         toMS(u.UpdatedAt),
	}
}

func (d userDoc) model() (*models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:                id,
		Email:             d.Email,
		FirstName:         d.FirstName,
		LastName:          d.LastName,
		PasswordHash:      d.PasswordHash,
		Verified:          d.Verified,
		VerificationCode:  d.VerificationCode,
		PasswordResetCode: d.PasswordResetCode,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}, nil
}

// SaveUser создает нового пользователя.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.mongo.SaveUser"

	if _, err := s.users.InsertOne(ctx, toUserDoc(user)); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByEmail находит пользователя по email (регистронезависимо).
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.mongo.UserByEmail"

	user, err := s.findUser(ctx, bson.D{{Key: "email_lower", Value: strings.ToLower(email)}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.mongo.UserByID"

	user, err := s.findUser(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// MarkVerified подтверждает аккаунт, если он не подтверждён и код совпадает.
func (s *Storage) MarkVerified(ctx context.Context, id uuid.UUID, code string) error {
	const op = "storage.mongo.MarkVerified"

	filter := bson.D{
		{Key: "_id", Value: id.String()},
		{Key: "verified", Value: false},
		{Key: "verification_code", Value: code},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "verified", Value: true},
		{Key: "updated_at", Value: toMS(time.Now())},
	}}}

	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 1 {
		return nil
	}

	return s.conflictOrNotFound(ctx, op, id)
}

// SetPasswordResetCode перезаписывает код сброса пароля.
func (s *Storage) SetPasswordResetCode(ctx context.Context, id uuid.UUID, code string) error {
	const op = "storage.mongo.SetPasswordResetCode"

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "password_reset_code", Value: code},
		{Key: "updated_at", Value: toMS(time.Now())},
	}}}

	res, err := s.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: id.String()}}, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ConsumePasswordResetCode меняет хэш пароля и обнуляет код одним атомарным
// UpdateOne с условием на текущий код.
func (s *Storage) ConsumePasswordResetCode(ctx context.Context, id uuid.UUID, code, passwordHash string) error {
	const op = "storage.mongo.ConsumePasswordResetCode"

	filter := bson.D{
		{Key: "_id", Value: id.String()},
		{Key: "password_reset_code", Value: code},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "password_reset_code", Value: nil},
		{Key: "updated_at", Value: toMS(time.Now())},
	}}}

	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 1 {
		return nil
	}

	return s.conflictOrNotFound(ctx, op, id)
}

func (s *Storage) findUser(ctx context.Context, filter bson.D) (*models.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	return doc.model()
}

func (s *Storage) conflictOrNotFound(ctx context.Context, op string, id uuid.UUID) error {
	n, err := s.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return fmt.Errorf("%s: %w", op, storage.ErrConflict)
}
