package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/pribylovaa/auth-service/internal/models"
	"github.com/pribylovaa/auth-service/internal/storage"
)

// sessionDoc — представление refresh-сессии в коллекции sessions.
type sessionDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Valid     bool      `bson:"valid"`
	UserAgent string    `bson:"user_agent"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// CreateSession сохраняет новую сессию.
func (s *Storage) CreateSession(ctx context.Context, session *models.Session) error {
	const op = "storage.mongo.CreateSession"

	doc := sessionDoc{
		ID:        session.ID.String(),
		UserID:    session.UserID.String(),
		Valid:     session.Valid,
		UserAgent: session.UserAgent,
		CreatedAt: toMS(session.CreatedAt),
		UpdatedAt: toMS(session.UpdatedAt),
	}

	if _, err := s.sessions.InsertOne(ctx, doc); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SessionByID находит сессию по ID.
func (s *Storage) SessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const op = "storage.mongo.SessionByID"

	var doc sessionDoc
	if err := s.sessions.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sid, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	uid, err := uuid.Parse(doc.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Session{
		ID:        sid,
		UserID:    uid,
		Valid:     doc.Valid,
		UserAgent: doc.UserAgent,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}, nil
}

// InvalidateSession выставляет valid=false; уже недействительная сессия не ошибка.
func (s *Storage) InvalidateSession(ctx context.Context, id uuid.UUID) error {
	const op = "storage.mongo.InvalidateSession"

	filter := bson.D{{Key: "_id", Value: id.String()}, {Key: "valid", Value: true}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "valid", Value: false},
		{Key: "updated_at", Value: toMS(time.Now())},
	}}}

	res, err := s.sessions.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 1 {
		return nil
	}

	n, err := s.sessions.CountDocuments(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// InvalidateSessionsBefore инвалидирует действующие сессии, созданные раньше before.
func (s *Storage) InvalidateSessionsBefore(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.mongo.InvalidateSessionsBefore"

	filter := bson.D{
		{Key: "valid", Value: true},
		{Key: "created_at", Value: bson.D{{Key: "$lt", Value: toMS(before)}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "valid", Value: false},
		{Key: "updated_at", Value: toMS(time.Now())},
	}}}

	res, err := s.sessions.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return res.ModifiedCount, nil
}
