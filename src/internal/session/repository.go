package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studyhub-session-svc/src/clients"
	"studyhub-session-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Insert(ctx context.Context, session *models.StudySession) error
	GetByID(ctx context.Context, sessionID string) (*models.StudySession, error)
	FindByMember(ctx context.Context, userID string) (*models.StudySession, error)
	AddParticipant(ctx context.Context, sessionID, userID string, maxParticipants int) (*models.StudySession, error)
	RemoveParticipant(ctx context.Context, sessionID, userID string) error
	MarkStarted(ctx context.Context, sessionID string, startTime, expiresAt time.Time) (*models.StudySession, error)
	Delete(ctx context.Context, sessionID string) error
	FindExpiredActive(ctx context.Context, cutoff time.Time) ([]*models.StudySession, error)
	EnsureIndexes(ctx context.Context) error
}

type repository struct {
	collection *mongo.Collection
}

func NewSessionRepository(db *clients.MongoDB, collectionName string) Repository {
	collection := db.Database.Collection(collectionName)
	return &repository{collection: collection}
}

// EnsureIndexes creates the unique session id index and the TTL rule on
// expires_at. The TTL index is a safety net behind the sweeper and the read
// path: Mongo removes whatever record both of them missed.
func (r *repository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "creator_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "participants", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logrus.WithError(err).Error("Failed to create session indexes")
		return models.ErrDatabaseConnection
	}
	return nil
}

func (r *repository) Insert(ctx context.Context, session *models.StudySession) error {
	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		logrus.WithError(err).WithField("session_id", session.SessionID).Error("Failed to insert session")
		return models.ErrDatabaseInsert
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, sessionID string) (*models.StudySession, error) {
	var session models.StudySession
	filter := bson.M{"session_id": sessionID}

	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrSessionNotFound
		}
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to get session")
		return nil, models.ErrDatabaseQuery
	}

	return &session, nil
}

// FindByMember returns the session the user belongs to as creator or
// participant, or nil when there is none.
func (r *repository) FindByMember(ctx context.Context, userID string) (*models.StudySession, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"creator_id": userID},
			{"participants": userID},
		},
	}

	var session models.StudySession
	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to find session by member")
		return nil, models.ErrDatabaseQuery
	}

	return &session, nil
}

// AddParticipant appends the user in one conditional update. The filter
// rejects the write when the user is already present or the participant set
// is at capacity, so concurrent joins cannot overfill the session or insert
// duplicates. On a non-match the session is re-read to report why.
func (r *repository) AddParticipant(ctx context.Context, sessionID, userID string, maxParticipants int) (*models.StudySession, error) {
	filter := bson.M{
		"session_id":   sessionID,
		"participants": bson.M{"$ne": userID},
		fmt.Sprintf("participants.%d", maxParticipants-1): bson.M{"$exists": false},
	}
	update := bson.M{"$addToSet": bson.M{"participants": userID}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.StudySession
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to add participant")
		return nil, models.ErrDatabaseUpdate
	}

	current, err := r.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.HasParticipant(userID) {
		// Lost a race against an identical join; the outcome is the same.
		return current, nil
	}
	return nil, models.ErrSessionFull
}

func (r *repository) RemoveParticipant(ctx context.Context, sessionID, userID string) error {
	filter := bson.M{"session_id": sessionID}
	update := bson.M{"$pull": bson.M{"participants": userID}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to remove participant")
		return models.ErrDatabaseUpdate
	}
	if result.MatchedCount == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// MarkStarted flips the session active and pins its timing. The is_active
// guard in the filter makes the transition single-shot: once set, start_time
// and expires_at are never rewritten.
func (r *repository) MarkStarted(ctx context.Context, sessionID string, startTime, expiresAt time.Time) (*models.StudySession, error) {
	filter := bson.M{
		"session_id": sessionID,
		"is_active":  false,
	}
	update := bson.M{
		"$set": bson.M{
			"is_active":  true,
			"start_time": startTime,
			"expires_at": expiresAt,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.StudySession
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to mark session started")
		return nil, models.ErrDatabaseUpdate
	}

	if _, err := r.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	return nil, models.ErrSessionAlreadyActive
}

func (r *repository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to delete session")
		return models.ErrDatabaseDelete
	}
	// A missing record means another cleanup path won the race; both end at
	// the same state.
	return nil
}

// FindExpiredActive lists started sessions whose deadline passed the cutoff.
func (r *repository) FindExpiredActive(ctx context.Context, cutoff time.Time) ([]*models.StudySession, error) {
	filter := bson.M{
		"is_active":  true,
		"expires_at": bson.M{"$lte": cutoff},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to find expired sessions")
		return nil, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	var sessions []*models.StudySession
	for cursor.Next(ctx) {
		var session models.StudySession
		if err := cursor.Decode(&session); err != nil {
			logrus.WithError(err).Error("Failed to decode session")
			continue
		}
		sessions = append(sessions, &session)
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, models.ErrDatabaseQuery
	}

	return sessions, nil
}
