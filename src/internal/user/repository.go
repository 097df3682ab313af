package user

import (
	"context"
	"errors"

	"studyhub-session-svc/src/clients"
	"studyhub-session-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Repository interface {
	GetByID(ctx context.Context, userID string) (*User, error)
	GetProfiles(ctx context.Context, userIDs []string) ([]models.MemberProfile, error)
	GetStats(ctx context.Context, userID string) (*models.StudyStats, error)
	Credit(ctx context.Context, req *CreditRequest) (bool, error)
}

type userRepository struct {
	Collection mongo.Collection
}

func NewUserRepository(mongoClient *clients.MongoDB, collectionName string) Repository {
	collection := *mongoClient.Database.Collection(collectionName)
	return &userRepository{
		Collection: collection,
	}
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, models.ErrInvalidParams
	}

	var user User
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to get user")
		return nil, models.ErrDatabaseQuery
	}

	return &user, nil
}

func (r *userRepository) GetProfiles(ctx context.Context, userIDs []string) ([]models.MemberProfile, error) {
	oids := make([]primitive.ObjectID, 0, len(userIDs))
	for _, id := range userIDs {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			logrus.WithField("user_id", id).Warn("Skipping malformed user id in profile lookup")
			continue
		}
		oids = append(oids, oid)
	}

	cursor, err := r.Collection.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		logrus.WithError(err).Error("Failed to find member profiles")
		return nil, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	byID := make(map[string]models.MemberProfile, len(userIDs))
	for cursor.Next(ctx) {
		var user User
		if err := cursor.Decode(&user); err != nil {
			logrus.WithError(err).Error("Failed to decode user")
			continue
		}
		byID[user.ID.Hex()] = *user.ToMemberProfile()
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, models.ErrDatabaseQuery
	}

	// Preserve the order the caller asked for.
	profiles := make([]models.MemberProfile, 0, len(byID))
	for _, id := range userIDs {
		if p, ok := byID[id]; ok {
			profiles = append(profiles, p)
		}
	}

	return profiles, nil
}

func (r *userRepository) GetStats(ctx context.Context, userID string) (*models.StudyStats, error) {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Stats(), nil
}

// Credit grants study minutes (and optionally a completed-session count) in
// one conditional update. The filter embeds the idempotency check, so two
// racing grant attempts for the same session id cannot both match: a grant
// happens only when the marker is absent, names a different session, or is
// older than the cooldown. Returns false when the update matched nothing
// because the user was already credited.
func (r *userRepository) Credit(ctx context.Context, req *CreditRequest) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return false, models.ErrInvalidParams
	}

	cutoff := req.Now.Add(-req.Cooldown)
	filter := bson.M{
		"_id": oid,
		"$or": []bson.M{
			{"last_completed_session": bson.M{"$exists": false}},
			{"last_completed_session.session_id": bson.M{"$ne": req.SessionID}},
			{"last_completed_session.completed_at": bson.M{"$lt": cutoff}},
		},
	}

	inc := bson.M{"total_time_studied": int64(req.Minutes)}
	if req.Completed {
		inc["sessions_completed"] = int64(1)
	}

	update := bson.M{
		"$inc": inc,
		"$set": bson.M{
			"last_completed_session": bson.M{
				"session_id":   req.SessionID,
				"completed_at": req.Now,
			},
			"updated_at": req.Now,
		},
	}

	result, err := r.Collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":    req.UserID,
			"session_id": req.SessionID,
		}).Error("Failed to credit user")
		return false, models.ErrDatabaseUpdate
	}

	if result.MatchedCount == 0 {
		// Either the user is gone or the marker already covers this session.
		if _, err := r.GetByID(ctx, req.UserID); err != nil {
			return false, err
		}
		logrus.WithFields(logrus.Fields{
			"user_id":    req.UserID,
			"session_id": req.SessionID,
		}).Debug("Credit skipped, user already credited for session")
		return false, nil
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    req.UserID,
		"session_id": req.SessionID,
		"minutes":    req.Minutes,
		"completed":  req.Completed,
	}).Info("User credited for study session")

	return true, nil
}
