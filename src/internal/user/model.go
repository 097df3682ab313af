package user

import (
	"time"

	"studyhub-session-svc/src/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID                   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Username             string             `json:"username" bson:"username"`
	Email                string             `json:"email" bson:"email"`
	Avatar               *string            `json:"avatar,omitempty" bson:"avatar,omitempty"`
	SessionsCompleted    int64              `json:"sessionsCompleted" bson:"sessions_completed"`
	TotalTimeStudied     int64              `json:"totalTimeStudied" bson:"total_time_studied"`
	LastCompletedSession *CompletionMarker  `json:"lastCompletedSession,omitempty" bson:"last_completed_session,omitempty"`
	CreatedAt            time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt            time.Time          `json:"updatedAt" bson:"updated_at"`
}

// CompletionMarker is the single-slot idempotency marker: the last session
// a user was credited for, and when. It is overwritten on every grant.
type CompletionMarker struct {
	SessionID   string    `json:"sessionId" bson:"session_id"`
	CompletedAt time.Time `json:"completedAt" bson:"completed_at"`
}

// CreditedFor reports whether the user's marker already names sessionID.
func (u *User) CreditedFor(sessionID string) bool {
	return u.LastCompletedSession != nil && u.LastCompletedSession.SessionID == sessionID
}

// ToMemberProfile converts User to the display metadata used in snapshots.
func (u *User) ToMemberProfile() *models.MemberProfile {
	return &models.MemberProfile{
		UserID:   u.ID.Hex(),
		Username: u.Username,
		Avatar:   u.Avatar,
	}
}

// Stats extracts the cumulative study counters.
func (u *User) Stats() *models.StudyStats {
	return &models.StudyStats{
		SessionsCompleted: u.SessionsCompleted,
		TotalTimeStudied:  u.TotalTimeStudied,
	}
}

// CreditRequest describes one credit grant attempt.
type CreditRequest struct {
	UserID    string
	SessionID string
	Minutes   int
	// Completed increments sessionsCompleted in addition to minutes;
	// partial credit on early leave only adds minutes.
	Completed bool
	Now       time.Time
	// Cooldown bounds re-crediting of the same session id.
	Cooldown time.Duration
}
