package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StudySession is the canonical session record. Before the creator starts
// the session ExpiresAt holds the pre-start garbage-collection horizon;
// after start it is recomputed as StartTime+Duration and never changes.
type StudySession struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	SessionID    string             `bson:"session_id" json:"sessionId"`
	CreatorID    string             `bson:"creator_id" json:"creatorId"`
	Participants []string           `bson:"participants" json:"participants"`
	Duration     int                `bson:"duration" json:"duration"`
	IsActive     bool               `bson:"is_active" json:"isActive"`
	StartTime    *time.Time         `bson:"start_time,omitempty" json:"startTime,omitempty"`
	ExpiresAt    time.Time          `bson:"expires_at" json:"expiresAt"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}

func (s *StudySession) IsCreator(userID string) bool {
	return s.CreatorID == userID
}

func (s *StudySession) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (s *StudySession) IsMember(userID string) bool {
	return s.IsCreator(userID) || s.HasParticipant(userID)
}

// Members returns creator plus participants.
func (s *StudySession) Members() []string {
	members := make([]string, 0, len(s.Participants)+1)
	members = append(members, s.CreatorID)
	members = append(members, s.Participants...)
	return members
}

// Deadline is the authoritative expiry: StartTime+Duration once the session
// has started, otherwise the stored pre-start horizon. The stored ExpiresAt
// may lag the start transition on stale reads, so started sessions always
// recompute.
func (s *StudySession) Deadline() time.Time {
	if s.IsActive && s.StartTime != nil {
		return s.StartTime.Add(time.Duration(s.Duration) * time.Second)
	}
	return s.ExpiresAt
}

// IsExpired is the one expiry predicate shared by coordinator, sweeper and
// the status read path.
func (s *StudySession) IsExpired(now time.Time) bool {
	return !now.Before(s.Deadline())
}

// ElapsedSeconds reports wall time since start, zero if not started.
func (s *StudySession) ElapsedSeconds(now time.Time) int64 {
	if s.StartTime == nil {
		return 0
	}
	elapsed := int64(now.Sub(*s.StartTime) / time.Second)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// RemainingSeconds reports time until the deadline, negative once past it.
func (s *StudySession) RemainingSeconds(now time.Time) int64 {
	return int64(s.Deadline().Sub(now) / time.Second)
}
