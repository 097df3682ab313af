package models

import "time"

// MemberProfile is the display metadata attached to membership snapshots.
type MemberProfile struct {
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar,omitempty"`
}

// StudyStats is the cumulative per-user study counters, minutes for time.
type StudyStats struct {
	SessionsCompleted int64 `json:"sessionsCompleted"`
	TotalTimeStudied  int64 `json:"totalTimeStudied"`
}

// SessionSnapshot is the membership+timing view returned by create, check
// and join. ServerNow lets clients align their local clock to server time.
type SessionSnapshot struct {
	SessionID    string          `json:"sessionId"`
	CreatorID    string          `json:"creatorId"`
	Participants []string        `json:"participants"`
	Members      []MemberProfile `json:"members,omitempty"`
	Duration     int             `json:"duration"`
	IsActive     bool            `json:"isActive"`
	StartTime    *time.Time      `json:"startTime,omitempty"`
	ExpiresAt    time.Time       `json:"expiresAt"`
	ServerNow    time.Time       `json:"serverNow"`
}

// StartResult is the timing triple clients anchor their countdown to.
type StartResult struct {
	SessionID string    `json:"sessionId"`
	StartTime time.Time `json:"startTime"`
	ExpiresAt time.Time `json:"expiresAt"`
	ServerNow time.Time `json:"serverNow"`
}

// StatusSnapshot is the read-only poll view. Expired means the record was
// reconciled and deleted during this read. NaturallyCompleted means the
// countdown has reached zero inside the tolerance window but the record is
// still waiting for members to complete.
type StatusSnapshot struct {
	SessionSnapshot
	Expired            bool  `json:"expired"`
	NaturallyCompleted bool  `json:"naturallyCompleted"`
	RemainingSeconds   int64 `json:"remainingSeconds"`
}

// CompleteResult reports a completion grant.
type CompleteResult struct {
	SessionID       string      `json:"sessionId"`
	MinutesCredited int         `json:"minutesCredited"`
	AlreadyCredited bool        `json:"alreadyCredited"`
	SessionDeleted  bool        `json:"sessionDeleted"`
	Stats           *StudyStats `json:"stats,omitempty"`
	ServerNow       time.Time   `json:"serverNow"`
}

// NewSessionSnapshot builds the common view of a session at serverNow.
func NewSessionSnapshot(s *StudySession, members []MemberProfile, serverNow time.Time) *SessionSnapshot {
	participants := s.Participants
	if participants == nil {
		participants = []string{}
	}
	return &SessionSnapshot{
		SessionID:    s.SessionID,
		CreatorID:    s.CreatorID,
		Participants: participants,
		Members:      members,
		Duration:     s.Duration,
		IsActive:     s.IsActive,
		StartTime:    s.StartTime,
		ExpiresAt:    s.Deadline(),
		ServerNow:    serverNow,
	}
}
