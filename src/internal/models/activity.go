package models

import "time"

type ActivityMessage struct {
	UserID      string            `json:"user_id"`
	SessionID   string            `json:"session_id"`
	ServiceName string            `json:"service_name"`
	Action      string            `json:"action"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Activity action constants
const (
	ActionSessionCreated   = "session_created"
	ActionSessionJoined    = "session_joined"
	ActionSessionStarted   = "session_started"
	ActionSessionLeft      = "session_left"
	ActionSessionCompleted = "session_completed"
	ActionSessionExpired   = "session_expired"
)

// Service name constants
const (
	ServiceSessionCoordinator = "studyhub.session.coordinator"
	ServiceSessionSweeper     = "studyhub.session.sweeper"
)
