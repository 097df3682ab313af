package models

import (
	"errors"
	"fmt"
)

var (
	ErrRedisConnection = errors.New("redis connection error")
	ErrRedisGet        = errors.New("redis get error")
	ErrRedisSet        = errors.New("redis set error")
	ErrRedisDelete     = errors.New("redis delete error")
)

var (
	ErrInvalidDuration = errors.New("invalid session duration")
	ErrInvalidParams   = errors.New("invalid parameters")
)

var (
	ErrAlreadyInSession     = errors.New("user already belongs to a session")
	ErrSessionFull          = errors.New("session is full")
	ErrSessionAlreadyActive = errors.New("session already active")
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExpired   = errors.New("session expired")
	ErrSessionNotActive = errors.New("session not active")
	ErrForbidden        = errors.New("operation not permitted")
	ErrUserNotFound     = errors.New("user not found")
)

var (
	ErrDatabaseConnection = errors.New("database connection error")
	ErrDatabaseQuery      = errors.New("database query error")
	ErrDatabaseInsert     = errors.New("database insert error")
	ErrDatabaseUpdate     = errors.New("database update error")
	ErrDatabaseDelete     = errors.New("database delete error")
)

// TimingMismatchError is returned when complete is called outside the
// tolerance window. Exactly one of RemainingSeconds/OverdueSeconds is
// non-zero; the client uses it to resynchronize and retry at the right
// moment. This is a routine condition, not a fault.
type TimingMismatchError struct {
	RemainingSeconds int64
	OverdueSeconds   int64
}

func (e *TimingMismatchError) Error() string {
	if e.OverdueSeconds > 0 {
		return fmt.Sprintf("session completion overdue by %ds", e.OverdueSeconds)
	}
	return fmt.Sprintf("session not due for another %ds", e.RemainingSeconds)
}
