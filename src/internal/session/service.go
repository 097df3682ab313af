package session

import (
	"context"
	"strconv"
	"time"

	"studyhub-session-svc/src/internal/cache"
	"studyhub-session-svc/src/internal/config"
	"studyhub-session-svc/src/internal/models"
	"studyhub-session-svc/src/internal/user"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ActivityPublisher is the slice of the messaging client the coordinator
// needs. Publishing is best-effort and never fails an operation.
type ActivityPublisher interface {
	PublishActivity(userID, sessionID, serviceName, action string) error
	PublishActivityWithMetadata(userID, sessionID, serviceName, action string, metadata map[string]string) error
}

type Service interface {
	Create(ctx context.Context, creatorID string, durationSeconds int) (*models.SessionSnapshot, error)
	CheckCurrent(ctx context.Context, userID string) (*models.SessionSnapshot, error)
	Join(ctx context.Context, userID, sessionID string) (*models.SessionSnapshot, error)
	Start(ctx context.Context, creatorID, sessionID string) (*models.StartResult, error)
	Leave(ctx context.Context, userID, sessionID string) error
	Complete(ctx context.Context, userID, sessionID string) (*models.CompleteResult, error)
	Status(ctx context.Context, sessionID string) (*models.StatusSnapshot, error)
	SettleExpired(ctx context.Context, sess *models.StudySession) error
}

type sessionService struct {
	repo      Repository
	users     user.Repository
	cache     cache.Service
	publisher ActivityPublisher
	cfg       *config.Configuration
	now       func() time.Time
}

func NewSessionService(repo Repository, users user.Repository, cacheService cache.Service, publisher ActivityPublisher, cfg *config.Configuration) Service {
	return &sessionService{
		repo:      repo,
		users:     users,
		cache:     cacheService,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *sessionService) tolerance() time.Duration {
	return time.Duration(s.cfg.Session.ToleranceSeconds) * time.Second
}

func (s *sessionService) cooldown() time.Duration {
	return time.Duration(s.cfg.Session.CreditCooldownMinutes) * time.Minute
}

func (s *sessionService) Create(ctx context.Context, creatorID string, durationSeconds int) (*models.SessionSnapshot, error) {
	if creatorID == "" {
		return nil, models.ErrInvalidParams
	}
	if durationSeconds < s.cfg.Session.MinDurationSeconds || durationSeconds > s.cfg.Session.MaxDurationSeconds {
		return nil, models.ErrInvalidDuration
	}

	now := s.now()

	existing, err := s.repo.FindByMember(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !s.settleDue(existing, now) {
			return nil, models.ErrAlreadyInSession
		}
		// The user's previous session already ran out; reconcile it and
		// let the create proceed.
		if err := s.SettleExpired(ctx, existing); err != nil {
			return nil, err
		}
	}

	sess := &models.StudySession{
		SessionID:    uuid.NewString(),
		CreatorID:    creatorID,
		Participants: []string{},
		Duration:     durationSeconds,
		IsActive:     false,
		ExpiresAt:    now.Add(time.Duration(s.cfg.Session.PreStartTTLHours) * time.Hour),
		CreatedAt:    now,
	}

	if err := s.repo.Insert(ctx, sess); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"session_id": sess.SessionID,
		"creator_id": creatorID,
		"duration":   durationSeconds,
	}).Info("Study session created")

	s.publish(creatorID, sess.SessionID, models.ActionSessionCreated, map[string]string{
		"duration": strconv.Itoa(durationSeconds),
	})

	return s.snapshot(ctx, sess, now), nil
}

// CheckCurrent returns the caller's session, or nil when they have none.
func (s *sessionService) CheckCurrent(ctx context.Context, userID string) (*models.SessionSnapshot, error) {
	sess, err := s.repo.FindByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	now := s.now()
	if s.settleDue(sess, now) {
		if err := s.SettleExpired(ctx, sess); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return s.snapshot(ctx, sess, now), nil
}

func (s *sessionService) Join(ctx context.Context, userID, sessionID string) (*models.SessionSnapshot, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if sess.IsExpired(now) {
		if err := s.SettleExpired(ctx, sess); err != nil {
			return nil, err
		}
		return nil, models.ErrSessionExpired
	}

	// Creator and existing participants re-join as a no-op.
	if sess.IsMember(userID) {
		return s.snapshot(ctx, sess, now), nil
	}

	other, err := s.repo.FindByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if other != nil && other.SessionID != sessionID {
		return nil, models.ErrAlreadyInSession
	}

	updated, err := s.repo.AddParticipant(ctx, sessionID, userID, s.cfg.Session.MaxParticipants)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"session_id":   sessionID,
		"user_id":      userID,
		"participants": len(updated.Participants),
	}).Info("User joined study session")

	s.publish(userID, sessionID, models.ActionSessionJoined, nil)

	return s.snapshot(ctx, updated, now), nil
}

func (s *sessionService) Start(ctx context.Context, creatorID, sessionID string) (*models.StartResult, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !sess.IsCreator(creatorID) {
		return nil, models.ErrForbidden
	}
	if sess.IsActive {
		return nil, models.ErrSessionAlreadyActive
	}

	now := s.now()
	if sess.IsExpired(now) {
		// Abandoned before start; nobody gets credit.
		if err := s.SettleExpired(ctx, sess); err != nil {
			return nil, err
		}
		return nil, models.ErrSessionExpired
	}

	startTime := now
	expiresAt := now.Add(time.Duration(sess.Duration) * time.Second)

	updated, err := s.repo.MarkStarted(ctx, sessionID, startTime, expiresAt)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"start_time": updated.StartTime,
		"expires_at": updated.Deadline(),
	}).Info("Study session started")

	s.publish(creatorID, sessionID, models.ActionSessionStarted, map[string]string{
		"expires_at": updated.Deadline().Format(time.RFC3339),
	})

	return &models.StartResult{
		SessionID: sessionID,
		StartTime: *updated.StartTime,
		ExpiresAt: updated.Deadline(),
		ServerNow: now,
	}, nil
}

func (s *sessionService) Leave(ctx context.Context, userID, sessionID string) error {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if !sess.IsMember(userID) {
		return models.ErrForbidden
	}

	now := s.now()
	if s.settleDue(sess, now) {
		// The session already ran out; settlement credits everyone who
		// earned it, the leave itself is moot.
		return s.SettleExpired(ctx, sess)
	}

	// Partial credit for a member who studied past the minimum threshold.
	// Below the threshold minutes are forfeited, not banked.
	if sess.IsActive && sess.StartTime != nil {
		elapsed := sess.ElapsedSeconds(now)
		if elapsed >= int64(s.cfg.Session.MinCreditSeconds) {
			minutes := int(elapsed / 60)
			if maxMinutes := sess.Duration / 60; minutes > maxMinutes {
				minutes = maxMinutes
			}
			s.credit(ctx, userID, sess.SessionID, minutes, false, now)
		}
	}

	if sess.IsCreator(userID) {
		// Creator leave terminates the session for everyone.
		if err := s.repo.Delete(ctx, sess.SessionID); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"session_id": sessionID,
			"user_id":    userID,
		}).Info("Creator left, study session deleted")
		s.publish(userID, sessionID, models.ActionSessionLeft, map[string]string{"deleted": "true"})
		return nil
	}

	if err := s.repo.RemoveParticipant(ctx, sess.SessionID, userID); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"user_id":    userID,
	}).Info("Participant left study session")
	s.publish(userID, sessionID, models.ActionSessionLeft, nil)
	return nil
}

func (s *sessionService) Complete(ctx context.Context, userID, sessionID string) (*models.CompleteResult, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !sess.IsActive || sess.StartTime == nil {
		return nil, models.ErrSessionNotActive
	}
	if !sess.IsMember(userID) {
		return nil, models.ErrForbidden
	}

	now := s.now()
	tolSeconds := int64(s.cfg.Session.ToleranceSeconds)
	delta := int64(now.Sub(sess.Deadline()) / time.Second)
	if delta < -tolSeconds {
		return nil, &models.TimingMismatchError{RemainingSeconds: -delta}
	}
	if delta > tolSeconds {
		return nil, &models.TimingMismatchError{OverdueSeconds: delta}
	}

	minutes := sess.Duration / 60
	granted := s.credit(ctx, userID, sess.SessionID, minutes, true, now)

	deleted := false
	if s.allMembersCredited(ctx, sess) {
		if err := s.repo.Delete(ctx, sess.SessionID); err != nil {
			return nil, err
		}
		deleted = true
		logrus.WithField("session_id", sessionID).Info("All members credited, study session deleted")
	}

	s.publish(userID, sessionID, models.ActionSessionCompleted, map[string]string{
		"deleted": strconv.FormatBool(deleted),
	})

	stats, err := s.users.GetStats(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to load stats after completion")
		stats = nil
	}

	credited := 0
	if granted {
		credited = minutes
	}

	return &models.CompleteResult{
		SessionID:       sessionID,
		MinutesCredited: credited,
		AlreadyCredited: !granted,
		SessionDeleted:  deleted,
		Stats:           stats,
		ServerNow:       now,
	}, nil
}

// Status is the read path. It never grants credit on a live session, but it
// performs the same credit-before-delete settlement as the sweeper when it
// observes a record past reconciliation.
func (s *sessionService) Status(ctx context.Context, sessionID string) (*models.StatusSnapshot, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if s.settleDue(sess, now) {
		snap := models.NewSessionSnapshot(sess, s.memberProfiles(ctx, sess), now)
		if err := s.SettleExpired(ctx, sess); err != nil {
			return nil, err
		}
		return &models.StatusSnapshot{
			SessionSnapshot: *snap,
			Expired:         true,
		}, nil
	}

	remaining := sess.RemainingSeconds(now)
	// Countdown at zero but members still inside the completion window:
	// reported distinctly so clients prompt completion instead of showing a
	// live countdown past zero.
	naturallyCompleted := sess.IsActive && remaining <= 0
	if remaining < 0 {
		remaining = 0
	}

	return &models.StatusSnapshot{
		SessionSnapshot:    *models.NewSessionSnapshot(sess, s.memberProfiles(ctx, sess), now),
		NaturallyCompleted: naturallyCompleted,
		RemainingSeconds:   remaining,
	}, nil
}

// SettleExpired credits every member of a started session and deletes the
// record. Shared by the sweeper, the status read path and the lazy cleanup
// in create/check/join. Per-member credit failures are logged and skipped so
// one bad user record never blocks the rest.
func (s *sessionService) SettleExpired(ctx context.Context, sess *models.StudySession) error {
	now := s.now()

	if sess.IsActive && sess.StartTime != nil {
		minutes := sess.Duration / 60
		for _, member := range sess.Members() {
			s.credit(ctx, member, sess.SessionID, minutes, true, now)
		}
	}

	if err := s.repo.Delete(ctx, sess.SessionID); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"session_id": sess.SessionID,
		"was_active": sess.IsActive,
	}).Info("Expired study session settled and deleted")

	s.publish(sess.CreatorID, sess.SessionID, models.ActionSessionExpired, map[string]string{
		"was_active": strconv.FormatBool(sess.IsActive),
	})

	return nil
}

// settleDue reports whether a record is ready for credit-and-delete
// reconciliation: never-started sessions at their horizon, started ones only
// once the completion tolerance window has closed. Inside the window members
// may still call complete themselves.
func (s *sessionService) settleDue(sess *models.StudySession, now time.Time) bool {
	if !sess.IsExpired(now) {
		return false
	}
	if !sess.IsActive {
		return true
	}
	return now.Sub(sess.Deadline()) > s.tolerance()
}

// credit runs one idempotent grant attempt. Returns whether the grant
// happened; failures are logged, never propagated.
func (s *sessionService) credit(ctx context.Context, userID, sessionID string, minutes int, completed bool, now time.Time) bool {
	granted, err := s.users.Credit(ctx, &user.CreditRequest{
		UserID:    userID,
		SessionID: sessionID,
		Minutes:   minutes,
		Completed: completed,
		Now:       now,
		Cooldown:  s.cooldown(),
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"session_id": sessionID,
		}).Error("Failed to credit user for session")
		return false
	}
	if granted {
		s.cache.InvalidateStudyStats(ctx, userID)
	}
	return granted
}

func (s *sessionService) allMembersCredited(ctx context.Context, sess *models.StudySession) bool {
	for _, member := range sess.Members() {
		u, err := s.users.GetByID(ctx, member)
		if err != nil {
			// A vanished user record can never be credited; do not let it
			// pin the session forever.
			logrus.WithError(err).WithField("user_id", member).Warn("Skipping member in completion check")
			continue
		}
		if !u.CreditedFor(sess.SessionID) {
			return false
		}
	}
	return true
}

func (s *sessionService) snapshot(ctx context.Context, sess *models.StudySession, now time.Time) *models.SessionSnapshot {
	return models.NewSessionSnapshot(sess, s.memberProfiles(ctx, sess), now)
}

// memberProfiles assembles display metadata for all members, cache-first
// with a batch read for misses. Degrades to bare ids when lookups fail.
func (s *sessionService) memberProfiles(ctx context.Context, sess *models.StudySession) []models.MemberProfile {
	members := sess.Members()
	found := make(map[string]models.MemberProfile, len(members))
	var misses []string

	for _, id := range members {
		p, err := s.cache.GetMemberProfile(ctx, id)
		if err == nil && p != nil {
			found[id] = *p
			continue
		}
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		fetched, err := s.users.GetProfiles(ctx, misses)
		if err != nil {
			logrus.WithError(err).Warn("Failed to load member profiles")
		} else {
			for i := range fetched {
				found[fetched[i].UserID] = fetched[i]
				s.cache.CacheMemberProfile(ctx, &fetched[i])
			}
		}
	}

	profiles := make([]models.MemberProfile, 0, len(members))
	for _, id := range members {
		if p, ok := found[id]; ok {
			profiles = append(profiles, p)
		} else {
			profiles = append(profiles, models.MemberProfile{UserID: id})
		}
	}
	return profiles
}

func (s *sessionService) publish(userID, sessionID, action string, metadata map[string]string) {
	if s.publisher == nil {
		return
	}
	var err error
	if metadata != nil {
		err = s.publisher.PublishActivityWithMetadata(userID, sessionID, models.ServiceSessionCoordinator, action, metadata)
	} else {
		err = s.publisher.PublishActivity(userID, sessionID, models.ServiceSessionCoordinator, action)
	}
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"action":     action,
		}).Warn("Failed to publish session activity")
	}
}
