package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"studyhub-session-svc/src/internal/config"
	"studyhub-session-svc/src/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Service interface {
	GetMemberProfile(ctx context.Context, userID string) (*models.MemberProfile, error)
	CacheMemberProfile(ctx context.Context, profile *models.MemberProfile) error
	GetStudyStats(ctx context.Context, userID string) (*models.StudyStats, error)
	SaveStudyStats(ctx context.Context, userID string, stats *models.StudyStats) error
	InvalidateStudyStats(ctx context.Context, userID string) error
}

type cacheService struct {
	client *redis.Client
	cfg    *config.CacheConfig
}

func NewCacheService(client *redis.Client, cfg *config.Configuration) Service {
	return &cacheService{
		client: client,
		cfg:    &cfg.Cache}
}

func (c *cacheService) profileKey(userID string) string {
	return fmt.Sprintf("%s:%s", c.cfg.ProfileKeyPrefix, userID)
}

func (c *cacheService) statsKey(userID string) string {
	return fmt.Sprintf("%s:%s", c.cfg.StatsKeyPrefix, userID)
}

func (c *cacheService) GetMemberProfile(ctx context.Context, userID string) (*models.MemberProfile, error) {
	key := c.profileKey(userID)

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Not an error, just not found
		}
		logrus.WithError(err).WithField("key", key).Error("Failed to get member profile from cache")
		return nil, models.ErrRedisGet
	}

	var profile models.MemberProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to unmarshal member profile from cache")
		return nil, models.ErrRedisGet
	}

	return &profile, nil
}

func (c *cacheService) CacheMemberProfile(ctx context.Context, profile *models.MemberProfile) error {
	key := c.profileKey(profile.UserID)

	data, err := json.Marshal(profile)
	if err != nil {
		logrus.WithError(err).WithField("user_id", profile.UserID).Error("Failed to marshal member profile for cache")
		return models.ErrRedisSet
	}

	expiration := time.Duration(c.cfg.ProfileExpirationMinutes) * time.Minute
	if err := c.client.Set(ctx, key, data, expiration).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to cache member profile")
		return models.ErrRedisSet
	}

	logrus.WithField("user_id", profile.UserID).Debug("Member profile cached successfully")
	return nil
}

func (c *cacheService) GetStudyStats(ctx context.Context, userID string) (*models.StudyStats, error) {
	key := c.statsKey(userID)

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logrus.WithField("user_id", userID).Debug("Study stats not found in cache")
			return nil, nil // Not an error, just not found
		}
		logrus.WithError(err).Error("Failed to get study stats from cache")
		return nil, models.ErrRedisGet
	}

	var stats models.StudyStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal study stats from cache")
		return nil, models.ErrRedisGet
	}

	return &stats, nil
}

func (c *cacheService) SaveStudyStats(ctx context.Context, userID string, stats *models.StudyStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal study stats for cache")
		return models.ErrRedisSet
	}

	expiration := time.Duration(c.cfg.StatsExpirationMinutes) * time.Minute
	if err := c.client.Set(ctx, c.statsKey(userID), data, expiration).Err(); err != nil {
		logrus.WithError(err).Error("Failed to cache study stats")
		return models.ErrRedisSet
	}
	return nil
}

// InvalidateStudyStats drops the cached counters after a credit grant so the
// next stats read reflects it.
func (c *cacheService) InvalidateStudyStats(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.statsKey(userID)).Err(); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to invalidate study stats cache")
		return models.ErrRedisDelete
	}
	return nil
}
