package user

import (
	"context"

	"studyhub-session-svc/src/internal/config"
	"studyhub-session-svc/src/internal/models"

	"github.com/sirupsen/logrus"
)

type Service interface {
	GetStats(ctx context.Context, userID string) (*models.StudyStats, error)
}

type userService struct {
	userRepository Repository
	cfg            *config.Configuration
}

func NewUserService(userRepository Repository, cfg *config.Configuration) Service {
	return &userService{
		userRepository: userRepository,
		cfg:            cfg,
	}
}

func (s *userService) GetStats(ctx context.Context, userID string) (*models.StudyStats, error) {
	if userID == "" {
		return nil, models.ErrInvalidParams
	}

	logrus.WithField("user_id", userID).Debug("Getting study statistics")

	stats, err := s.userRepository.GetStats(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to get study stats from repository")
		return nil, err
	}

	return stats, nil
}
