package user

import (
	"context"
	"errors"
	"net/http"
	"time"

	"studyhub-session-svc/src/internal/cache"
	"studyhub-session-svc/src/internal/config"
	"studyhub-session-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	GetMyStats(c *gin.Context)
}

type handler struct {
	config       *config.Configuration
	service      Service
	cacheService cache.Service
}

func NewHandler(cfg *config.Configuration, service Service, cacheService cache.Service) Handler {
	return &handler{
		config:       cfg,
		service:      service,
		cacheService: cacheService,
	}
}

// GetMyStats returns the caller's cumulative study counters, cache-first.
func (h *handler) GetMyStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	cached, err := h.cacheService.GetStudyStats(ctx, userID)
	if err == nil && cached != nil {
		logrus.WithField("user_id", userID).Debug("Study statistics retrieved from cache")
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    cached,
			"message": "Study statistics retrieved successfully (from cache)",
		})
		return
	}

	stats, err := h.service.GetStats(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to get study statistics")
		if errors.Is(err, models.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "User not found",
				"message": "No user found with the provided ID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve study statistics",
			"message": err.Error(),
		})
		return
	}

	h.cacheService.SaveStudyStats(ctx, userID, stats)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
		"message": "Study statistics retrieved successfully",
	})
}
