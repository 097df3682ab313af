package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"studyhub-session-svc/src/internal/config"
	"studyhub-session-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	Create(c *gin.Context)
	Check(c *gin.Context)
	Join(c *gin.Context)
	Start(c *gin.Context)
	Leave(c *gin.Context)
	Complete(c *gin.Context)
	Status(c *gin.Context)
}

type handler struct {
	config  *config.Configuration
	service Service
}

func NewHandler(cfg *config.Configuration, service Service) Handler {
	return &handler{
		config:  cfg,
		service: service,
	}
}

type createRequest struct {
	DurationSeconds int `json:"durationSeconds" binding:"required"`
}

func (h *handler) Create(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := h.callerID(c)
	if userID == "" {
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid request body", "durationSeconds is required")
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"duration": req.DurationSeconds,
	}).Info("Create session request received")

	snapshot, err := h.service.Create(ctx, userID, req.DurationSeconds)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    snapshot,
		"message": "Study session created successfully",
	})
}

// Check returns the caller's current session, or null when they have none.
func (h *handler) Check(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := h.callerID(c)
	if userID == "" {
		return
	}

	snapshot, err := h.service.CheckCurrent(ctx, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    snapshot,
	})
}

func (h *handler) Join(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := h.callerID(c)
	if userID == "" {
		return
	}
	sessionID := c.Param("id")

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
	}).Info("Join session request received")

	snapshot, err := h.service.Join(ctx, userID, sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    snapshot,
		"message": "Joined study session",
	})
}

func (h *handler) Start(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := h.callerID(c)
	if userID == "" {
		return
	}
	sessionID := c.Param("id")

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
	}).Info("Start session request received")

	result, err := h.service.Start(ctx, userID, sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
		"message": "Study session started",
	})
}

func (h *handler) Leave(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := h.callerID(c)
	if userID == "" {
		return
	}
	sessionID := c.Param("id")

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
	}).Info("Leave session request received")

	if err := h.service.Leave(ctx, userID, sessionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Left study session",
	})
}

func (h *handler) Complete(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := h.callerID(c)
	if userID == "" {
		return
	}
	sessionID := c.Param("id")

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
	}).Info("Complete session request received")

	result, err := h.service.Complete(ctx, userID, sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
		"message": "Study session completion recorded",
	})
}

func (h *handler) Status(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	sessionID := c.Param("id")

	status, err := h.service.Status(ctx, sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    status,
	})
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}

func (h *handler) callerID(c *gin.Context) string {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return userID
}

func (h *handler) handleServiceError(c *gin.Context, err error) {
	var timing *models.TimingMismatchError
	if errors.As(err, &timing) {
		c.JSON(http.StatusConflict, gin.H{
			"error":            "Completion outside tolerance window",
			"message":          timing.Error(),
			"remainingSeconds": timing.RemainingSeconds,
			"overdueSeconds":   timing.OverdueSeconds,
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrInvalidDuration):
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid duration", "Duration must be between 60 and 7200 seconds")
	case errors.Is(err, models.ErrInvalidParams):
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid parameters", err.Error())
	case errors.Is(err, models.ErrAlreadyInSession):
		h.sendErrorResponse(c, http.StatusConflict, "Already in a session", "Leave your current session before joining or creating another")
	case errors.Is(err, models.ErrSessionFull):
		h.sendErrorResponse(c, http.StatusConflict, "Session is full", "This session has reached its member limit")
	case errors.Is(err, models.ErrSessionAlreadyActive):
		h.sendErrorResponse(c, http.StatusConflict, "Session already active", "The session has already been started")
	case errors.Is(err, models.ErrSessionNotActive):
		h.sendErrorResponse(c, http.StatusConflict, "Session not active", "The session has not been started")
	case errors.Is(err, models.ErrSessionNotFound):
		h.sendErrorResponse(c, http.StatusNotFound, "Session not found", "No session found with the provided ID")
	case errors.Is(err, models.ErrUserNotFound):
		h.sendErrorResponse(c, http.StatusNotFound, "User not found", "No user found with the provided ID")
	case errors.Is(err, models.ErrSessionExpired):
		h.sendErrorResponse(c, http.StatusGone, "Session expired", "The session expired and has been removed")
	case errors.Is(err, models.ErrForbidden):
		h.sendErrorResponse(c, http.StatusForbidden, "Forbidden", "You are not allowed to perform this operation on this session")
	default:
		logrus.WithError(err).Error("Session operation failed")
		h.sendErrorResponse(c, http.StatusInternalServerError, "Internal error", err.Error())
	}
}

func (h *handler) sendErrorResponse(c *gin.Context, statusCode int, error, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   error,
		"message": message,
	})
}
