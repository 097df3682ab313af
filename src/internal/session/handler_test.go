package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"studyhub-session-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService returns canned results so handler tests only exercise the
// HTTP mapping.
type stubService struct {
	snapshot *models.SessionSnapshot
	start    *models.StartResult
	complete *models.CompleteResult
	status   *models.StatusSnapshot
	err      error
}

func (s *stubService) Create(context.Context, string, int) (*models.SessionSnapshot, error) {
	return s.snapshot, s.err
}

func (s *stubService) CheckCurrent(context.Context, string) (*models.SessionSnapshot, error) {
	return s.snapshot, s.err
}

func (s *stubService) Join(context.Context, string, string) (*models.SessionSnapshot, error) {
	return s.snapshot, s.err
}

func (s *stubService) Start(context.Context, string, string) (*models.StartResult, error) {
	return s.start, s.err
}

func (s *stubService) Leave(context.Context, string, string) error { return s.err }

func (s *stubService) Complete(context.Context, string, string) (*models.CompleteResult, error) {
	return s.complete, s.err
}

func (s *stubService) Status(context.Context, string) (*models.StatusSnapshot, error) {
	return s.status, s.err
}

func (s *stubService) SettleExpired(context.Context, *models.StudySession) error { return s.err }

func setupRouter(svc Service, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(testConfig(), svc)

	router := gin.New()
	identity := func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	}

	api := router.Group("/api/v1", identity)
	api.POST("/sessions", h.Create)
	api.GET("/sessions/current", h.Check)
	api.GET("/sessions/:id", h.Status)
	api.POST("/sessions/:id/join", h.Join)
	api.POST("/sessions/:id/start", h.Start)
	api.POST("/sessions/:id/leave", h.Leave)
	api.POST("/sessions/:id/complete", h.Complete)
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateHandler(t *testing.T) {
	svc := &stubService{snapshot: &models.SessionSnapshot{
		SessionID: "s1",
		CreatorID: "u1",
		Duration:  1500,
		ServerNow: time.Now(),
	}}
	router := setupRouter(svc, "u1")

	w := doRequest(router, http.MethodPost, "/api/v1/sessions", `{"durationSeconds":1500}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Success bool                   `json:"success"`
		Data    models.SessionSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "s1", resp.Data.SessionID)
}

func TestCreateHandlerBadBody(t *testing.T) {
	router := setupRouter(&stubService{}, "u1")

	w := doRequest(router, http.MethodPost, "/api/v1/sessions", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateHandlerRequiresIdentity(t *testing.T) {
	router := setupRouter(&stubService{}, "")

	w := doRequest(router, http.MethodPost, "/api/v1/sessions", `{"durationSeconds":1500}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckHandlerReturnsNull(t *testing.T) {
	router := setupRouter(&stubService{snapshot: nil}, "u1")

	w := doRequest(router, http.MethodGet, "/api/v1/sessions/current", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "null", string(resp["data"]))
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid duration", models.ErrInvalidDuration, http.StatusBadRequest},
		{"already in session", models.ErrAlreadyInSession, http.StatusConflict},
		{"session full", models.ErrSessionFull, http.StatusConflict},
		{"already active", models.ErrSessionAlreadyActive, http.StatusConflict},
		{"not active", models.ErrSessionNotActive, http.StatusConflict},
		{"not found", models.ErrSessionNotFound, http.StatusNotFound},
		{"expired", models.ErrSessionExpired, http.StatusGone},
		{"forbidden", models.ErrForbidden, http.StatusForbidden},
		{"storage failure", models.ErrDatabaseQuery, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := setupRouter(&stubService{err: tc.err}, "u1")
			w := doRequest(router, http.MethodPost, "/api/v1/sessions/s1/join", "")
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestCompleteHandlerTimingMismatch(t *testing.T) {
	svc := &stubService{err: &models.TimingMismatchError{RemainingSeconds: 90}}
	router := setupRouter(svc, "u1")

	w := doRequest(router, http.MethodPost, "/api/v1/sessions/s1/complete", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		RemainingSeconds int64 `json:"remainingSeconds"`
		OverdueSeconds   int64 `json:"overdueSeconds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(90), resp.RemainingSeconds)
	assert.Zero(t, resp.OverdueSeconds)
}

func TestStatusHandler(t *testing.T) {
	svc := &stubService{status: &models.StatusSnapshot{
		SessionSnapshot: models.SessionSnapshot{
			SessionID: "s1",
			IsActive:  true,
		},
		NaturallyCompleted: true,
	}}
	router := setupRouter(svc, "u1")

	w := doRequest(router, http.MethodGet, "/api/v1/sessions/s1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data models.StatusSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.NaturallyCompleted)
	assert.False(t, resp.Data.Expired)
}
