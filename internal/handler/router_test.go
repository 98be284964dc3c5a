package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middlewarePkg "github.com/zhouzirui/heartlog/backend/internal/middleware"
	"github.com/zhouzirui/heartlog/backend/internal/realtime"
	analyticsService "github.com/zhouzirui/heartlog/backend/internal/service/analytics"
	chatService "github.com/zhouzirui/heartlog/backend/internal/service/chat"
	emotionService "github.com/zhouzirui/heartlog/backend/internal/service/emotion"
	journeyService "github.com/zhouzirui/heartlog/backend/internal/service/journey"
	settingsService "github.com/zhouzirui/heartlog/backend/internal/service/settings"
	"github.com/zhouzirui/heartlog/backend/internal/store/memory"
)

const secret = "router-test-secret-value"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	st := memory.New()
	settingsSvc := settingsService.NewService(st)
	svcs := Services{
		Chat:      chatService.NewService(st, settingsSvc, nil),
		Emotion:   emotionService.NewService(nil, emotionService.Config{}),
		Journey:   journeyService.NewService(st, journeyService.Config{}),
		Analytics: analyticsService.NewService(st),
		Settings:  settingsSvc,
		Hub:       realtime.NewHub(4),
	}
	return NewRouter(svcs, Options{
		Auth:           middlewarePkg.NewAuthenticator(secret, "user_id"),
		AllowedOrigins: []string{"http://localhost:5173"},
		RequestTimeout: 5 * time.Second,
		Logger:         zerolog.Nop(),
	})
}

func token(t *testing.T, userID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func request(t *testing.T, h http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestPublicEndpoints(t *testing.T) {
	h := newTestRouter(t)

	rec := request(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "heartlog_")
}

func TestAPIRequiresToken(t *testing.T) {
	h := newTestRouter(t)

	rec := request(t, h, http.MethodGet, "/api/journey", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"missing or invalid token"}`, rec.Body.String())
}

func TestJournalFlow(t *testing.T) {
	h := newTestRouter(t)

	rec := request(t, h, http.MethodPost, "/api/chats", "u1", map[string]string{"type": "personal-ai"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var c struct {
		ID string `json:"id"`
	}
	decodeData(t, rec, &c)

	rec = request(t, h, http.MethodPost, "/api/chats/"+c.ID+"/messages", "u1", map[string]any{
		"content": "I finally reached my goal and I am so happy",
		"emotion": "joy",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var m struct {
		ID string `json:"id"`
	}
	decodeData(t, rec, &m)

	rec = request(t, h, http.MethodPost, "/api/messages/"+m.ID+"/favorite", "u1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = request(t, h, http.MethodPost, "/api/messages/"+m.ID+"/favorite", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = request(t, h, http.MethodPost, "/api/messages/"+m.ID+"/favorite", "u2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = request(t, h, http.MethodGet, "/api/journey", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var overview struct {
		Statistics map[string]int `json:"statistics"`
	}
	decodeData(t, rec, &overview)
	assert.Equal(t, 1, overview.Statistics["heartToHearts"])
	assert.Equal(t, 1, overview.Statistics["growthMoments"])
	assert.Equal(t, 1, overview.Statistics["goalsAchieved"])

	rec = request(t, h, http.MethodGet, "/api/analytics/emotions", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var breakdown struct {
		Emotions []struct {
			Emotion    string  `json:"emotion"`
			Percentage float64 `json:"percentage"`
		} `json:"emotions"`
	}
	decodeData(t, rec, &breakdown)
	require.Len(t, breakdown.Emotions, 1)
	assert.Equal(t, "joy", breakdown.Emotions[0].Emotion)
	assert.Equal(t, 100.0, breakdown.Emotions[0].Percentage)
}

func TestStreamWithoutModelIsUnavailable(t *testing.T) {
	h := newTestRouter(t)
	rec := request(t, h, http.MethodGet, "/api/chats/c1/stream?message=hi", "u1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDailyLimit(t *testing.T) {
	h := newTestRouter(t)

	rec := request(t, h, http.MethodPatch, "/api/chat-settings", "u1", map[string]int{"dailyFreeMessages": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = request(t, h, http.MethodPost, "/api/chats", "u1", map[string]string{"type": "general"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var c struct {
		ID string `json:"id"`
	}
	decodeData(t, rec, &c)

	rec = request(t, h, http.MethodPost, "/api/chats/"+c.ID+"/messages", "u1", map[string]string{"content": "one"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = request(t, h, http.MethodPost, "/api/chats/"+c.ID+"/messages", "u1", map[string]string{"content": "two"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = request(t, h, http.MethodPost, "/api/chats/"+c.ID+"/messages", "u1", map[string]string{"role": "assistant", "content": "reply"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}
