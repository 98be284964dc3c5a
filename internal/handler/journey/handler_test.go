package journey

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/heartlog/backend/internal/middleware"
	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
	journeyService "github.com/zhouzirui/heartlog/backend/internal/service/journey"
	"github.com/zhouzirui/heartlog/backend/internal/store/memory"
)

type brokenMedia struct {
	*memory.Store
}

func (brokenMedia) CountMedia(context.Context, string) (int, error) {
	return 0, errors.New("connection reset")
}

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	s := memory.New()
	require.NoError(t, s.CreateChat(ctx, chat.Chat{ID: "c1", UserID: "u1", Type: chat.TypePersonalAI, Name: "Evening", CreatedAt: at}))
	m := chat.Message{ID: "m1", ChatID: "c1", Role: chat.RoleUser, Content: "I finally achieved my goal", CreatedAt: at}
	require.NoError(t, s.CreateMessage(ctx, m.WithEmotion("joy", 0.9)))
	require.NoError(t, s.AddFavorite(ctx, chat.Favorite{UserID: "u1", MessageID: "m1", CreatedAt: at}))
	return s
}

func router(reader journeyService.Reader) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), "u1")))
		})
	})
	New(journeyService.NewService(reader, journeyService.Config{})).RegisterRoutes(r)
	return r
}

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestOverview(t *testing.T) {
	status, body := get(t, router(seeded(t)), "/journey?overview=true")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	stats := data["statistics"].(map[string]any)
	assert.EqualValues(t, 1, stats["totalChats"])
	assert.EqualValues(t, 1, stats["heartToHearts"])
	assert.EqualValues(t, 1, stats["growthMoments"])
	assert.EqualValues(t, 1, stats["goalsAchieved"])
	assert.NotNil(t, data["journeyOverview"])
}

func TestOverviewWithoutPreviewOmitsItems(t *testing.T) {
	status, body := get(t, router(seeded(t)), "/journey")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	_, ok := data["journeyOverview"]
	assert.False(t, ok)
}

func TestOverviewDegradesToZeroOnReadFailure(t *testing.T) {
	status, body := get(t, router(brokenMedia{Store: seeded(t)}), "/journey")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	stats := body["data"].(map[string]any)["statistics"].(map[string]any)
	for key, value := range stats {
		assert.EqualValues(t, 0, value, key)
	}
}

func TestMessages(t *testing.T) {
	h := router(seeded(t))

	status, body := get(t, h, "/journey/messages?category=growth-moments&limit=5")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "growth-moments", data["category"])
	assert.Len(t, data["items"], 1)

	status, body = get(t, h, "/journey/messages?category=bogus")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])

	status, _ = get(t, h, "/journey/messages?category=growth-moments&limit=abc")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = get(t, h, "/journey/messages?category=growth-moments&cursor=!!")
	assert.Equal(t, http.StatusBadRequest, status)
}
