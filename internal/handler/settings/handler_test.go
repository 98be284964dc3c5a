package settings

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	settingsService "github.com/zhouzirui/heartlog/backend/internal/service/settings"
	"github.com/zhouzirui/heartlog/backend/internal/store/memory"
)

func setupRouter() *chi.Mux {
	r := chi.NewRouter()
	New(settingsService.NewService(memory.New())).RegisterRoutes(r)
	return r
}

func send(t *testing.T, r http.Handler, method, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, "/chat-settings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestGetReturnsDefaults(t *testing.T) {
	status, body := send(t, setupRouter(), http.MethodGet, "")
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]any)
	assert.EqualValues(t, 20, data["dailyFreeMessages"])
	assert.EqualValues(t, 10, data["dailyFreePersonalAIMessages"])
	assert.NotEmpty(t, data["personalAIPrompt"])
}

func TestPatchIsPartial(t *testing.T) {
	r := setupRouter()

	status, _ := send(t, r, http.MethodPatch, `{"dailyFreeMessages": 5}`)
	require.Equal(t, http.StatusOK, status)

	status, body := send(t, r, http.MethodGet, "")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 5, data["dailyFreeMessages"])
	assert.EqualValues(t, 10, data["dailyFreePersonalAIMessages"])
}

func TestPatchRejectsInvalidValues(t *testing.T) {
	r := setupRouter()

	for _, body := range []string{
		`{"dailyFreeMessages": -1}`,
		`{"generalPrompt": "   "}`,
		`{"dailyFreeMessages": "many"}`,
		`not json`,
	} {
		status, out := send(t, r, http.MethodPatch, body)
		assert.Equal(t, http.StatusBadRequest, status, body)
		assert.Equal(t, false, out["success"], body)
	}
}
