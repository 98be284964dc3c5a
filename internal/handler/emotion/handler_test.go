package emotion

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emotionservice "github.com/zhouzirui/heartlog/backend/internal/service/emotion"
)

func setupRouter() *chi.Mux {
	r := chi.NewRouter()
	New(emotionservice.NewService(nil, emotionservice.Config{})).RegisterRoutes(r)
	return r
}

func classify(t *testing.T, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/emotions/classify", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	setupRouter().ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestClassifySingle(t *testing.T) {
	status, body := classify(t, `{"text":"I am so happy today"}`)
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]any)
	assert.Equal(t, "joy", data["emotion"])
	assert.Greater(t, data["confidence"].(float64), 0.5)
}

func TestClassifyEmptyTextIsNeutral(t *testing.T) {
	status, body := classify(t, `{"text":"   "}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"emotion": "neutral", "confidence": 0.5}, body["data"])
}

func TestClassifyNonStringTextIsNeutral(t *testing.T) {
	for _, body := range []string{`{"text":42}`, `{"text":null}`, `{"text":{"nested":"sad"}}`, `{"text":["happy"]}`, `{"text":true}`} {
		status, out := classify(t, body)
		require.Equal(t, http.StatusOK, status, body)
		assert.Equal(t, map[string]any{"emotion": "neutral", "confidence": 0.5}, out["data"], body)
	}
}

func TestClassifyBatchKeepsPositions(t *testing.T) {
	status, body := classify(t, `{"texts":["I am furious", 42, "", "what a nice surprise"]}`)
	require.Equal(t, http.StatusOK, status)

	results := body["data"].(map[string]any)["results"].([]any)
	require.Len(t, results, 4)
	assert.Equal(t, "anger", results[0].(map[string]any)["emotion"])
	assert.Equal(t, "neutral", results[1].(map[string]any)["emotion"])
	assert.Equal(t, "neutral", results[2].(map[string]any)["emotion"])
	assert.Equal(t, "surprise", results[3].(map[string]any)["emotion"])
}

func TestClassifyRejectsBadPayloads(t *testing.T) {
	status, _ := classify(t, `{}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = classify(t, `{"texts":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	many := `{"texts":[` + strings.TrimSuffix(strings.Repeat(`"a",`, maxBatch+1), ",") + `]}`
	status, _ = classify(t, many)
	assert.Equal(t, http.StatusBadRequest, status)
}
