package utils

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/heartlog/backend/internal/logger"
)

func TestRespondDataAlwaysCarriesData(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondData(rec, http.StatusOK, []string{})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"data":[]}`, rec.Body.String())
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusConflict, "message already favorited")

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "message already favorited", body["message"])
}

func TestSSEHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)
	require.NoError(t, SendSSEChunk(rec, rec, map[string]string{"content": "hi"}))
	SendSSEEvent(rec, rec, "done", map[string]bool{"ok": true})

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: {\"content\":\"hi\"}\n\n"))
	assert.Contains(t, body, "event: done\ndata: {\"ok\":true}\n\n")
}

func TestSendSSEChunkRejectsUnencodable(t *testing.T) {
	rec := httptest.NewRecorder()
	err := SendSSEChunk(rec, rec, func() {})
	require.Error(t, err)
	assert.Empty(t, rec.Body.String())
}

func TestUnencodablePayloadsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	_, err := logger.NewWithWriter("error", "json", &buf)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	SendSSEEvent(rec, rec, "message", func() {})
	assert.Empty(t, rec.Body.String())
	assert.Contains(t, buf.String(), `"component":"sse"`)
	assert.Contains(t, buf.String(), "failed to marshal sse event data")

	buf.Reset()
	RespondJSON(httptest.NewRecorder(), http.StatusOK, map[string]any{"bad": make(chan int)})
	assert.Contains(t, buf.String(), `"component":"http"`)
	assert.Contains(t, buf.String(), "failed to encode response")
}
