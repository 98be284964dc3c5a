package respond

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/heartlog/backend/internal/analysis/journey"
	"github.com/zhouzirui/heartlog/backend/internal/logger"
	chatService "github.com/zhouzirui/heartlog/backend/internal/service/chat"
	journeyService "github.com/zhouzirui/heartlog/backend/internal/service/journey"
	settingsService "github.com/zhouzirui/heartlog/backend/internal/service/settings"
	"github.com/zhouzirui/heartlog/backend/internal/store"
)

func TestStatus(t *testing.T) {
	cases := map[error]int{
		chatService.ErrContentRequired:                             http.StatusBadRequest,
		fmt.Errorf("%w: prompt blank", settingsService.ErrInvalid): http.StatusBadRequest,
		journeyService.ErrUnknownCategory:                          http.StatusBadRequest,
		journey.ErrInvalidCursor:                                   http.StatusBadRequest,
		chatService.ErrForbidden:                                   http.StatusForbidden,
		fmt.Errorf("get chat: %w", store.ErrNotFound):              http.StatusNotFound,
		store.ErrAlreadyFavorited:                                  http.StatusConflict,
		chatService.ErrDailyLimitReached:                           http.StatusTooManyRequests,
		errors.New("boom"):                                         http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, Status(err), err.Error())
	}
}

func TestErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, httptest.NewRequest(http.MethodGet, "/api/chats", nil), errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"internal server error"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	Error(rec, httptest.NewRequest(http.MethodPost, "/api/messages/m1/favorite", nil), store.ErrAlreadyFavorited)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"message already favorited"}`, rec.Body.String())
}

func TestErrorLogsInternalFailures(t *testing.T) {
	var buf bytes.Buffer
	_, err := logger.NewWithWriter("info", "json", &buf)
	require.NoError(t, err)

	Error(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/journey", nil), errors.New("disk full"))
	assert.Contains(t, buf.String(), `"path":"/api/journey"`)
	assert.Contains(t, buf.String(), "disk full")

	buf.Reset()
	Error(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/journey", nil), store.ErrNotFound)
	assert.Empty(t, buf.String())
}
