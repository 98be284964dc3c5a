// Package respond maps service errors onto HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/heartlog/backend/internal/analysis/journey"
	"github.com/zhouzirui/heartlog/backend/internal/logger"
	chatService "github.com/zhouzirui/heartlog/backend/internal/service/chat"
	journeyService "github.com/zhouzirui/heartlog/backend/internal/service/journey"
	settingsService "github.com/zhouzirui/heartlog/backend/internal/service/settings"
	"github.com/zhouzirui/heartlog/backend/internal/store"
	"github.com/zhouzirui/heartlog/backend/pkg/utils"
)

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, chatService.ErrValidation),
		errors.Is(err, settingsService.ErrInvalid),
		errors.Is(err, journeyService.ErrUnknownCategory),
		errors.Is(err, journey.ErrInvalidCursor):
		return http.StatusBadRequest
	case errors.Is(err, chatService.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyFavorited):
		return http.StatusConflict
	case errors.Is(err, chatService.ErrDailyLimitReached):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err using the failure envelope. Internal errors are logged and
// replaced by a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		log := logger.Component("http")
		log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		utils.RespondError(w, status, "internal server error")
		return
	}
	utils.RespondError(w, status, err.Error())
}

// BadRequest writes a 400 with message.
func BadRequest(w http.ResponseWriter, message string) {
	utils.RespondError(w, http.StatusBadRequest, message)
}

const maxBodyBytes = 1 << 20

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}
