package analytics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/heartlog/backend/internal/handler/respond"
	"github.com/zhouzirui/heartlog/backend/internal/middleware"
	analyticsService "github.com/zhouzirui/heartlog/backend/internal/service/analytics"
	"github.com/zhouzirui/heartlog/backend/pkg/utils"
)

const dateLayout = "2006-01-02"

// Handler serves emotion analytics.
type Handler struct {
	analyticsSvc *analyticsService.Service
}

func New(analyticsSvc *analyticsService.Service) *Handler {
	return &Handler{analyticsSvc: analyticsSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/analytics/emotions", h.handleEmotions)
}

func (h *Handler) handleEmotions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFrom(r.Context())
	query := r.URL.Query()

	if requested := strings.TrimSpace(query.Get("userId")); requested != "" && requested != userID {
		utils.RespondError(w, http.StatusForbidden, "cannot read analytics of another user")
		return
	}

	filter := analyticsService.Filter{
		UserID: userID,
		ChatID: strings.TrimSpace(query.Get("chatId")),
	}

	var err error
	if filter.Start, err = ParseDate(query.Get("startDate"), false); err != nil {
		respond.BadRequest(w, "startDate must be YYYY-MM-DD or RFC3339")
		return
	}
	if filter.End, err = ParseDate(query.Get("endDate"), true); err != nil {
		respond.BadRequest(w, "endDate must be YYYY-MM-DD or RFC3339")
		return
	}
	if !filter.Start.IsZero() && !filter.End.IsZero() && !filter.Start.Before(filter.End) {
		respond.BadRequest(w, "startDate must not be after endDate")
		return
	}

	if raw := strings.TrimSpace(query.Get("includeAI")); raw != "" {
		if filter.IncludeAI, err = strconv.ParseBool(raw); err != nil {
			respond.BadRequest(w, "includeAI must be a boolean")
			return
		}
	}

	breakdown, err := h.analyticsSvc.EmotionBreakdown(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusOK, breakdown)
}

// ParseDate parses a YYYY-MM-DD or RFC3339 date. With end set the result is
// the exclusive bound that makes the given date inclusive. Empty input yields
// the zero time.
func ParseDate(raw string, end bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if day, err := time.ParseInLocation(dateLayout, raw, time.UTC); err == nil {
		if end {
			return day.AddDate(0, 0, 1), nil
		}
		return day, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	t = t.UTC()
	if end {
		return t.Add(time.Nanosecond), nil
	}
	return t, nil
}
