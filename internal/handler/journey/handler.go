package journey

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/heartlog/backend/internal/handler/respond"
	"github.com/zhouzirui/heartlog/backend/internal/middleware"
	journeyService "github.com/zhouzirui/heartlog/backend/internal/service/journey"
	"github.com/zhouzirui/heartlog/backend/pkg/utils"
)

// Handler serves the journey endpoints.
type Handler struct {
	journeySvc *journeyService.Service
}

func New(journeySvc *journeyService.Service) *Handler {
	return &Handler{journeySvc: journeySvc}
}

// RegisterRoutes 注册 journey 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/journey", h.handleOverview)
	r.Get("/journey/messages", h.handleMessages)
}

// handleOverview 返回统计数据。数据源读取失败时仍返回 200 与全零统计。
func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	withPreview := false
	if raw := strings.TrimSpace(r.URL.Query().Get("overview")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respond.BadRequest(w, "overview must be a boolean")
			return
		}
		withPreview = parsed
	}

	overview := h.journeySvc.Overview(r.Context(), middleware.UserIDFrom(r.Context()), withPreview)
	utils.RespondData(w, http.StatusOK, overview)
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respond.BadRequest(w, "limit must be an integer")
			return
		}
		limit = parsed
	}

	page, err := h.journeySvc.Messages(r.Context(), middleware.UserIDFrom(r.Context()), query.Get("category"), query.Get("cursor"), limit)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusOK, page)
}
