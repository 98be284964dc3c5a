package settings

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/heartlog/backend/internal/handler/respond"
	settingsService "github.com/zhouzirui/heartlog/backend/internal/service/settings"
	"github.com/zhouzirui/heartlog/backend/pkg/utils"
)

// Handler 会话设置的HTTP处理器
type Handler struct {
	settingsSvc *settingsService.Service
}

func New(settingsSvc *settingsService.Service) *Handler {
	return &Handler{settingsSvc: settingsSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat-settings", h.handleGet)
	r.Patch("/chat-settings", h.handleUpdate)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	cs, err := h.settingsSvc.Get(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusOK, cs)
}

// handleUpdate 部分更新，未出现的字段保持原值
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req settingsService.UpdateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	cs, err := h.settingsSvc.Update(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusOK, cs)
}
