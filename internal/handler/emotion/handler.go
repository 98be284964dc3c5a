package emotion

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/heartlog/backend/internal/handler/respond"
	emotionservice "github.com/zhouzirui/heartlog/backend/internal/service/emotion"
	"github.com/zhouzirui/heartlog/backend/pkg/utils"
)

const maxBatch = 100

// Handler exposes the emotion classifier over HTTP.
type Handler struct {
	emotionSvc *emotionservice.Service
}

func New(emotionSvc *emotionservice.Service) *Handler {
	return &Handler{emotionSvc: emotionSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/emotions/classify", h.handleClassify)
}

// handleClassify 接受 {text} 或 {texts:[...]}。非字符串的输入得到默认结果。
func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text  json.RawMessage `json:"text"`
		Texts json.RawMessage `json:"texts"`
	}
	if err := respond.Decode(r, &payload); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	if len(payload.Texts) > 0 && string(payload.Texts) != "null" {
		var texts []any
		if err := json.Unmarshal(payload.Texts, &texts); err != nil {
			respond.BadRequest(w, "texts must be an array")
			return
		}
		if len(texts) > maxBatch {
			respond.BadRequest(w, "at most 100 texts per request")
			return
		}
		utils.RespondData(w, http.StatusOK, map[string]any{
			"results": h.emotionSvc.ClassifyBatch(r.Context(), texts),
		})
		return
	}

	if len(payload.Text) == 0 {
		respond.BadRequest(w, "text or texts is required")
		return
	}
	var text any
	if err := json.Unmarshal(payload.Text, &text); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	utils.RespondData(w, http.StatusOK, h.emotionSvc.ClassifyValue(r.Context(), text))
}
