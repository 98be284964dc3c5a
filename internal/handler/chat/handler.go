package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/heartlog/backend/internal/handler/respond"
	"github.com/zhouzirui/heartlog/backend/internal/middleware"
	chatService "github.com/zhouzirui/heartlog/backend/internal/service/chat"
	"github.com/zhouzirui/heartlog/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天、消息、收藏与媒体相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chats", h.handleCreateChat)
	r.Get("/chats", h.handleListChats)
	r.Delete("/chats/{chatID}", h.handleDeleteChat)
	r.Get("/chats/{chatID}/messages", h.handleListMessages)
	r.Post("/chats/{chatID}/messages", h.handleSaveMessage)

	r.Delete("/messages/{messageID}", h.handleDeleteMessage)
	r.Post("/messages/{messageID}/favorite", h.handleFavorite)
	r.Delete("/messages/{messageID}/favorite", h.handleUnfavorite)

	r.Post("/media", h.handleAddMedia)
	r.Get("/media", h.handleListMedia)
}

// handleCreateChat 创建会话
func (h *Handler) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := respond.Decode(r, &payload); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	c, err := h.chatSvc.CreateChat(r.Context(), middleware.UserIDFrom(r.Context()), payload.Type, payload.Name)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusCreated, c)
}

func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatSvc.ListChats(r.Context(), middleware.UserIDFrom(r.Context()))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusOK, chats)
}

func (h *Handler) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if err := h.chatSvc.DeleteChat(r.Context(), middleware.UserIDFrom(r.Context()), chatID); err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusOK, map[string]string{"id": chatID})
}

// handleListMessages 返回会话记录，按时间正序
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.LoadTranscript(r.Context(), middleware.UserIDFrom(r.Context()), chi.URLParam(r, "chatID"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusOK, messages)
}

// handleSaveMessage 保存消息
func (h *Handler) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role              string   `json:"role"`
		Content           string   `json:"content"`
		Emotion           *string  `json:"emotion"`
		EmotionConfidence *float64 `json:"emotionConfidence"`
	}
	if err := respond.Decode(r, &payload); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	message, err := h.chatSvc.SaveMessage(r.Context(), middleware.UserIDFrom(r.Context()), chi.URLParam(r, "chatID"), chatService.NewMessage{
		Role:              payload.Role,
		Content:           payload.Content,
		Emotion:           payload.Emotion,
		EmotionConfidence: payload.EmotionConfidence,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusCreated, message)
}

func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	if err := h.chatSvc.DeleteMessage(r.Context(), middleware.UserIDFrom(r.Context()), messageID); err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusOK, map[string]string{"id": messageID})
}

type favoriteState struct {
	MessageID  string `json:"messageId"`
	IsFavorite bool   `json:"isFavorite"`
}

// handleFavorite 收藏消息，重复收藏返回 409
func (h *Handler) handleFavorite(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	if err := h.chatSvc.Favorite(r.Context(), middleware.UserIDFrom(r.Context()), messageID); err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusCreated, favoriteState{MessageID: messageID, IsFavorite: true})
}

func (h *Handler) handleUnfavorite(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	if err := h.chatSvc.Unfavorite(r.Context(), middleware.UserIDFrom(r.Context()), messageID); err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusOK, favoriteState{MessageID: messageID})
}

// handleAddMedia 登记媒体元数据，不处理文件上传
func (h *Handler) handleAddMedia(w http.ResponseWriter, r *http.Request) {
	var payload chatService.NewMedia
	if err := respond.Decode(r, &payload); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	media, err := h.chatSvc.AddMedia(r.Context(), middleware.UserIDFrom(r.Context()), payload)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusCreated, media)
}

func (h *Handler) handleListMedia(w http.ResponseWriter, r *http.Request) {
	media, err := h.chatSvc.ListMedia(r.Context(), middleware.UserIDFrom(r.Context()))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	utils.RespondData(w, http.StatusOK, media)
}
