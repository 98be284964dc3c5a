package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	analysis "github.com/zhouzirui/heartlog/backend/internal/analysis/emotion"
	"github.com/zhouzirui/heartlog/backend/internal/handler/respond"
	"github.com/zhouzirui/heartlog/backend/internal/logger"
	"github.com/zhouzirui/heartlog/backend/internal/middleware"
	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
	aiService "github.com/zhouzirui/heartlog/backend/internal/service/ai"
	chatService "github.com/zhouzirui/heartlog/backend/internal/service/chat"
	emotionservice "github.com/zhouzirui/heartlog/backend/internal/service/emotion"
	"github.com/zhouzirui/heartlog/backend/pkg/utils"
)

// Handler manages streaming AI responses via Server-Sent Events
type Handler struct {
	aiService  *aiService.Service
	emotionSvc *emotionservice.Service
	chatSvc    *chatService.Service
	log        zerolog.Logger
}

// New creates a new stream handler. aiSvc may be nil when no chat model is configured.
func New(aiSvc *aiService.Service, emotionSvc *emotionservice.Service, chatSvc *chatService.Service) *Handler {
	return &Handler{
		aiService:  aiSvc,
		emotionSvc: emotionSvc,
		chatSvc:    chatSvc,
		log:        logger.Component("stream"),
	}
}

// RegisterRoutes 注册流式回复路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chats/{chatID}/stream", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event      string  `json:"event"`
	Content    string  `json:"content,omitempty"`
	ChatID     string  `json:"chatId,omitempty"`
	MessageID  string  `json:"messageId,omitempty"`
	Emotion    string  `json:"emotion,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Finished   bool    `json:"finished,omitempty"`
	Error      string  `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	userMessage := strings.TrimSpace(r.URL.Query().Get("message"))
	if userMessage == "" {
		respond.BadRequest(w, "message query parameter is required")
		return
	}
	if h.aiService == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	userID := middleware.UserIDFrom(ctx)
	chatID := chi.URLParam(r, "chatID")

	c, err := h.chatSvc.GetChat(ctx, userID, chatID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	history, err := h.chatSvc.History(ctx, userID, chatID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	// 客户端已经通过 REST 保存过同一条消息时不再重复保存
	userMsg, persisted := matchingUserMessage(history, userMessage)
	if persisted {
		history = history[:len(history)-1]
	} else {
		userMsg, err = h.saveUserMessage(ctx, userID, chatID, userMessage)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
	}
	mood := h.moodOf(userMsg)

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	h.sendSSE(w, flusher, StreamResponse{Event: "start", ChatID: chatID, MessageID: userMsg.ID})
	if mood != nil {
		h.sendSSE(w, flusher, StreamResponse{
			Event:      "emotion",
			ChatID:     chatID,
			MessageID:  userMsg.ID,
			Emotion:    string(mood.Emotion),
			Confidence: mood.Confidence,
		})
	}

	response, err := h.dispatchAIResponse(ctx, w, flusher, c, history, userMessage, mood)
	if err != nil {
		h.log.Error().Err(err).Str("chat_id", chatID).Msg("ai generation failed")
		h.sendSSEError(w, flusher, "AI generation failed")
		return
	}

	assistantMsg, err := h.chatSvc.SaveMessage(ctx, userID, chatID, chatService.NewMessage{
		Role:    chat.RoleAssistant,
		Content: response.Content,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to save assistant message")
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "end",
		ChatID:    chatID,
		MessageID: assistantMsg.ID,
		Finished:  true,
	})
	h.log.Debug().Str("chat_id", chatID).Str("chat_type", c.Type).Msg("completed streamed response")
}

// saveUserMessage 先识别情绪再保存，避免同一条消息再进入异步队列
func (h *Handler) saveUserMessage(ctx context.Context, userID, chatID, content string) (chat.Message, error) {
	in := chatService.NewMessage{Role: chat.RoleUser, Content: content}
	if h.emotionSvc != nil {
		result := h.emotionSvc.Classify(ctx, content)
		label := string(result.Emotion)
		in.Emotion = &label
		in.EmotionConfidence = &result.Confidence
	}
	return h.chatSvc.SaveMessage(ctx, userID, chatID, in)
}

// moodOf 读取消息已保存的情绪。尚未识别的消息已在异步队列中，这里只做关键词估计，不再调用大模型。
func (h *Handler) moodOf(m chat.Message) *analysis.Result {
	if label, ok := analysis.ParseLabel(m.EmotionLabel()); ok {
		return &analysis.Result{Emotion: label, Confidence: m.Confidence()}
	}
	if h.emotionSvc == nil {
		return nil
	}
	result := h.emotionSvc.Estimate(m.Content)
	return &result
}

// dispatchAIResponse streams deltas when streaming is enabled, otherwise sends one message event
func (h *Handler) dispatchAIResponse(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, c chat.Chat, history []chat.Message, userMessage string, mood *analysis.Result) (*schema.Message, error) {
	if h.aiService.StreamingEnabled() {
		return h.streamAIResponse(ctx, w, flusher, c, history, userMessage, mood)
	}

	response, err := h.aiService.GenerateResponse(ctx, c, history, userMessage, mood)
	if err != nil {
		return nil, err
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:   "message",
		ChatID:  c.ID,
		Content: response.Content,
	})
	return response, nil
}

func (h *Handler) streamAIResponse(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, c chat.Chat, history []chat.Message, userMessage string, mood *analysis.Result) (*schema.Message, error) {
	stream, err := h.aiService.StreamResponse(ctx, c, history, userMessage, mood)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			h.sendSSE(w, flusher, StreamResponse{
				Event:   "delta",
				ChatID:  c.ID,
				Content: chunk.Content,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("model returned an empty stream")
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, err
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:   "message",
		ChatID:  c.ID,
		Content: response.Content,
	})
	return response, nil
}

func matchingUserMessage(history []chat.Message, content string) (chat.Message, bool) {
	if len(history) == 0 {
		return chat.Message{}, false
	}
	last := history[len(history)-1]
	if last.Role != chat.RoleUser || last.Content != content {
		return chat.Message{}, false
	}
	return last, true
}

func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	if err := utils.SendSSEChunk(w, flusher, response); err != nil {
		h.log.Debug().Err(err).Str("event", response.Event).Msg("failed to write sse chunk")
	}
}

func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	h.sendSSE(w, flusher, StreamResponse{
		Event: "error",
		Error: errorMsg,
	})
}
