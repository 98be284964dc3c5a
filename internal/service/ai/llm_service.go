package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/heartlog/backend/internal/analysis/emotion"
	"github.com/zhouzirui/heartlog/backend/internal/logger"
	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
	"github.com/zhouzirui/heartlog/backend/internal/model/settings"
)

// ErrStreamingDisabled is returned by StreamResponse when streaming is turned off.
var ErrStreamingDisabled = errors.New("streaming disabled in configuration")

// PromptSource supplies the current chat settings.
type PromptSource interface {
	Get(ctx context.Context) (settings.ChatSettings, error)
}

// Options tune reply generation.
type Options struct {
	Stream          bool
	HistoryLimit    int
	EmotionGuidance bool
}

// Service encapsulates AI-powered chat functionality
type Service struct {
	prompts PromptSource
	opts    Options
	chain   compose.Runnable[map[string]any, *schema.Message]
	log     zerolog.Logger
}

// NewService compiles the reply chain on top of chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel, prompts PromptSource, opts Options) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if opts.HistoryLimit < 1 {
		opts.HistoryLimit = 10
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		prompts: prompts,
		opts:    opts,
		chain:   runnable,
		log:     logger.Component("ai"),
	}, nil
}

// StreamingEnabled 指示是否开启 SSE 流式输出。
func (s *Service) StreamingEnabled() bool {
	return s.opts.Stream
}

// GenerateResponse generates the assistant reply for a chat.
func (s *Service) GenerateResponse(ctx context.Context, c chat.Chat, history []chat.Message, userMessage string, mood *emotion.Result) (*schema.Message, error) {
	input, err := s.buildChainInput(ctx, c, history, userMessage, mood)
	if err != nil {
		return nil, err
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}

	s.log.Debug().Str("chat_id", c.ID).Str("chat_type", c.Type).Int("length", len(response.Content)).Msg("generated response")
	return response, nil
}

// StreamResponse streams AI response chunks via the configured chain.
func (s *Service) StreamResponse(ctx context.Context, c chat.Chat, history []chat.Message, userMessage string, mood *emotion.Result) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, ErrStreamingDisabled
	}

	input, err := s.buildChainInput(ctx, c, history, userMessage, mood)
	if err != nil {
		return nil, err
	}

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	return stream, nil
}

func (s *Service) buildChainInput(ctx context.Context, c chat.Chat, history []chat.Message, userMessage string, mood *emotion.Result) (map[string]any, error) {
	cs := settings.Defaults()
	if s.prompts != nil {
		loaded, err := s.prompts.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("load chat settings: %w", err)
		}
		cs = loaded
	}
	if !s.opts.EmotionGuidance {
		mood = nil
	}

	return map[string]any{
		"system":  BuildSystemPrompt(cs, c.Type, mood),
		"history": s.buildHistoryMessages(history),
		"query":   userMessage,
	}, nil
}

func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > s.opts.HistoryLimit {
		startIdx = len(messages) - s.opts.HistoryLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
