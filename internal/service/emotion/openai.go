package emotion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	analysis "github.com/zhouzirui/heartlog/backend/internal/analysis/emotion"
)

// OpenAIClassifier asks an OpenAI-compatible chat-completions endpoint for a JSON verdict.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

// NewOpenAIClassifier builds a classifier. baseURL may be empty to use the public API.
func NewOpenAIClassifier(apiKey, baseURL, model string) *OpenAIClassifier {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClassifier{client: openai.NewClientWithConfig(cfg), model: model}
}

// Classify implements analysis.Classifier.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (analysis.Result, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Message:\n" + strings.TrimSpace(text)},
		},
		Temperature: 0,
		MaxTokens:   150,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return analysis.Result{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return analysis.Result{}, errors.New("openai returned no choices")
	}
	return parseClassifierOutput(resp.Choices[0].Message.Content)
}
