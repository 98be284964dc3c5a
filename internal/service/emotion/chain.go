package emotion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	analysis "github.com/zhouzirui/heartlog/backend/internal/analysis/emotion"
)

// ChainClassifier 通过 eino 链调用大模型完成情绪分类。
type ChainClassifier struct {
	runnable compose.Runnable[map[string]any, *schema.Message]
}

// NewChainClassifier 编译 "系统提示 + 用户消息 → 模型" 的分类链。
func NewChainClassifier(ctx context.Context, chatModel model.ChatModel) (*ChainClassifier, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage(classifierUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile emotion classifier chain: %w", err)
	}
	return &ChainClassifier{runnable: runnable}, nil
}

// Classify implements analysis.Classifier.
func (c *ChainClassifier) Classify(ctx context.Context, text string) (analysis.Result, error) {
	msg, err := c.runnable.Invoke(ctx, map[string]any{"text": strings.TrimSpace(text)})
	if err != nil {
		return analysis.Result{}, fmt.Errorf("invoke classifier chain: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return analysis.Result{}, errors.New("classifier returned empty content")
	}
	return parseClassifierOutput(msg.Content)
}

type classifierPayload struct {
	Emotion    string   `json:"emotion"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// parseClassifierOutput 解析大模型返回的 JSON，允许 JSON 前后夹带多余文本。
func parseClassifierOutput(content string) (analysis.Result, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return analysis.Result{}, errors.New("missing json object")
	}

	var payload classifierPayload
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err != nil {
		return analysis.Result{}, fmt.Errorf("decode classifier json: %w", err)
	}

	label, ok := analysis.ParseLabel(payload.Emotion)
	if !ok {
		return analysis.Result{}, fmt.Errorf("unknown emotion label %q", payload.Emotion)
	}
	if payload.Confidence == nil || math.IsNaN(*payload.Confidence) {
		return analysis.Result{}, errors.New("classifier json has no confidence")
	}

	return analysis.Result{
		Emotion:    label,
		Confidence: analysis.RoundConfidence(*payload.Confidence),
	}, nil
}

// 提示词中不能出现花括号，FString 模板会把它们当作占位符。
const classifierSystemPrompt = `You classify the emotion of a single journal or chat message.
Choose exactly one label from: joy, sadness, anger, fear, surprise, disgust, neutral.
Reply with one JSON object and nothing else. It must have three fields:
"emotion" (one of the labels above), "confidence" (a number between 0 and 1),
and "reasoning" (one short sentence).`

const classifierUserPrompt = "Message:\n{text}"
