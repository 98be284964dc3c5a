package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/heartlog/backend/internal/analysis/emotion"
	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
	"github.com/zhouzirui/heartlog/backend/internal/model/settings"
)

// 置信度低于该值的情绪不写入提示词。
const guidanceMinConfidence = 0.55

// BuildSystemPrompt 根据会话类型选择提示词，并在识别出明确情绪时附加语气建议。
func BuildSystemPrompt(cs settings.ChatSettings, chatType string, mood *emotion.Result) string {
	base := strings.TrimSpace(cs.PromptFor(chatType))
	if base == "" {
		base = strings.TrimSpace(settings.Defaults().PromptFor(chatType))
	}

	if mood == nil || mood.Emotion == emotion.Neutral || mood.Confidence < guidanceMinConfidence {
		return base
	}
	desc := describeEmotion(mood.Emotion)
	if desc == "" {
		return base
	}

	var builder strings.Builder
	builder.WriteString(base)
	builder.WriteString("\n\nEmotional context of the user's latest message: ")
	builder.WriteString(desc)
	builder.WriteString(fmt.Sprintf(" (detected %s, confidence %.2f).", mood.Emotion, mood.Confidence))
	if chatType == chat.TypePersonalAI {
		builder.WriteString("\nAcknowledge the feeling before anything else, and do not rush to fix it.")
	}
	return builder.String()
}

func describeEmotion(label emotion.Label) string {
	switch label {
	case emotion.Joy:
		return "they sound happy; share the good moment and help them notice what made it possible."
	case emotion.Sadness:
		return "they sound low; be gentle, validate the feeling and keep the reply short."
	case emotion.Anger:
		return "they sound frustrated; stay calm and steady, and help them name what is underneath."
	case emotion.Fear:
		return "they sound anxious; be reassuring and concrete, and offer one small next step."
	case emotion.Surprise:
		return "they sound surprised; be curious with them about what changed."
	case emotion.Disgust:
		return "they sound repelled by something; respect the boundary and avoid judging."
	default:
		return ""
	}
}
