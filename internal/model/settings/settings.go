package settings

import (
	"time"

	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
)

// ChatSettings 保存免费额度与提示词配置，全局唯一。
type ChatSettings struct {
	DailyFreeMessages           int       `json:"dailyFreeMessages"`
	DailyFreePersonalAIMessages int       `json:"dailyFreePersonalAIMessages"`
	PersonalAIPrompt            string    `json:"personalAIPrompt"`
	GeneralPrompt               string    `json:"generalPrompt"`
	UpdatedAt                   time.Time `json:"updatedAt"`
}

const (
	defaultPersonalAIPrompt = "You are a warm, attentive journaling companion. Listen first, reflect the user's feelings back in your own words, and ask one gentle question that helps them go deeper. Never diagnose. Keep replies under 150 words."
	defaultGeneralPrompt    = "You are a helpful, concise assistant. Answer clearly and kindly, and keep replies focused on what the user asked."
)

// Defaults returns the settings used before anyone edits them.
func Defaults() ChatSettings {
	return ChatSettings{
		DailyFreeMessages:           20,
		DailyFreePersonalAIMessages: 10,
		PersonalAIPrompt:            defaultPersonalAIPrompt,
		GeneralPrompt:               defaultGeneralPrompt,
	}
}

// DailyLimitFor 返回指定会话类型的每日免费消息数，0 表示不限。
func (s ChatSettings) DailyLimitFor(chatType string) int {
	if chatType == chat.TypePersonalAI {
		return s.DailyFreePersonalAIMessages
	}
	return s.DailyFreeMessages
}

// PromptFor 返回指定会话类型的系统提示词。
func (s ChatSettings) PromptFor(chatType string) string {
	if chatType == chat.TypePersonalAI {
		return s.PersonalAIPrompt
	}
	return s.GeneralPrompt
}
