package chat

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn. Emotion fields stay nil until the message is classified.
type Message struct {
	ID                string    `json:"id"`
	ChatID            string    `json:"chatId"`
	Role              string    `json:"role"`
	Content           string    `json:"content"`
	Emotion           *string   `json:"emotion,omitempty"`
	EmotionConfidence *float64  `json:"emotionConfidence,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	Deleted           bool      `json:"-"`
}

// IsAssistant reports whether the message was authored by the AI.
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// EmotionLabel returns the emotion label or "" when unclassified.
func (m Message) EmotionLabel() string {
	if m.Emotion == nil {
		return ""
	}
	return *m.Emotion
}

// Confidence returns the emotion confidence or 0 when unclassified.
func (m Message) Confidence() float64 {
	if m.EmotionConfidence == nil {
		return 0
	}
	return *m.EmotionConfidence
}

// WithEmotion returns a copy of m carrying the given emotion.
func (m Message) WithEmotion(label string, confidence float64) Message {
	m.Emotion = &label
	m.EmotionConfidence = &confidence
	return m
}
