package chat

import "time"

// Chat types.
const (
	TypePersonalAI = "personal-ai"
	TypeGeneral    = "general"
)

// Chat groups messages of a single user.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Deleted   bool      `json:"-"`
}

// ValidType reports whether t is a known chat type.
func ValidType(t string) bool {
	return t == TypePersonalAI || t == TypeGeneral
}
