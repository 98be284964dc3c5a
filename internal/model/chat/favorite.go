package chat

import "time"

// Favorite links a user to a message they marked as meaningful.
// At most one exists per (UserID, MessageID).
type Favorite struct {
	UserID    string    `json:"userId"`
	MessageID string    `json:"messageId"`
	CreatedAt time.Time `json:"createdAt"`
}

// FavoriteMessage is a favorited message joined with its chat.
type FavoriteMessage struct {
	Message     Message   `json:"message"`
	Chat        Chat      `json:"chat"`
	FavoritedAt time.Time `json:"favoritedAt"`
}

// Media is metadata of an item a user attached to their journal.
type Media struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ChatID    string    `json:"chatId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	URL       string    `json:"url"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}
