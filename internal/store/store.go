// Package store defines the persistence boundary used by the services.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
	"github.com/zhouzirui/heartlog/backend/internal/model/settings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyFavorited = errors.New("message already favorited")
)

// MessageFilter narrows ListUserMessages. Zero values mean "no constraint".
type MessageFilter struct {
	UserID           string
	ChatID           string
	Since            time.Time
	Until            time.Time // exclusive
	IncludeAssistant bool
	// ContainsAny keeps messages whose content contains at least one of the
	// terms, case-insensitively.
	ContainsAny []string
}

type ChatStore interface {
	CreateChat(ctx context.Context, c chat.Chat) error
	GetChat(ctx context.Context, id string) (chat.Chat, error)
	ListChats(ctx context.Context, userID string) ([]chat.Chat, error)
	SoftDeleteChat(ctx context.Context, id string) error
	CountChats(ctx context.Context, userID string) (int, error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, m chat.Message) error
	GetMessage(ctx context.Context, id string) (chat.Message, error)
	ListMessages(ctx context.Context, chatID string) ([]chat.Message, error)
	ListUserMessages(ctx context.Context, filter MessageFilter) ([]chat.Message, error)
	UpdateMessageEmotion(ctx context.Context, id, label string, confidence float64) error
	SoftDeleteMessage(ctx context.Context, id string) error
	CountMessages(ctx context.Context, userID string) (int, error)
	CountUserMessagesSince(ctx context.Context, userID, chatType string, since time.Time) (int, error)
	ListUnclassified(ctx context.Context, limit int) ([]chat.Message, error)
}

type FavoriteStore interface {
	// AddFavorite returns ErrAlreadyFavorited when the pair already exists.
	AddFavorite(ctx context.Context, f chat.Favorite) error
	RemoveFavorite(ctx context.Context, userID, messageID string) error
	ListFavoriteMessages(ctx context.Context, userID string) ([]chat.FavoriteMessage, error)
	FavoriteMessageIDs(ctx context.Context, userID, chatID string) (map[string]bool, error)
	CountFavorites(ctx context.Context, userID string) (int, error)
}

type MediaStore interface {
	CreateMedia(ctx context.Context, m chat.Media) error
	ListMedia(ctx context.Context, userID string) ([]chat.Media, error)
	CountMedia(ctx context.Context, userID string) (int, error)
}

type SettingsStore interface {
	// GetSettings returns ErrNotFound until settings are saved once.
	GetSettings(ctx context.Context) (settings.ChatSettings, error)
	SaveSettings(ctx context.Context, s settings.ChatSettings) error
}

// Repository aggregates every store the service needs.
type Repository interface {
	ChatStore
	MessageStore
	FavoriteStore
	MediaStore
	SettingsStore
	Close()
}
