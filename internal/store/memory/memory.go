// Package memory implements store.Repository in process memory. It backs
// local development and tests when no DATABASE_URL is configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
	"github.com/zhouzirui/heartlog/backend/internal/model/settings"
	"github.com/zhouzirui/heartlog/backend/internal/store"
)

type favoriteKey struct {
	userID    string
	messageID string
}

// Store keeps chats, messages and favorites in maps guarded by one RWMutex.
type Store struct {
	mu        sync.RWMutex
	chats     map[string]chat.Chat
	messages  map[string]chat.Message
	order     []string // message ids in insertion order
	favorites map[favoriteKey]chat.Favorite
	media     []chat.Media
	settings  *settings.ChatSettings
}

var _ store.Repository = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		chats:     make(map[string]chat.Chat),
		messages:  make(map[string]chat.Message),
		order:     make([]string, 0, 64),
		favorites: make(map[favoriteKey]chat.Favorite),
	}
}

// Close is a no-op.
func (s *Store) Close() {}

func (s *Store) CreateChat(_ context.Context, c chat.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[c.ID] = c
	return nil
}

func (s *Store) GetChat(_ context.Context, id string) (chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	if !ok || c.Deleted {
		return chat.Chat{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListChats(_ context.Context, userID string) ([]chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Chat, 0)
	for _, c := range s.chats {
		if c.UserID == userID && !c.Deleted {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SoftDeleteChat(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok || c.Deleted {
		return store.ErrNotFound
	}
	c.Deleted = true
	s.chats[id] = c
	return nil
}

func (s *Store) CountChats(ctx context.Context, userID string) (int, error) {
	chats, err := s.ListChats(ctx, userID)
	return len(chats), err
}

func (s *Store) CreateMessage(_ context.Context, m chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[m.ChatID]; !ok || c.Deleted {
		return store.ErrNotFound
	}
	s.messages[m.ID] = m
	s.order = append(s.order, m.ID)
	return nil
}

func (s *Store) GetMessage(_ context.Context, id string) (chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.visibleMessage(id)
	if !ok {
		return chat.Message{}, store.ErrNotFound
	}
	return m, nil
}

func (s *Store) ListMessages(_ context.Context, chatID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Message, 0)
	for _, id := range s.order {
		m, ok := s.visibleMessage(id)
		if ok && m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sortOldestFirst(out)
	return out, nil
}

func (s *Store) ListUserMessages(_ context.Context, f store.MessageFilter) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := make([]string, 0, len(f.ContainsAny))
	for _, term := range f.ContainsAny {
		terms = append(terms, strings.ToLower(term))
	}

	out := make([]chat.Message, 0)
	for _, id := range s.order {
		m, ok := s.visibleMessage(id)
		if !ok || s.chats[m.ChatID].UserID != f.UserID {
			continue
		}
		if f.ChatID != "" && m.ChatID != f.ChatID {
			continue
		}
		if !f.IncludeAssistant && m.IsAssistant() {
			continue
		}
		if !f.Since.IsZero() && m.CreatedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !m.CreatedAt.Before(f.Until) {
			continue
		}
		if len(terms) > 0 && !containsAny(strings.ToLower(m.Content), terms) {
			continue
		}
		out = append(out, m)
	}
	sortOldestFirst(out)
	return out, nil
}

func (s *Store) UpdateMessageEmotion(_ context.Context, id, label string, confidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.Deleted {
		return store.ErrNotFound
	}
	s.messages[id] = m.WithEmotion(label, confidence)
	return nil
}

func (s *Store) SoftDeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.Deleted {
		return store.ErrNotFound
	}
	m.Deleted = true
	s.messages[id] = m
	return nil
}

func (s *Store) CountMessages(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for id := range s.messages {
		if m, ok := s.visibleMessage(id); ok && s.chats[m.ChatID].UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountUserMessagesSince(_ context.Context, userID, chatType string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.messages {
		c := s.chats[m.ChatID]
		// Deleted messages still count against the daily quota.
		if c.UserID != userID || c.Type != chatType || m.Role != chat.RoleUser {
			continue
		}
		if !m.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListUnclassified(_ context.Context, limit int) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Message, 0)
	for _, id := range s.order {
		m, ok := s.visibleMessage(id)
		if !ok || m.Emotion != nil {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) AddFavorite(_ context.Context, f chat.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visibleMessage(f.MessageID); !ok {
		return store.ErrNotFound
	}
	key := favoriteKey{userID: f.UserID, messageID: f.MessageID}
	if _, exists := s.favorites[key]; exists {
		return store.ErrAlreadyFavorited
	}
	s.favorites[key] = f
	return nil
}

func (s *Store) RemoveFavorite(_ context.Context, userID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := favoriteKey{userID: userID, messageID: messageID}
	if _, exists := s.favorites[key]; !exists {
		return store.ErrNotFound
	}
	delete(s.favorites, key)
	return nil
}

func (s *Store) ListFavoriteMessages(_ context.Context, userID string) ([]chat.FavoriteMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.FavoriteMessage, 0)
	for key, fav := range s.favorites {
		if key.userID != userID {
			continue
		}
		m, ok := s.visibleMessage(key.messageID)
		if !ok {
			continue
		}
		out = append(out, chat.FavoriteMessage{Message: m, Chat: s.chats[m.ChatID], FavoritedAt: fav.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Message.CreatedAt.After(out[j].Message.CreatedAt)
	})
	return out, nil
}

func (s *Store) FavoriteMessageIDs(_ context.Context, userID, chatID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool)
	for key := range s.favorites {
		if key.userID != userID {
			continue
		}
		if m, ok := s.visibleMessage(key.messageID); ok && (chatID == "" || m.ChatID == chatID) {
			out[key.messageID] = true
		}
	}
	return out, nil
}

func (s *Store) CountFavorites(ctx context.Context, userID string) (int, error) {
	ids, err := s.FavoriteMessageIDs(ctx, userID, "")
	return len(ids), err
}

func (s *Store) CreateMedia(_ context.Context, m chat.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media = append(s.media, m)
	return nil
}

func (s *Store) ListMedia(_ context.Context, userID string) ([]chat.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Media, 0)
	for i := len(s.media) - 1; i >= 0; i-- {
		if s.media[i].UserID == userID {
			out = append(out, s.media[i])
		}
	}
	return out, nil
}

func (s *Store) CountMedia(ctx context.Context, userID string) (int, error) {
	items, err := s.ListMedia(ctx, userID)
	return len(items), err
}

func (s *Store) GetSettings(_ context.Context) (settings.ChatSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return settings.ChatSettings{}, store.ErrNotFound
	}
	return *s.settings, nil
}

func (s *Store) SaveSettings(_ context.Context, cs settings.ChatSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &cs
	return nil
}

// visibleMessage must be called with s.mu held.
func (s *Store) visibleMessage(id string) (chat.Message, bool) {
	m, ok := s.messages[id]
	if !ok || m.Deleted {
		return chat.Message{}, false
	}
	if c, ok := s.chats[m.ChatID]; !ok || c.Deleted {
		return chat.Message{}, false
	}
	return m, true
}

func sortOldestFirst(messages []chat.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}

func containsAny(content string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(content, term) {
			return true
		}
	}
	return false
}
