package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
	"github.com/zhouzirui/heartlog/backend/internal/model/settings"
	"github.com/zhouzirui/heartlog/backend/internal/store"
)

var _ store.Repository = (*Store)(nil)

const messageColumns = `m.id, m.chat_id, m.role, m.content, m.emotion, m.emotion_confidence, m.created_at`

// visibleMessages joins messages to their chat and hides soft-deleted rows.
const visibleMessages = `messages m JOIN chats c ON c.id = m.chat_id AND NOT c.deleted WHERE NOT m.deleted`

// favoriteMessages is visibleMessages narrowed to the favorites of user $1.
const favoriteMessages = `favorites f
		JOIN messages m ON m.id = f.message_id AND NOT m.deleted
		JOIN chats c ON c.id = m.chat_id AND NOT c.deleted
		WHERE f.user_id = $1`

const (
	listFavoriteMessagesQuery = `
		SELECT ` + messageColumns + `, c.id, c.user_id, c.type, c.name, c.created_at, f.created_at
		FROM ` + favoriteMessages + `
		ORDER BY m.created_at DESC, m.id DESC`
	favoriteMessageIDsQuery = `SELECT m.id FROM ` + favoriteMessages + ` AND ($2 = '' OR m.chat_id = $2)`
	countFavoritesQuery     = `SELECT count(*) FROM ` + favoriteMessages
)

func (s *Store) CreateChat(ctx context.Context, c chat.Chat) error {
	const q = `INSERT INTO chats (id, user_id, type, name, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.Exec(ctx, q, c.ID, c.UserID, c.Type, c.Name, c.CreatedAt)
	return err
}

func (s *Store) GetChat(ctx context.Context, id string) (chat.Chat, error) {
	const q = `SELECT id, user_id, type, name, created_at FROM chats WHERE id = $1 AND NOT deleted`
	var c chat.Chat
	err := s.db.QueryRow(ctx, q, id).Scan(&c.ID, &c.UserID, &c.Type, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Chat{}, store.ErrNotFound
	}
	return c, err
}

func (s *Store) ListChats(ctx context.Context, userID string) ([]chat.Chat, error) {
	const q = `
		SELECT id, user_id, type, name, created_at
		FROM chats
		WHERE user_id = $1 AND NOT deleted
		ORDER BY created_at DESC, id DESC`
	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]chat.Chat, 0)
	for rows.Next() {
		var c chat.Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Type, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) SoftDeleteChat(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE chats SET deleted = true WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountChats(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM chats WHERE user_id = $1 AND NOT deleted`, userID).Scan(&n)
	return n, err
}

func (s *Store) CreateMessage(ctx context.Context, m chat.Message) error {
	const q = `
		INSERT INTO messages (id, chat_id, role, content, emotion, emotion_confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.Exec(ctx, q, m.ID, m.ChatID, m.Role, m.Content, m.Emotion, m.EmotionConfidence, m.CreatedAt)
	if pgErrorCode(err) == codeForeignKeyViolation {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) GetMessage(ctx context.Context, id string) (chat.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM ` + visibleMessages + ` AND m.id = $1`
	m, err := scanMessage(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Message{}, store.ErrNotFound
	}
	return m, err
}

func (s *Store) ListMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM ` + visibleMessages + ` AND m.chat_id = $1 ORDER BY m.created_at, m.id`
	return s.queryMessages(ctx, q, chatID)
}

func (s *Store) ListUserMessages(ctx context.Context, f store.MessageFilter) ([]chat.Message, error) {
	var sb strings.Builder
	args := []any{f.UserID}
	sb.WriteString(`SELECT ` + messageColumns + ` FROM ` + visibleMessages + ` AND c.user_id = $1`)

	if f.ChatID != "" {
		args = append(args, f.ChatID)
		fmt.Fprintf(&sb, " AND m.chat_id = $%d", len(args))
	}
	if !f.IncludeAssistant {
		args = append(args, chat.RoleAssistant)
		fmt.Fprintf(&sb, " AND m.role <> $%d", len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		fmt.Fprintf(&sb, " AND m.created_at >= $%d", len(args))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		fmt.Fprintf(&sb, " AND m.created_at < $%d", len(args))
	}
	if len(f.ContainsAny) > 0 {
		patterns := make([]string, 0, len(f.ContainsAny))
		for _, term := range f.ContainsAny {
			patterns = append(patterns, likePattern(term))
		}
		args = append(args, patterns)
		fmt.Fprintf(&sb, " AND m.content ILIKE ANY($%d)", len(args))
	}
	sb.WriteString(" ORDER BY m.created_at, m.id")

	return s.queryMessages(ctx, sb.String(), args...)
}

func (s *Store) UpdateMessageEmotion(ctx context.Context, id, label string, confidence float64) error {
	const q = `UPDATE messages SET emotion = $2, emotion_confidence = $3 WHERE id = $1 AND NOT deleted`
	tag, err := s.db.Exec(ctx, q, id, label, confidence)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SoftDeleteMessage(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE messages SET deleted = true WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountMessages(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM `+visibleMessages+` AND c.user_id = $1`, userID).Scan(&n)
	return n, err
}

func (s *Store) CountUserMessagesSince(ctx context.Context, userID, chatType string, since time.Time) (int, error) {
	const q = `
		SELECT count(*)
		FROM messages m JOIN chats c ON c.id = m.chat_id
		WHERE c.user_id = $1 AND c.type = $2 AND m.role = $3 AND m.created_at >= $4`
	var n int
	err := s.db.QueryRow(ctx, q, userID, chatType, chat.RoleUser, since).Scan(&n)
	return n, err
}

func (s *Store) ListUnclassified(ctx context.Context, limit int) ([]chat.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM ` + visibleMessages + ` AND m.emotion IS NULL ORDER BY m.created_at, m.id LIMIT $1`
	return s.queryMessages(ctx, q, limit)
}

func (s *Store) AddFavorite(ctx context.Context, f chat.Favorite) error {
	const q = `
		INSERT INTO favorites (user_id, message_id, created_at)
		SELECT $1, m.id, $3
		FROM messages m JOIN chats c ON c.id = m.chat_id
		WHERE m.id = $2 AND NOT m.deleted AND NOT c.deleted`
	tag, err := s.db.Exec(ctx, q, f.UserID, f.MessageID, f.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return store.ErrAlreadyFavorited
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, messageID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND message_id = $2`, userID, messageID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListFavoriteMessages(ctx context.Context, userID string) ([]chat.FavoriteMessage, error) {
	rows, err := s.db.Query(ctx, listFavoriteMessagesQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]chat.FavoriteMessage, 0)
	for rows.Next() {
		var fm chat.FavoriteMessage
		m := &fm.Message
		c := &fm.Chat
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.Emotion, &m.EmotionConfidence, &m.CreatedAt,
			&c.ID, &c.UserID, &c.Type, &c.Name, &c.CreatedAt, &fm.FavoritedAt); err != nil {
			return nil, err
		}
		out = append(out, fm)
	}
	return out, rows.Err()
}

func (s *Store) FavoriteMessageIDs(ctx context.Context, userID, chatID string) (map[string]bool, error) {
	rows, err := s.db.Query(ctx, favoriteMessageIDsQuery, userID, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (s *Store) CountFavorites(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, countFavoritesQuery, userID).Scan(&n)
	return n, err
}

func (s *Store) CreateMedia(ctx context.Context, m chat.Media) error {
	const q = `
		INSERT INTO media (id, user_id, chat_id, message_id, url, kind, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)`
	_, err := s.db.Exec(ctx, q, m.ID, m.UserID, m.ChatID, m.MessageID, m.URL, m.Kind, m.CreatedAt)
	return err
}

func (s *Store) ListMedia(ctx context.Context, userID string) ([]chat.Media, error) {
	const q = `
		SELECT id, user_id, COALESCE(chat_id, ''), COALESCE(message_id, ''), url, kind, created_at
		FROM media WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]chat.Media, 0)
	for rows.Next() {
		var m chat.Media
		if err := rows.Scan(&m.ID, &m.UserID, &m.ChatID, &m.MessageID, &m.URL, &m.Kind, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CountMedia(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM media WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (s *Store) GetSettings(ctx context.Context) (settings.ChatSettings, error) {
	const q = `
		SELECT daily_free_messages, daily_free_personal_ai_messages, personal_ai_prompt, general_prompt, updated_at
		FROM chat_settings WHERE id = 1`
	var cs settings.ChatSettings
	err := s.db.QueryRow(ctx, q).Scan(&cs.DailyFreeMessages, &cs.DailyFreePersonalAIMessages,
		&cs.PersonalAIPrompt, &cs.GeneralPrompt, &cs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return settings.ChatSettings{}, store.ErrNotFound
	}
	return cs, err
}

func (s *Store) SaveSettings(ctx context.Context, cs settings.ChatSettings) error {
	const q = `
		INSERT INTO chat_settings (id, daily_free_messages, daily_free_personal_ai_messages, personal_ai_prompt, general_prompt, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			daily_free_messages = EXCLUDED.daily_free_messages,
			daily_free_personal_ai_messages = EXCLUDED.daily_free_personal_ai_messages,
			personal_ai_prompt = EXCLUDED.personal_ai_prompt,
			general_prompt = EXCLUDED.general_prompt,
			updated_at = EXCLUDED.updated_at`
	_, err := s.db.Exec(ctx, q, cs.DailyFreeMessages, cs.DailyFreePersonalAIMessages, cs.PersonalAIPrompt, cs.GeneralPrompt, cs.UpdatedAt)
	return err
}

func (s *Store) queryMessages(ctx context.Context, q string, args ...any) ([]chat.Message, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]chat.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(row pgx.Row) (chat.Message, error) {
	var m chat.Message
	err := row.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.Emotion, &m.EmotionConfidence, &m.CreatedAt)
	return m, err
}
