package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/heartlog/backend/internal/logger"
	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
	emotionservice "github.com/zhouzirui/heartlog/backend/internal/service/emotion"
	"github.com/zhouzirui/heartlog/backend/internal/store"
)

// ErrValidation wraps every input error so handlers can map them to 400.
var ErrValidation = errors.New("validation failed")

var (
	ErrChatTypeInvalid   = fmt.Errorf("%w: chat type must be personal-ai or general", ErrValidation)
	ErrContentRequired   = fmt.Errorf("%w: content is required", ErrValidation)
	ErrContentTooLong    = fmt.Errorf("%w: content is too long", ErrValidation)
	ErrRoleInvalid       = fmt.Errorf("%w: role must be user or assistant", ErrValidation)
	ErrEmotionInvalid    = fmt.Errorf("%w: emotion must be a non-empty label with confidence between 0 and 1", ErrValidation)
	ErrForbidden         = errors.New("resource belongs to another user")
	ErrDailyLimitReached = errors.New("daily free message limit reached")
)

const maxContentRunes = 8000

// LimitSource 提供每日免费额度，通常是 settings.Service。
type LimitSource interface {
	DailyLimit(ctx context.Context, chatType string) (int, error)
}

// Classifier 接收待识别情绪的消息，通常是 emotion.Worker。
type Classifier interface {
	Enqueue(job emotionservice.Job) bool
}

// NewMessage 是保存消息的输入。Emotion 由客户端提供时跳过自动识别。
type NewMessage struct {
	Role              string
	Content           string
	Emotion           *string
	EmotionConfidence *float64
}

// NewMedia 是登记媒体元数据的输入。
type NewMedia struct {
	URL       string `json:"url" validate:"required,url,max=2048"`
	Kind      string `json:"kind" validate:"required,oneof=image audio video document"`
	ChatID    string `json:"chatId" validate:"omitempty,max=64"`
	MessageID string `json:"messageId" validate:"omitempty,max=64"`
}

// TranscriptMessage 是带收藏标记的消息。
type TranscriptMessage struct {
	chat.Message
	IsFavorite bool `json:"isFavorite"`
}

// Service encapsulates chats, messages, favorites and media of a user.
type Service struct {
	repo       store.Repository
	limits     LimitSource
	classifier Classifier
	validate   *validator.Validate
	now        func() time.Time
	log        zerolog.Logger
	quota      quotaLocks
}

// NewService wires the chat service. limits and classifier may be nil.
func NewService(repo store.Repository, limits LimitSource, classifier Classifier) *Service {
	return &Service{
		repo:       repo,
		limits:     limits,
		classifier: classifier,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		now:        func() time.Time { return time.Now().UTC() },
		log:        logger.Component("chat"),
	}
}

// CreateChat provisions a chat of the given type. An empty name gets a default per type.
func (s *Service) CreateChat(ctx context.Context, userID, chatType, name string) (chat.Chat, error) {
	chatType = strings.TrimSpace(chatType)
	if chatType == "" {
		chatType = chat.TypePersonalAI
	}
	if !chat.ValidType(chatType) {
		return chat.Chat{}, ErrChatTypeInvalid
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultChatName(chatType)
	}
	if utf8.RuneCountInString(name) > 120 {
		return chat.Chat{}, fmt.Errorf("%w: name is too long", ErrValidation)
	}

	c := chat.Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      chatType,
		Name:      name,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateChat(ctx, c); err != nil {
		return chat.Chat{}, fmt.Errorf("create chat: %w", err)
	}
	return c, nil
}

// ListChats returns the user's visible chats, newest first.
func (s *Service) ListChats(ctx context.Context, userID string) ([]chat.Chat, error) {
	return s.repo.ListChats(ctx, userID)
}

// GetChat returns a chat owned by userID.
func (s *Service) GetChat(ctx context.Context, userID, chatID string) (chat.Chat, error) {
	c, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		return chat.Chat{}, err
	}
	if c.UserID != userID {
		return chat.Chat{}, ErrForbidden
	}
	return c, nil
}

// DeleteChat soft-deletes a chat; its messages and favorites disappear with it.
func (s *Service) DeleteChat(ctx context.Context, userID, chatID string) error {
	if _, err := s.GetChat(ctx, userID, chatID); err != nil {
		return err
	}
	return s.repo.SoftDeleteChat(ctx, chatID)
}

// SaveMessage stores a message in one of the user's chats.
func (s *Service) SaveMessage(ctx context.Context, userID, chatID string, in NewMessage) (chat.Message, error) {
	c, err := s.GetChat(ctx, userID, chatID)
	if err != nil {
		return chat.Message{}, err
	}

	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = chat.RoleUser
	}
	if role != chat.RoleUser && role != chat.RoleAssistant {
		return chat.Message{}, ErrRoleInvalid
	}

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return chat.Message{}, ErrContentRequired
	}
	if utf8.RuneCountInString(content) > maxContentRunes {
		return chat.Message{}, ErrContentTooLong
	}

	if role == chat.RoleUser {
		unlock := s.quota.lock(userID + "/" + c.Type)
		defer unlock()
		if err := s.checkDailyLimit(ctx, userID, c.Type); err != nil {
			return chat.Message{}, err
		}
	}

	m := chat.Message{
		ID:        uuid.NewString(),
		ChatID:    c.ID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}

	provided := in.Emotion != nil
	if provided {
		label, confidence, err := normalizeEmotion(in.Emotion, in.EmotionConfidence)
		if err != nil {
			return chat.Message{}, err
		}
		m = m.WithEmotion(label, confidence)
	}

	if err := s.repo.CreateMessage(ctx, m); err != nil {
		return chat.Message{}, fmt.Errorf("save message: %w", err)
	}

	if !provided && s.classifier != nil {
		s.classifier.Enqueue(emotionservice.JobFromMessage(userID, m))
	}
	return m, nil
}

// LoadTranscript returns the chat's messages oldest first with favorite flags.
func (s *Service) LoadTranscript(ctx context.Context, userID, chatID string) ([]TranscriptMessage, error) {
	if _, err := s.GetChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	favorites, err := s.repo.FavoriteMessageIDs(ctx, userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}

	out := make([]TranscriptMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, TranscriptMessage{Message: m, IsFavorite: favorites[m.ID]})
	}
	return out, nil
}

// History returns the raw messages of a chat, oldest first.
func (s *Service) History(ctx context.Context, userID, chatID string) ([]chat.Message, error) {
	if _, err := s.GetChat(ctx, userID, chatID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, chatID)
}

// DeleteMessage soft-deletes one of the user's messages.
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID string) error {
	if _, err := s.ownedMessage(ctx, userID, messageID); err != nil {
		return err
	}
	return s.repo.SoftDeleteMessage(ctx, messageID)
}

// Favorite marks a message. A second call returns store.ErrAlreadyFavorited.
func (s *Service) Favorite(ctx context.Context, userID, messageID string) error {
	if _, err := s.ownedMessage(ctx, userID, messageID); err != nil {
		return err
	}
	return s.repo.AddFavorite(ctx, chat.Favorite{UserID: userID, MessageID: messageID, CreatedAt: s.now()})
}

// Unfavorite removes the mark, or returns store.ErrNotFound when there is none.
func (s *Service) Unfavorite(ctx context.Context, userID, messageID string) error {
	if _, err := s.ownedMessage(ctx, userID, messageID); err != nil {
		return err
	}
	return s.repo.RemoveFavorite(ctx, userID, messageID)
}

// AddMedia records media metadata. Referenced chats and messages must belong to the user.
func (s *Service) AddMedia(ctx context.Context, userID string, in NewMedia) (chat.Media, error) {
	if err := s.validate.Struct(in); err != nil {
		return chat.Media{}, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if in.ChatID != "" {
		if _, err := s.GetChat(ctx, userID, in.ChatID); err != nil {
			return chat.Media{}, err
		}
	}
	if in.MessageID != "" {
		m, err := s.ownedMessage(ctx, userID, in.MessageID)
		if err != nil {
			return chat.Media{}, err
		}
		if in.ChatID == "" {
			in.ChatID = m.ChatID
		}
	}

	media := chat.Media{
		ID:        uuid.NewString(),
		UserID:    userID,
		ChatID:    in.ChatID,
		MessageID: in.MessageID,
		URL:       in.URL,
		Kind:      in.Kind,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateMedia(ctx, media); err != nil {
		return chat.Media{}, fmt.Errorf("save media: %w", err)
	}
	return media, nil
}

// ListMedia returns the user's media, newest first.
func (s *Service) ListMedia(ctx context.Context, userID string) ([]chat.Media, error) {
	return s.repo.ListMedia(ctx, userID)
}

func (s *Service) ownedMessage(ctx context.Context, userID, messageID string) (chat.Message, error) {
	m, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return chat.Message{}, err
	}
	if _, err := s.GetChat(ctx, userID, m.ChatID); err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func (s *Service) checkDailyLimit(ctx context.Context, userID, chatType string) error {
	if s.limits == nil {
		return nil
	}
	limit, err := s.limits.DailyLimit(ctx, chatType)
	if err != nil {
		return fmt.Errorf("load daily limit: %w", err)
	}
	if limit <= 0 {
		return nil
	}

	y, mo, d := s.now().Date()
	since := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	used, err := s.repo.CountUserMessagesSince(ctx, userID, chatType, since)
	if err != nil {
		return fmt.Errorf("count today's messages: %w", err)
	}
	if used >= limit {
		s.log.Info().Str("user_id", userID).Str("chat_type", chatType).Int("limit", limit).Msg("daily free limit reached")
		return ErrDailyLimitReached
	}
	return nil
}

func normalizeEmotion(label *string, confidence *float64) (string, float64, error) {
	normalized := strings.ToLower(strings.TrimSpace(*label))
	if normalized == "" || utf8.RuneCountInString(normalized) > 32 {
		return "", 0, ErrEmotionInvalid
	}
	value := 1.0
	if confidence != nil {
		value = *confidence
	}
	if math.IsNaN(value) || value < 0 || value > 1 {
		return "", 0, ErrEmotionInvalid
	}
	return normalized, value, nil
}

func defaultChatName(chatType string) string {
	if chatType == chat.TypePersonalAI {
		return "My journal"
	}
	return "New chat"
}
