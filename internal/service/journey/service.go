package journey

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/heartlog/backend/internal/analysis/journey"
	"github.com/zhouzirui/heartlog/backend/internal/logger"
	"github.com/zhouzirui/heartlog/backend/internal/metrics"
	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
	"github.com/zhouzirui/heartlog/backend/internal/store"
)

// ErrUnknownCategory 表示请求了不存在的 journey 分类。
var ErrUnknownCategory = errors.New("unknown journey category")

// Reader 是 journey 聚合所需的只读存储能力。
type Reader interface {
	ListChats(ctx context.Context, userID string) ([]chat.Chat, error)
	CountMessages(ctx context.Context, userID string) (int, error)
	ListFavoriteMessages(ctx context.Context, userID string) ([]chat.FavoriteMessage, error)
	CountMedia(ctx context.Context, userID string) (int, error)
	ListUserMessages(ctx context.Context, filter store.MessageFilter) ([]chat.Message, error)
}

// Config 控制分页与预览数量。
type Config struct {
	DefaultLimit int
	MaxLimit     int
	PreviewLimit int
}

// Overview 是 GET /journey 的数据部分。
type Overview struct {
	Statistics      journey.Statistics `json:"statistics"`
	JourneyOverview *journey.Overview  `json:"journeyOverview,omitempty"`
}

// Page 是 GET /journey/messages 的数据部分。
type Page struct {
	Category   journey.Category `json:"category"`
	Items      []journey.Item   `json:"items"`
	NextCursor string           `json:"nextCursor"`
}

// Service 并发读取用户数据并计算 journey。
type Service struct {
	reader Reader
	cfg    Config
	log    zerolog.Logger
}

func NewService(reader Reader, cfg Config) *Service {
	if cfg.MaxLimit < 1 {
		cfg.MaxLimit = 100
	}
	if cfg.DefaultLimit < 1 || cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = min(20, cfg.MaxLimit)
	}
	if cfg.PreviewLimit < 1 {
		cfg.PreviewLimit = 3
	}
	return &Service{reader: reader, cfg: cfg, log: logger.Component("journey")}
}

// Overview 返回统计数据；withPreview 时附带每个分类的前几条。
// 任一读取失败时返回全零统计，不向调用方报错。
func (s *Service) Overview(ctx context.Context, userID string, withPreview bool) Overview {
	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		s.degraded(userID, err)
		out := Overview{Statistics: journey.Statistics{}}
		if withPreview {
			empty := journey.EmptyOverview()
			out.JourneyOverview = &empty
		}
		return out
	}

	out := Overview{Statistics: journey.Build(snap)}
	if withPreview {
		preview := journey.Preview(snap, s.cfg.PreviewLimit)
		out.JourneyOverview = &preview
	}
	return out
}

// Messages 返回某个分类的一页条目，按消息时间倒序。读取失败时返回空列表。
func (s *Service) Messages(ctx context.Context, userID, category, cursor string, limit int) (Page, error) {
	c, ok := journey.ParseCategory(category)
	if !ok {
		return Page{}, ErrUnknownCategory
	}

	var items []journey.Item
	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		s.degraded(userID, err)
		items = []journey.Item{}
	} else {
		items = journey.Categorize(snap, c)
	}

	page, next, err := journey.Paginate(items, cursor, s.ClampLimit(limit))
	if err != nil {
		return Page{}, err
	}
	return Page{Category: c, Items: page, NextCursor: next}, nil
}

// ClampLimit 将 limit 限制在 [1, MaxLimit]，非正数使用默认值。
func (s *Service) ClampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	return min(limit, s.cfg.MaxLimit)
}

// snapshot 并发发起五个独立读取，彼此之间没有事务保证。
func (s *Service) snapshot(ctx context.Context, userID string) (journey.Snapshot, error) {
	var snap journey.Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		chats, err := s.reader.ListChats(gctx, userID)
		snap.Chats = chats
		return err
	})
	g.Go(func() error {
		n, err := s.reader.CountMessages(gctx, userID)
		snap.MessageCount = n
		return err
	})
	g.Go(func() error {
		favs, err := s.reader.ListFavoriteMessages(gctx, userID)
		snap.Favorites = favs
		return err
	})
	g.Go(func() error {
		n, err := s.reader.CountMedia(gctx, userID)
		snap.MediaCount = n
		return err
	})
	g.Go(func() error {
		msgs, err := s.reader.ListUserMessages(gctx, store.MessageFilter{
			UserID:      userID,
			ContainsAny: journey.GoalKeywords,
		})
		snap.GoalCandidates = msgs
		return err
	})

	if err := g.Wait(); err != nil {
		return journey.Snapshot{}, err
	}
	return snap, nil
}

func (s *Service) degraded(userID string, err error) {
	metrics.RecordJourneyDegraded()
	s.log.Warn().Err(err).Str("user_id", userID).Msg("journey read failed, returning empty result")
}
