package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
	"github.com/zhouzirui/heartlog/backend/internal/store"
)

const (
	openerMaxRunes = 60
	topOpeners     = 5
)

// Filter narrows the breakdown. Zero times mean unbounded; End is exclusive.
type Filter struct {
	UserID    string
	ChatID    string
	Start     time.Time
	End       time.Time
	IncludeAI bool
}

// EmotionCount is one row of the breakdown.
type EmotionCount struct {
	Emotion    string  `json:"emotion"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Opener is a normalized first message and how many chats started with it.
type Opener struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Breakdown is the GET /analytics/emotions payload.
type Breakdown struct {
	TotalMessages     int            `json:"totalMessages"`
	LabeledMessages   int            `json:"labeledMessages"`
	Emotions          []EmotionCount `json:"emotions"`
	MostCommonOpeners []Opener       `json:"mostCommonOpeners"`
}

// Reader is the read access the analytics service needs.
type Reader interface {
	ListUserMessages(ctx context.Context, filter store.MessageFilter) ([]chat.Message, error)
}

type Service struct {
	reader Reader
}

func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

// EmotionBreakdown counts labeled messages per emotion and finds the most common chat openers.
func (s *Service) EmotionBreakdown(ctx context.Context, f Filter) (Breakdown, error) {
	messages, err := s.reader.ListUserMessages(ctx, store.MessageFilter{
		UserID:           f.UserID,
		ChatID:           f.ChatID,
		Since:            f.Start,
		Until:            f.End,
		IncludeAssistant: f.IncludeAI,
	})
	if err != nil {
		return Breakdown{}, fmt.Errorf("list messages: %w", err)
	}

	out := Breakdown{TotalMessages: len(messages)}
	counts := make(map[string]int)
	for _, m := range messages {
		label := m.EmotionLabel()
		if label == "" {
			continue
		}
		counts[label]++
		out.LabeledMessages++
	}
	out.Emotions = percentages(counts, out.LabeledMessages)
	out.MostCommonOpeners = openers(messages)
	return out, nil
}

func percentages(counts map[string]int, total int) []EmotionCount {
	rows := make([]EmotionCount, 0, len(counts))
	for label, n := range counts {
		rows = append(rows, EmotionCount{
			Emotion:    label,
			Count:      n,
			Percentage: math.Round(float64(n)/float64(total)*10000) / 100,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Emotion < rows[j].Emotion
	})
	return rows
}

// openers takes the first user message of every chat; messages arrive oldest first.
func openers(messages []chat.Message) []Opener {
	seen := make(map[string]bool)
	counts := make(map[string]int)
	for _, m := range messages {
		if m.IsAssistant() || seen[m.ChatID] {
			continue
		}
		seen[m.ChatID] = true
		if text := NormalizeOpener(m.Content); text != "" {
			counts[text]++
		}
	}

	out := make([]Opener, 0, len(counts))
	for text, n := range counts {
		out = append(out, Opener{Text: text, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Text < out[j].Text
	})
	if len(out) > topOpeners {
		out = out[:topOpeners]
	}
	return out
}

// NormalizeOpener lowercases, collapses whitespace and keeps at most 60 runes.
func NormalizeOpener(content string) string {
	text := strings.ToLower(strings.Join(strings.Fields(content), " "))
	if utf8.RuneCountInString(text) <= openerMaxRunes {
		return text
	}
	return strings.TrimSpace(string([]rune(text)[:openerMaxRunes]))
}
