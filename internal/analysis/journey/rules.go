package journey

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zhouzirui/heartlog/backend/internal/analysis/emotion"
	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
)

const (
	// BreakthroughThreshold is the number of favorites that makes a day a breakthrough.
	BreakthroughThreshold = 3
	summaryLimit          = 100
	truncationMarker      = "..."
	dayLayout             = "2006-01-02"
)

// GoalKeywords are matched as case-insensitive substrings.
var GoalKeywords = []string{
	"goal", "achieve", "achieved", "accomplish", "accomplished", "complete", "completed",
	"finish", "finished", "success", "successful", "target", "milestone", "progress",
	"improvement", "better", "growth", "learning", "mastered", "overcome", "breakthrough",
}

var growthEmotions = map[string]struct{}{
	"joy": {}, "surprise": {}, "love": {}, "gratitude": {}, "excitement": {}, "happiness": {}, "contentment": {},
}

// HeartToHearts returns one item per chat holding at least one favorite,
// represented by its most recent favorited message.
func HeartToHearts(favorites []chat.FavoriteMessage) []Item {
	type group struct {
		latest chat.FavoriteMessage
		count  int
	}
	groups := make(map[string]*group)
	for _, fav := range favorites {
		g, ok := groups[fav.Chat.ID]
		if !ok {
			groups[fav.Chat.ID] = &group{latest: fav, count: 1}
			continue
		}
		g.count++
		if newer(fav.Message, g.latest.Message) {
			g.latest = fav
		}
	}

	items := make([]Item, 0, len(groups))
	for chatID, g := range groups {
		item := messageItem(g.latest.Message, g.latest.Chat, true)
		item.ID = chatID
		item.Title = chatTitle(g.latest.Chat)
		item.Count = g.count
		items = append(items, item)
	}
	sortNewestFirst(items)
	return items
}

// GrowthMoments returns favorited user messages carrying a positive emotion.
func GrowthMoments(favorites []chat.FavoriteMessage) []Item {
	items := make([]Item, 0)
	for _, fav := range favorites {
		if !IsGrowthMoment(fav.Message) {
			continue
		}
		item := messageItem(fav.Message, fav.Chat, true)
		item.Title = "Growth moment"
		items = append(items, item)
	}
	sortNewestFirst(items)
	return items
}

// IsGrowthMoment reports whether m is a non-assistant message with a positive emotion.
func IsGrowthMoment(m chat.Message) bool {
	if m.IsAssistant() || m.Deleted {
		return false
	}
	_, ok := growthEmotions[strings.ToLower(strings.TrimSpace(m.EmotionLabel()))]
	return ok
}

// GoalsAchieved returns one record per user message mentioning a goal keyword.
// chats resolves chat references and favorites marks favorited message ids;
// either may be nil.
func GoalsAchieved(messages []chat.Message, chats map[string]chat.Chat, favorites map[string]bool) []Item {
	items := make([]Item, 0)
	for _, m := range messages {
		if m.IsAssistant() || m.Deleted || !IsGoalMessage(m.Content) {
			continue
		}
		item := messageItem(m, chats[m.ChatID], favorites[m.ID])
		item.Title = "Goal achieved"
		item.Content = Summarize(m.Content)
		items = append(items, item)
	}
	sortNewestFirst(items)
	return items
}

// IsGoalMessage reports whether content contains any goal keyword.
func IsGoalMessage(content string) bool {
	lower := strings.ToLower(content)
	for _, kw := range GoalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// BreakthroughDays returns one item per UTC day with at least
// BreakthroughThreshold favorited messages.
func BreakthroughDays(favorites []chat.FavoriteMessage) []Item {
	byDay := make(map[string][]chat.FavoriteMessage)
	for _, fav := range favorites {
		day := fav.Message.CreatedAt.UTC().Format(dayLayout)
		byDay[day] = append(byDay[day], fav)
	}

	items := make([]Item, 0)
	for day, favs := range byDay {
		if len(favs) < BreakthroughThreshold {
			continue
		}
		latest := favs[0]
		for _, fav := range favs[1:] {
			if newer(fav.Message, latest.Message) {
				latest = fav
			}
		}
		items = append(items, Item{
			ID:         day,
			Title:      "Breakthrough day " + day,
			Content:    fmt.Sprintf("%d favorited messages, latest: %s", len(favs), Summarize(latest.Message.Content)),
			Emotion:    dominantEmotion(favs),
			CreatedAt:  latest.Message.CreatedAt,
			IsFavorite: true,
			Count:      len(favs),
		})
	}
	sortNewestFirst(items)
	return items
}

// Summarize trims content and cuts it to at most 100 runes, marking the cut with "...".
func Summarize(content string) string {
	trimmed := strings.TrimSpace(content)
	runes := []rune(trimmed)
	if len(runes) <= summaryLimit {
		return trimmed
	}
	keep := summaryLimit - len(truncationMarker)
	return strings.TrimRight(string(runes[:keep]), " ") + truncationMarker
}

func messageItem(m chat.Message, c chat.Chat, favorite bool) Item {
	item := Item{
		ID:         m.ID,
		MessageID:  m.ID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
		IsFavorite: favorite,
	}
	if m.Emotion != nil {
		item.Emotion = &EmotionTag{Label: m.EmotionLabel(), Confidence: m.Confidence()}
	}
	if c.ID != "" {
		item.Chat = &ChatRef{ID: c.ID, Name: c.Name, Type: c.Type}
	}
	return item
}

func chatTitle(c chat.Chat) string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return "Heart-to-heart"
}

// dominantEmotion picks the most frequent label among the favorites, ties by label.
func dominantEmotion(favs []chat.FavoriteMessage) *EmotionTag {
	counts := make(map[string]int)
	sums := make(map[string]float64)
	for _, fav := range favs {
		label := fav.Message.EmotionLabel()
		if label == "" {
			continue
		}
		counts[label]++
		sums[label] += fav.Message.Confidence()
	}
	best := ""
	for label, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && label < best) {
			best = label
		}
	}
	if best == "" {
		return nil
	}
	return &EmotionTag{Label: best, Confidence: emotion.RoundConfidence(sums[best] / float64(counts[best]))}
}

func newer(a, b chat.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func sortNewestFirst(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
