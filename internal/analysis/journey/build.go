package journey

import (
	"errors"
	"strconv"
	"strings"

	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
)

// ErrInvalidCursor is returned by Paginate for a malformed cursor.
var ErrInvalidCursor = errors.New("invalid cursor")

// Snapshot is the raw data one journey request reads. It is a best-effort,
// non-atomic view assembled from independent queries.
type Snapshot struct {
	Chats        []chat.Chat
	MessageCount int
	Favorites    []chat.FavoriteMessage
	MediaCount   int
	// GoalCandidates are the user's own visible messages, usually
	// prefiltered by GoalKeywords.
	GoalCandidates []chat.Message
}

// Build computes the statistics. Category counts equal the length of the
// lists Categorize returns for the same snapshot.
func Build(s Snapshot) Statistics {
	return Statistics{
		TotalChats:       len(s.Chats),
		TotalMessages:    s.MessageCount,
		TotalFavorites:   len(s.Favorites),
		TotalMedia:       s.MediaCount,
		HeartToHearts:    len(HeartToHearts(s.Favorites)),
		GrowthMoments:    len(GrowthMoments(s.Favorites)),
		GoalsAchieved:    len(goalItems(s)),
		BreakthroughDays: len(BreakthroughDays(s.Favorites)),
	}
}

// Categorize returns the full, newest-first item list of one category.
func Categorize(s Snapshot, c Category) []Item {
	switch c {
	case CategoryHeartToHearts:
		return HeartToHearts(s.Favorites)
	case CategoryGrowthMoments:
		return GrowthMoments(s.Favorites)
	case CategoryGoalsAchieved:
		return goalItems(s)
	case CategoryBreakthroughDays:
		return BreakthroughDays(s.Favorites)
	default:
		return []Item{}
	}
}

// Preview returns up to n items of every category.
func Preview(s Snapshot, n int) Overview {
	head := func(items []Item) []Item {
		if n >= 0 && len(items) > n {
			return items[:n]
		}
		return items
	}
	return Overview{
		HeartToHearts:    head(HeartToHearts(s.Favorites)),
		GrowthMoments:    head(GrowthMoments(s.Favorites)),
		GoalsAchieved:    head(goalItems(s)),
		BreakthroughDays: head(BreakthroughDays(s.Favorites)),
	}
}

func goalItems(s Snapshot) []Item {
	chats := make(map[string]chat.Chat, len(s.Chats))
	for _, c := range s.Chats {
		chats[c.ID] = c
	}
	favorites := make(map[string]bool, len(s.Favorites))
	for _, fav := range s.Favorites {
		favorites[fav.Message.ID] = true
	}
	return GoalsAchieved(s.GoalCandidates, chats, favorites)
}

// Paginate returns the page starting at cursor (an offset, "" for the first
// page) and the cursor of the next page, "" when there is none.
func Paginate(items []Item, cursor string, limit int) ([]Item, string, error) {
	offset := 0
	if c := strings.TrimSpace(cursor); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 0 {
			return nil, "", ErrInvalidCursor
		}
		offset = n
	}
	if limit < 1 {
		limit = 1
	}
	if offset >= len(items) {
		return []Item{}, "", nil
	}

	end := offset + limit
	if end >= len(items) {
		return items[offset:], "", nil
	}
	return items[offset:end], strconv.Itoa(end), nil
}
