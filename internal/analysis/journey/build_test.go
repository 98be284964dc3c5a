package journey

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
)

func fixtureSnapshot() Snapshot {
	happy := msg("m1", diary, chat.RoleUser, "so happy I finished the project", day1).WithEmotion("joy", 0.8)
	calm := msg("m2", diary, chat.RoleUser, "quiet evening", day1.Add(time.Hour))
	proud := msg("m3", work, chat.RoleUser, "hit the milestone", day1.Add(2*time.Hour)).WithEmotion("excitement", 1)
	goalOnly := msg("m4", work, chat.RoleUser, "learning Go", day1.AddDate(0, 0, 1))

	return Snapshot{
		Chats:        []chat.Chat{diary, work},
		MessageCount: 9,
		MediaCount:   2,
		Favorites: []chat.FavoriteMessage{
			fav(proud, work), fav(calm, diary), fav(happy, diary),
		},
		GoalCandidates: []chat.Message{happy, proud, goalOnly},
	}
}

func TestBuildMatchesCategorize(t *testing.T) {
	s := fixtureSnapshot()
	stats := Build(s)

	assert.Equal(t, Statistics{
		TotalChats:       2,
		TotalMessages:    9,
		TotalFavorites:   3,
		TotalMedia:       2,
		HeartToHearts:    2,
		GrowthMoments:    2,
		GoalsAchieved:    3,
		BreakthroughDays: 1,
	}, stats)

	assert.Len(t, Categorize(s, CategoryHeartToHearts), stats.HeartToHearts)
	assert.Len(t, Categorize(s, CategoryGrowthMoments), stats.GrowthMoments)
	assert.Len(t, Categorize(s, CategoryGoalsAchieved), stats.GoalsAchieved)
	assert.Len(t, Categorize(s, CategoryBreakthroughDays), stats.BreakthroughDays)
	assert.Empty(t, Categorize(s, Category("other")))
}

func TestGoalItemsCarryFavoriteFlag(t *testing.T) {
	items := Categorize(fixtureSnapshot(), CategoryGoalsAchieved)
	require.Len(t, items, 3)
	assert.Equal(t, "m4", items[0].ID)
	assert.False(t, items[0].IsFavorite)
	assert.True(t, items[1].IsFavorite)
	assert.Equal(t, "Work notes", items[1].Chat.Name)
}

func TestBuildEmptySnapshotIsZero(t *testing.T) {
	assert.Equal(t, Statistics{}, Build(Snapshot{}))
}

func TestPreviewTruncates(t *testing.T) {
	p := Preview(fixtureSnapshot(), 1)
	assert.Len(t, p.HeartToHearts, 1)
	assert.Len(t, p.GrowthMoments, 1)
	assert.Len(t, p.GoalsAchieved, 1)
	assert.Len(t, p.BreakthroughDays, 1)
}

func TestPaginate(t *testing.T) {
	items := make([]Item, 5)
	for i := range items {
		items[i] = Item{ID: fmt.Sprint(i)}
	}

	page, next, err := Paginate(items, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: "0"}, {ID: "1"}}, page)
	assert.Equal(t, "2", next)

	page, next, err = Paginate(items, next, 2)
	require.NoError(t, err)
	assert.Equal(t, "3", page[1].ID)
	assert.Equal(t, "4", next)

	page, next, err = Paginate(items, next, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.Empty(t, next)

	page, next, err = Paginate(items, "99", 2)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Empty(t, next)

	_, _, err = Paginate(items, "abc", 2)
	assert.ErrorIs(t, err, ErrInvalidCursor)
	_, _, err = Paginate(items, "-1", 2)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestEveryCategoryParsesAndCategorizes(t *testing.T) {
	s := fixtureSnapshot()
	for _, c := range Categories() {
		parsed, ok := ParseCategory(string(c))
		require.True(t, ok, c)
		assert.Equal(t, c, parsed)
		assert.NotEmpty(t, Categorize(s, parsed), c)
	}
}
