// Package journey derives the journey categories and statistics from a
// user's chats, messages and favorites. Everything here is pure.
package journey

import (
	"strings"
	"time"
)

// Category names one journey list.
type Category string

const (
	CategoryHeartToHearts    Category = "heart-to-hearts"
	CategoryGoalsAchieved    Category = "goals-achieved"
	CategoryGrowthMoments    Category = "growth-moments"
	CategoryBreakthroughDays Category = "breakthrough-days"
)

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{CategoryHeartToHearts, CategoryGrowthMoments, CategoryGoalsAchieved, CategoryBreakthroughDays}
}

// ParseCategory accepts a category name, case-insensitively.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Categories() {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// EmotionTag is the emotion shown on an item.
type EmotionTag struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ChatRef identifies the chat an item came from.
type ChatRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Item is one entry of a journey list.
type Item struct {
	ID         string      `json:"id"`
	MessageID  string      `json:"messageId,omitempty"`
	Title      string      `json:"title"`
	Content    string      `json:"content"`
	Emotion    *EmotionTag `json:"emotion"`
	CreatedAt  time.Time   `json:"createdAt"`
	IsFavorite bool        `json:"isFavorite"`
	Chat       *ChatRef    `json:"chat,omitempty"`
	// Count is the number of favorites behind a grouped item.
	Count int `json:"count,omitempty"`
}

// Statistics is the recomputed-on-read journey summary.
type Statistics struct {
	TotalChats       int `json:"totalChats"`
	TotalMessages    int `json:"totalMessages"`
	TotalFavorites   int `json:"totalFavorites"`
	TotalMedia       int `json:"totalMedia"`
	HeartToHearts    int `json:"heartToHearts"`
	GrowthMoments    int `json:"growthMoments"`
	GoalsAchieved    int `json:"goalsAchieved"`
	BreakthroughDays int `json:"breakthroughDays"`
}

// Overview carries the first few items of each category.
type Overview struct {
	HeartToHearts    []Item `json:"heartToHearts"`
	GrowthMoments    []Item `json:"growthMoments"`
	GoalsAchieved    []Item `json:"goalsAchieved"`
	BreakthroughDays []Item `json:"breakthroughDays"`
}

// EmptyOverview returns an overview whose lists encode as [] instead of null.
func EmptyOverview() Overview {
	return Overview{
		HeartToHearts:    []Item{},
		GrowthMoments:    []Item{},
		GoalsAchieved:    []Item{},
		BreakthroughDays: []Item{},
	}
}
