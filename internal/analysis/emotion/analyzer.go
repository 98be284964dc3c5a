package emotion

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// 命中情绪时置信度的上限，留出强度词加成的空间。
	matchedConfidenceCeiling = 0.9
	intensityBoost           = 0.2
	negationPenalty          = 0.1
	negationFloor            = 0.3
	// 分数达到该值即视为满强度。
	saturationScore = 3.0
	longKeywordLen  = 5
)

var keywordBuckets = map[Label][]string{
	Joy: {
		"happy", "happiness", "joy", "joyful", "glad", "delighted", "excited", "wonderful", "great",
		"amazing", "love", "loved", "grateful", "thankful", "cheerful", "pleased", "fantastic",
		"awesome", "proud", "thrilled", "blessed", "feel good", "over the moon", "ecstatic",
	},
	Sadness: {
		"sad", "unhappy", "depressed", "lonely", "cry", "crying", "cried", "heartbroken", "miserable",
		"upset", "grief", "hopeless", "disappointed", "hurt", "hurting", "gloomy", "tears", "miss you",
		"feel down", "empty inside",
	},
	Anger: {
		"angry", "mad", "furious", "annoyed", "irritated", "frustrated", "rage", "hate", "outraged",
		"livid", "pissed", "resentful", "fed up", "sick and tired",
	},
	Fear: {
		"afraid", "scared", "anxious", "anxiety", "worried", "worry", "nervous", "terrified", "panic",
		"fear", "frightened", "dread", "uneasy", "freaking out", "on edge",
	},
	Surprise: {
		"surprised", "surprise", "shocked", "unexpected", "amazed", "astonished", "wow", "stunned",
		"speechless", "can't believe", "out of nowhere", "didn't expect",
	},
	Disgust: {
		"disgusted", "disgusting", "gross", "revolting", "nasty", "repulsive", "vile", "yuck",
		"sickening", "can't stand", "sick of",
	},
}

var intensityWords = []string{
	"very", "extremely", "really", "so", "incredibly", "absolutely", "totally", "completely",
	"deeply", "truly", "super", "terribly",
}

var negationWords = []string{
	"not", "don't", "never", "no", "isn't", "wasn't", "can't", "won't", "didn't", "doesn't",
	"aren't", "nothing", "neither", "nor",
}

type keywordPattern struct {
	re     *regexp.Regexp
	weight int
}

// scoreOrder 固定遍历顺序，保证平局判定与 map 迭代顺序无关。
var scoreOrder = []Label{Joy, Sadness, Anger, Fear, Surprise, Disgust}

var (
	lexicon           = compileLexicon(keywordBuckets)
	intensityPatterns = compileWords(intensityWords)
	negationPatterns  = compileWords(negationWords)
)

// KeywordClassifier 基于关键词词典的启发式情绪识别，作为大模型不可用时的回退。
type KeywordClassifier struct{}

// NewKeywordClassifier returns the heuristic classifier.
func NewKeywordClassifier() KeywordClassifier {
	return KeywordClassifier{}
}

// Classify implements Classifier. It never returns an error.
func (KeywordClassifier) Classify(_ context.Context, text string) (Result, error) {
	return Analyze(text), nil
}

// Analyze 对文本打分并给出情绪及置信度。
func Analyze(text string) Result {
	normalized := normalize(text)
	if normalized == "" {
		return Default()
	}

	scores := scoreText(normalized)

	best := Neutral
	bestScore, total := 0, 0
	tied := false
	for _, label := range scoreOrder {
		s := scores[label]
		total += s
		switch {
		case s > bestScore:
			best, bestScore, tied = label, s, false
		case s == bestScore && s > 0:
			tied = true
		}
	}

	if bestScore == 0 || tied {
		return Default()
	}

	normalizedScore := min(float64(bestScore)/saturationScore, 1)
	scoreRatio := float64(bestScore) / float64(total)
	strength := max(normalizedScore, scoreRatio)

	confidence := DefaultConfidence + (matchedConfidenceCeiling-DefaultConfidence)*strength
	if containsAny(normalized, intensityPatterns) {
		confidence = min(confidence+intensityBoost, 1)
	}
	if containsAny(normalized, negationPatterns) {
		confidence = max(confidence-negationPenalty, negationFloor)
	}

	return Result{Emotion: best, Confidence: RoundConfidence(confidence)}
}

func scoreText(normalized string) map[Label]int {
	scores := make(map[Label]int, len(lexicon))
	for label, patterns := range lexicon {
		for _, p := range patterns {
			if p.re.MatchString(normalized) {
				scores[label] += p.weight
			}
		}
	}
	return scores
}

func normalize(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	return strings.NewReplacer("’", "'", "‘", "'").Replace(lowered)
}

func compileLexicon(buckets map[Label][]string) map[Label][]keywordPattern {
	out := make(map[Label][]keywordPattern, len(buckets))
	for label, words := range buckets {
		patterns := make([]keywordPattern, 0, len(words))
		for _, word := range words {
			weight := 1
			if utf8.RuneCountInString(word) > longKeywordLen {
				weight = 2
			}
			patterns = append(patterns, keywordPattern{re: wordPattern(word), weight: weight})
		}
		out[label] = patterns
	}
	return out
}

func compileWords(words []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, word := range words {
		out = append(out, wordPattern(word))
	}
	return out
}

func wordPattern(word string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(word)) + `\b`)
}

func containsAny(text string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
