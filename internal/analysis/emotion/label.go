package emotion

import (
	"context"
	"errors"
	"math"
	"strings"
)

// Label 表示情绪分类体系中的标签。
type Label string

const (
	Joy      Label = "joy"
	Sadness  Label = "sadness"
	Anger    Label = "anger"
	Fear     Label = "fear"
	Surprise Label = "surprise"
	Disgust  Label = "disgust"
	Neutral  Label = "neutral"
)

// DefaultConfidence 是未识别出情绪时的置信度。
const DefaultConfidence = 0.5

// Labels 返回完整的七类情绪标签，顺序固定。
func Labels() []Label {
	return []Label{Joy, Sadness, Anger, Fear, Surprise, Disgust, Neutral}
}

// ParseLabel 将外部输入（大模型输出、请求参数）规范化为情绪标签。
func ParseLabel(raw string) (Label, bool) {
	normalized := Label(strings.ToLower(strings.TrimSpace(raw)))
	for _, label := range Labels() {
		if label == normalized {
			return label, true
		}
	}
	return "", false
}

// Result 是一次情绪识别的结果。
type Result struct {
	Emotion    Label   `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Default 返回中性结果 {neutral, 0.5}。
func Default() Result {
	return Result{Emotion: Neutral, Confidence: DefaultConfidence}
}

// Classifier 将一段文本归类到情绪标签。
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// ClassifierFunc 让普通函数满足 Classifier。
type ClassifierFunc func(ctx context.Context, text string) (Result, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, text string) (Result, error) {
	return f(ctx, text)
}

// ErrNoClassifier is returned by Fallback when neither side is configured.
var ErrNoClassifier = errors.New("no emotion classifier configured")

// FallbackClassifier 先调用 primary，失败时改用 secondary。
type FallbackClassifier struct {
	primary   Classifier
	secondary Classifier
	onFailure func(err error)
}

// Fallback 组合两个分类器。primary 可以为 nil，此时直接使用 secondary。
func Fallback(primary, secondary Classifier, onFailure func(err error)) *FallbackClassifier {
	return &FallbackClassifier{primary: primary, secondary: secondary, onFailure: onFailure}
}

// Classify implements Classifier.
func (f *FallbackClassifier) Classify(ctx context.Context, text string) (Result, error) {
	if f.primary != nil {
		result, err := f.primary.Classify(ctx, text)
		if err == nil {
			return result, nil
		}
		if f.onFailure != nil {
			f.onFailure(err)
		}
	}
	if f.secondary == nil {
		return Default(), ErrNoClassifier
	}
	// 回退路径不受上游超时影响。
	return f.secondary.Classify(context.WithoutCancel(ctx), text)
}

// RoundConfidence 将置信度限制在 [0,1] 并保留两位小数。
func RoundConfidence(value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	return math.Round(value*100) / 100
}
