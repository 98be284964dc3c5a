package emotion

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	analysis "github.com/zhouzirui/heartlog/backend/internal/analysis/emotion"
	"github.com/zhouzirui/heartlog/backend/internal/logger"
	"github.com/zhouzirui/heartlog/backend/internal/metrics"
)

// 指标中 path/reason 的取值。
const (
	pathLLM        = "llm"
	pathKeyword    = "keyword"
	pathDefault    = "default"
	reasonOK       = "ok"
	reasonNoLLM    = "no_llm"
	reasonError    = "llm_error"
	reasonExpiry   = "timeout"
	reasonEmpty    = "empty"
	reasonEstimate = "estimate"
)

const defaultTimeout = 8 * time.Second

// Config 控制情绪分析服务的行为。
type Config struct {
	// Timeout 限制单次大模型调用，超时即回退到关键词分类。
	Timeout time.Duration
}

// Service 使用大模型识别情绪，失败时回退到关键词规则，对调用方从不返回错误。
type Service struct {
	llm        analysis.Classifier
	classifier analysis.Classifier
	timeout    time.Duration
	log        zerolog.Logger
}

// NewService 创建情绪分析服务。llm 为 nil 时只使用关键词分类。
func NewService(llm analysis.Classifier, cfg Config) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	s := &Service{
		llm:     llm,
		timeout: timeout,
		log:     logger.Component("emotion"),
	}

	keyword := analysis.NewKeywordClassifier()
	if llm == nil {
		s.classifier = keyword
		return s
	}

	instrumented := analysis.ClassifierFunc(func(ctx context.Context, text string) (analysis.Result, error) {
		result, err := llm.Classify(ctx, text)
		if err == nil {
			metrics.RecordClassification(pathLLM, reasonOK)
		}
		return result, err
	})
	s.classifier = analysis.Fallback(instrumented, keyword, s.onLLMFailure)
	return s
}

// LLMEnabled 返回是否配置了大模型分类器。
func (s *Service) LLMEnabled() bool {
	return s != nil && s.llm != nil
}

// Classify 识别单条文本。空白文本直接返回 {neutral, 0.5}。
func (s *Service) Classify(ctx context.Context, text string) analysis.Result {
	if strings.TrimSpace(text) == "" {
		metrics.RecordClassification(pathDefault, reasonEmpty)
		return analysis.Default()
	}
	if s.llm == nil {
		metrics.RecordClassification(pathKeyword, reasonNoLLM)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.classifier.Classify(callCtx, text)
	if err != nil {
		s.log.Error().Err(err).Msg("emotion classification failed, use default")
		return analysis.Default()
	}
	return result
}

// Estimate 只用关键词规则识别，不调用大模型。用于结果稍后由 worker 补全的场景。
func (s *Service) Estimate(text string) analysis.Result {
	metrics.RecordClassification(pathKeyword, reasonEstimate)
	return analysis.Analyze(text)
}

// ClassifyBatch 逐条识别，结果与输入位置一一对应；非字符串或空白项返回默认结果。
func (s *Service) ClassifyBatch(ctx context.Context, inputs []any) []analysis.Result {
	results := make([]analysis.Result, len(inputs))
	for i, input := range inputs {
		results[i] = s.ClassifyValue(ctx, input)
	}
	return results
}

// ClassifyValue classifies a decoded JSON value. Anything but a string gets the default result.
func (s *Service) ClassifyValue(ctx context.Context, input any) analysis.Result {
	text, ok := input.(string)
	if !ok {
		metrics.RecordClassification(pathDefault, reasonEmpty)
		return analysis.Default()
	}
	return s.Classify(ctx, text)
}

func (s *Service) onLLMFailure(err error) {
	reason := reasonError
	if errors.Is(err, context.DeadlineExceeded) {
		reason = reasonExpiry
	}
	metrics.RecordClassification(pathKeyword, reason)
	s.log.Warn().Err(err).Str("reason", reason).Msg("llm classifier failed, use keyword fallback")
}
