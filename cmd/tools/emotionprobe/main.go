// Command emotionprobe classifies text the same way the API does and prints
// one JSON object per input line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	analysis "github.com/zhouzirui/heartlog/backend/internal/analysis/emotion"
	"github.com/zhouzirui/heartlog/backend/internal/config"
	"github.com/zhouzirui/heartlog/backend/internal/logger"
	emotionservice "github.com/zhouzirui/heartlog/backend/internal/service/emotion"
)

type probeConfig struct {
	AI      config.AIConfig
	OpenAI  config.OpenAIConfig
	Emotion config.EmotionConfig
}

type probeResult struct {
	Text       string         `json:"text"`
	Emotion    analysis.Label `json:"emotion"`
	Confidence float64        `json:"confidence"`
	Keyword    analysis.Label `json:"keyword"`
	ElapsedMS  int64          `json:"elapsedMs"`
}

func main() {
	text := flag.String("text", "", "要识别的文本，留空则逐行读取标准输入")
	offline := flag.Bool("offline", false, "只使用关键词分类器，不调用大模型")
	timeout := flag.Duration("timeout", 0, "单条识别超时时间，默认使用 EMOTION_LLM_TIMEOUT")
	flag.Parse()

	log := logger.GetLogger()
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("无法加载 .env，改用系统环境变量")
	}

	var cfg probeConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("配置加载失败")
	}
	if *timeout > 0 {
		cfg.Emotion.Timeout = *timeout
	}

	ctx := context.Background()
	var llm analysis.Classifier
	if !*offline {
		llm = buildClassifier(ctx, cfg)
	}
	svc := emotionservice.NewService(llm, emotionservice.Config{Timeout: cfg.Emotion.Timeout})
	log.Info().Bool("llm", svc.LLMEnabled()).Msg("emotion probe ready")

	var in io.Reader = os.Stdin
	if strings.TrimSpace(*text) != "" {
		in = strings.NewReader(*text)
	}
	if err := run(ctx, svc, in, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("probe failed")
	}
}

func buildClassifier(ctx context.Context, cfg probeConfig) analysis.Classifier {
	full := &config.Config{AI: cfg.AI, OpenAI: cfg.OpenAI, Emotion: cfg.Emotion}
	full.Emotion.Provider = strings.ToLower(strings.TrimSpace(full.Emotion.Provider))

	log := logger.Component("emotionprobe")
	switch full.ResolveProvider() {
	case config.EmotionProviderOpenAI:
		return emotionservice.NewOpenAIClassifier(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	case config.EmotionProviderArk:
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Ark 模型不可用，只使用关键词分类器")
			return nil
		}
		classifier, err := emotionservice.NewChainClassifier(ctx, chatModel)
		if err != nil {
			log.Warn().Err(err).Msg("情绪识别链构建失败，只使用关键词分类器")
			return nil
		}
		return classifier
	default:
		return nil
	}
}

// run classifies each non-blank line of in and writes JSON lines to out.
func run(ctx context.Context, svc *emotionservice.Service, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		start := time.Now()
		result := svc.Classify(ctx, line)
		if err := enc.Encode(probeResult{
			Text:       line,
			Emotion:    result.Emotion,
			Confidence: result.Confidence,
			Keyword:    analysis.Analyze(line).Emotion,
			ElapsedMS:  time.Since(start).Milliseconds(),
		}); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	return scanner.Err()
}
