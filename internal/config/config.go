package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// 情绪识别可选的提供方。
const (
	EmotionProviderAuto   = "auto"
	EmotionProviderArk    = "ark"
	EmotionProviderOpenAI = "openai"
	EmotionProviderNone   = "none"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Auth     AuthConfig
	CORS     CORSConfig
	AI       AIConfig
	OpenAI   OpenAIConfig
	Emotion  EmotionConfig
	Journey  JourneyConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	addr, err := resolveAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.AI.loadOptionalKnobs(); err != nil {
		return nil, err
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Emotion.Provider = strings.ToLower(strings.TrimSpace(cfg.Emotion.Provider))
	cfg.Database.URL = strings.TrimSpace(cfg.Database.URL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查跨字段约束。
func (c *Config) Validate() error {
	var errs []error

	if len(strings.TrimSpace(c.Auth.JWTSecret)) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}

	switch c.Emotion.Provider {
	case EmotionProviderAuto, EmotionProviderArk, EmotionProviderOpenAI, EmotionProviderNone:
	default:
		errs = append(errs, fmt.Errorf("invalid EMOTION_PROVIDER %q", c.Emotion.Provider))
	}
	if c.Emotion.Provider == EmotionProviderArk && !c.AI.Enabled() {
		errs = append(errs, errors.New("EMOTION_PROVIDER=ark requires Ark credentials and ARK_MODEL"))
	}
	if c.Emotion.Provider == EmotionProviderOpenAI && !c.OpenAI.Enabled() {
		errs = append(errs, errors.New("EMOTION_PROVIDER=openai requires OPENAI_API_KEY"))
	}
	if c.Emotion.Timeout <= 0 {
		errs = append(errs, errors.New("EMOTION_LLM_TIMEOUT must be positive"))
	}
	if c.Emotion.Workers < 1 {
		errs = append(errs, errors.New("EMOTION_WORKERS must be at least 1"))
	}
	if c.Emotion.QueueSize < 1 {
		errs = append(errs, errors.New("EMOTION_QUEUE_SIZE must be at least 1"))
	}

	if c.Journey.DefaultLimit < 1 || c.Journey.MaxLimit < 1 {
		errs = append(errs, errors.New("JOURNEY_DEFAULT_LIMIT and JOURNEY_MAX_LIMIT must be positive"))
	} else if c.Journey.DefaultLimit > c.Journey.MaxLimit {
		errs = append(errs, errors.New("JOURNEY_DEFAULT_LIMIT must not exceed JOURNEY_MAX_LIMIT"))
	}

	return errors.Join(errs...)
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Addr            string        `env:"-"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// resolveAddr 解析服务器监听地址。
func resolveAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	return ":" + port, nil
}

// LogConfig 控制日志级别与输出格式（console 或 json）。
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

// DatabaseConfig 为空时使用内存存储。
type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	MaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
}

// AuthConfig 描述 JWT 校验参数。
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
	UserClaim string `env:"JWT_USER_CLAIM" envDefault:"user_id"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey          string   `env:"ARK_API_KEY"`
	AccessKey       string   `env:"ARK_ACCESS_KEY"`
	SecretKey       string   `env:"ARK_SECRET_KEY"`
	Model           string   `env:"ARK_MODEL"`
	BaseURL         string   `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region          string   `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature     *float64 `env:"-"`
	TopP            *float64 `env:"-"`
	MaxTokens       *int     `env:"-"`
	StreamResponse  bool     `env:"ARK_STREAM" envDefault:"true"`
	HistoryLimit    int      `env:"AI_HISTORY_LIMIT" envDefault:"10"`
	EmotionGuidance bool     `env:"AI_EMOTION_GUIDANCE" envDefault:"true"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// loadOptionalKnobs 读取可为空的采样参数，未设置时保持 nil 以使用模型默认值。
func (c *AIConfig) loadOptionalKnobs() error {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return err
	}

	c.Temperature, c.TopP, c.MaxTokens = temperature, topP, maxTokens
	if c.HistoryLimit < 1 {
		c.HistoryLimit = 1
	}
	return nil
}

// OpenAIConfig 描述 OpenAI 情绪分类器配置。
type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL"`
	Model   string `env:"OPENAI_EMOTION_MODEL" envDefault:"gpt-4o-mini"`
}

func (c OpenAIConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// EmotionConfig 描述情绪识别与后台补全任务。
type EmotionConfig struct {
	Provider        string        `env:"EMOTION_PROVIDER" envDefault:"auto"`
	Timeout         time.Duration `env:"EMOTION_LLM_TIMEOUT" envDefault:"8s"`
	Workers         int           `env:"EMOTION_WORKERS" envDefault:"2"`
	QueueSize       int           `env:"EMOTION_QUEUE_SIZE" envDefault:"256"`
	BackfillEnabled bool          `env:"EMOTION_BACKFILL_ENABLED" envDefault:"true"`
	BackfillCron    string        `env:"EMOTION_BACKFILL_CRON" envDefault:"*/5 * * * *"`
	BackfillBatch   int           `env:"EMOTION_BACKFILL_BATCH" envDefault:"100"`
}

// ResolveProvider 将 auto 解析为具体提供方：优先 OpenAI，其次 Ark，否则只用关键词。
func (c *Config) ResolveProvider() string {
	if c.Emotion.Provider != EmotionProviderAuto {
		return c.Emotion.Provider
	}
	switch {
	case c.OpenAI.Enabled():
		return EmotionProviderOpenAI
	case c.AI.Enabled():
		return EmotionProviderArk
	default:
		return EmotionProviderNone
	}
}

// JourneyConfig 描述 journey 列表分页参数。
type JourneyConfig struct {
	DefaultLimit int `env:"JOURNEY_DEFAULT_LIMIT" envDefault:"20"`
	MaxLimit     int `env:"JOURNEY_MAX_LIMIT" envDefault:"100"`
	PreviewLimit int `env:"JOURNEY_PREVIEW_LIMIT" envDefault:"3"`
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
