package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef-secret"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, EmotionProviderAuto, cfg.Emotion.Provider)
	assert.Equal(t, 8*time.Second, cfg.Emotion.Timeout)
	assert.Equal(t, "*/5 * * * *", cfg.Emotion.BackfillCron)
	assert.Equal(t, 20, cfg.Journey.DefaultLimit)
	assert.Equal(t, 100, cfg.Journey.MaxLimit)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.Nil(t, cfg.AI.Temperature)
}

func TestResolveAddr(t *testing.T) {
	cases := map[string]string{
		"9000":           ":9000",
		":9000":          ":9000",
		"127.0.0.1:9000": "127.0.0.1:9000",
		"":               ":8080",
	}
	for in, want := range cases {
		got, err := resolveAddr(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := resolveAddr("80 80")
	assert.Error(t, err)
}

func TestLoadOptionalArkKnobs(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("ARK_TEMPERATURE", "0.3")
	t.Setenv("ARK_MAX_TOKENS", "512")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.AI.Temperature)
	assert.InDelta(t, 0.3, *cfg.AI.Temperature, 1e-9)
	require.NotNil(t, cfg.AI.MaxTokens)
	assert.Equal(t, 512, *cfg.AI.MaxTokens)
	assert.Nil(t, cfg.AI.TopP)

	t.Setenv("ARK_TOP_P", "high")
	_, err = Load()
	assert.ErrorContains(t, err, "ARK_TOP_P")
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("EMOTION_PROVIDER", "magic")
	_, err = Load()
	assert.ErrorContains(t, err, "EMOTION_PROVIDER")

	t.Setenv("EMOTION_PROVIDER", "openai")
	_, err = Load()
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	t.Setenv("EMOTION_PROVIDER", "none")
	t.Setenv("JOURNEY_DEFAULT_LIMIT", "50")
	t.Setenv("JOURNEY_MAX_LIMIT", "10")
	_, err = Load()
	assert.ErrorContains(t, err, "JOURNEY_DEFAULT_LIMIT")
}

func TestResolveProvider(t *testing.T) {
	cfg := &Config{Emotion: EmotionConfig{Provider: EmotionProviderAuto}}
	assert.Equal(t, EmotionProviderNone, cfg.ResolveProvider())

	cfg.AI = AIConfig{APIKey: "k", Model: "m"}
	assert.Equal(t, EmotionProviderArk, cfg.ResolveProvider())

	cfg.OpenAI = OpenAIConfig{APIKey: "sk"}
	assert.Equal(t, EmotionProviderOpenAI, cfg.ResolveProvider())

	cfg.Emotion.Provider = EmotionProviderNone
	assert.Equal(t, EmotionProviderNone, cfg.ResolveProvider())
}
