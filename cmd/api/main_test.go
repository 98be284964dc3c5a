package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/heartlog/backend/internal/config"
	"github.com/zhouzirui/heartlog/backend/internal/store/memory"
)

func TestRunServerStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := &http.Server{Addr: addr, Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, time.Second) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestOpenStoreDefaultsToMemory(t *testing.T) {
	repo, err := openStore(context.Background(), config.DatabaseConfig{}, zerolog.Nop())
	require.NoError(t, err)
	defer repo.Close()
	assert.IsType(t, &memory.Store{}, repo)
}

func TestNewEmotionClassifierWithoutCredentials(t *testing.T) {
	cfg := &config.Config{Emotion: config.EmotionConfig{Provider: config.EmotionProviderAuto}}
	assert.Nil(t, newEmotionClassifier(context.Background(), cfg, zerolog.Nop()))

	cfg.OpenAI = config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"}
	assert.NotNil(t, newEmotionClassifier(context.Background(), cfg, zerolog.Nop()))
}
