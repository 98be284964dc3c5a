package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	analysis "github.com/zhouzirui/heartlog/backend/internal/analysis/emotion"
	"github.com/zhouzirui/heartlog/backend/internal/config"
	"github.com/zhouzirui/heartlog/backend/internal/handler"
	"github.com/zhouzirui/heartlog/backend/internal/logger"
	"github.com/zhouzirui/heartlog/backend/internal/middleware"
	"github.com/zhouzirui/heartlog/backend/internal/realtime"
	"github.com/zhouzirui/heartlog/backend/internal/service/ai"
	"github.com/zhouzirui/heartlog/backend/internal/service/analytics"
	"github.com/zhouzirui/heartlog/backend/internal/service/chat"
	emotionservice "github.com/zhouzirui/heartlog/backend/internal/service/emotion"
	"github.com/zhouzirui/heartlog/backend/internal/service/journey"
	"github.com/zhouzirui/heartlog/backend/internal/service/settings"
	"github.com/zhouzirui/heartlog/backend/internal/store"
	"github.com/zhouzirui/heartlog/backend/internal/store/memory"
	"github.com/zhouzirui/heartlog/backend/internal/store/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.GetLogger()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}
	log = appLog

	repo, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer repo.Close()

	hub := realtime.NewHub(0)
	settingsSvc := settings.NewService(repo)

	emotionSvc := emotionservice.NewService(newEmotionClassifier(ctx, cfg, log), emotionservice.Config{Timeout: cfg.Emotion.Timeout})
	worker := emotionservice.NewWorker(emotionSvc, repo, hub, cfg.Emotion.Workers, cfg.Emotion.QueueSize)
	worker.Start(ctx)
	defer worker.Stop()

	chatSvc := chat.NewService(repo, settingsSvc, worker)

	// Initialize AI service
	var aiService *ai.Service
	if cfg.AI.Enabled() {
		aiService, err = newAIService(ctx, cfg.AI, settingsSvc)
		if err != nil {
			log.Warn().Err(err).Msg("continuing without AI replies - 请检查 Ark 模型相关环境变量")
		} else {
			log.Info().Str("model", cfg.AI.Model).Bool("stream", cfg.AI.StreamResponse).Msg("AI service initialized")
		}
	} else {
		log.Info().Msg("Ark 凭证未配置，跳过 AI 回复功能初始化")
	}

	router := handler.NewRouter(handler.Services{
		Chat:    chatSvc,
		AI:      aiService,
		Emotion: emotionSvc,
		Journey: journey.NewService(repo, journey.Config{
			DefaultLimit: cfg.Journey.DefaultLimit,
			MaxLimit:     cfg.Journey.MaxLimit,
			PreviewLimit: cfg.Journey.PreviewLimit,
		}),
		Analytics: analytics.NewService(repo),
		Settings:  settingsSvc,
		Hub:       hub,
	}, handler.Options{
		Auth:           middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.UserClaim),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger.Component("http"),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("HeartLog backend listening")
		return runServer(gctx, srv, cfg.Server.ShutdownTimeout)
	})
	if cfg.Emotion.BackfillEnabled {
		backfill := emotionservice.NewBackfill(repo, worker, cfg.Emotion.BackfillCron, cfg.Emotion.BackfillBatch)
		g.Go(func() error {
			return backfill.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		return
	}
	log.Info().Msg("shutdown complete")
}

func openStore(ctx context.Context, dbCfg config.DatabaseConfig, log zerolog.Logger) (store.Repository, error) {
	if dbCfg.URL == "" {
		log.Warn().Msg("DATABASE_URL 未配置，使用内存存储，重启后数据会丢失")
		return memory.New(), nil
	}
	pg, err := postgres.Connect(ctx, dbCfg.URL, postgres.Options{MaxConns: dbCfg.MaxConns})
	if err != nil {
		return nil, err
	}
	log.Info().Int32("max_conns", dbCfg.MaxConns).Msg("connected to postgres")
	return pg, nil
}

// newEmotionClassifier 按 EMOTION_PROVIDER 选择大模型分类器，返回 nil 时只使用关键词分类。
func newEmotionClassifier(ctx context.Context, cfg *config.Config, log zerolog.Logger) analysis.Classifier {
	provider := cfg.ResolveProvider()
	switch provider {
	case config.EmotionProviderOpenAI:
		log.Info().Str("provider", provider).Str("model", cfg.OpenAI.Model).Msg("emotion classifier enabled")
		return emotionservice.NewOpenAIClassifier(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	case config.EmotionProviderArk:
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Ark chat model unavailable, falling back to keyword emotion classifier")
			return nil
		}
		classifier, err := emotionservice.NewChainClassifier(ctx, chatModel)
		if err != nil {
			log.Warn().Err(err).Msg("failed to build emotion chain, falling back to keyword emotion classifier")
			return nil
		}
		log.Info().Str("provider", provider).Str("model", cfg.AI.Model).Msg("emotion classifier enabled")
		return classifier
	default:
		log.Info().Msg("emotion classifier uses keyword heuristics only")
		return nil
	}
}

func newAIService(ctx context.Context, aiCfg config.AIConfig, prompts ai.PromptSource) (*ai.Service, error) {
	chatModel, err := aiCfg.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}
	return ai.NewService(ctx, chatModel, prompts, ai.Options{
		Stream:          aiCfg.StreamResponse,
		HistoryLimit:    aiCfg.HistoryLimit,
		EmotionGuidance: aiCfg.EmotionGuidance,
	})
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
