package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	analyticsHandler "github.com/zhouzirui/heartlog/backend/internal/handler/analytics"
	chatHandler "github.com/zhouzirui/heartlog/backend/internal/handler/chat"
	emotionHandler "github.com/zhouzirui/heartlog/backend/internal/handler/emotion"
	journeyHandler "github.com/zhouzirui/heartlog/backend/internal/handler/journey"
	realtimeHandler "github.com/zhouzirui/heartlog/backend/internal/handler/realtime"
	settingsHandler "github.com/zhouzirui/heartlog/backend/internal/handler/settings"
	"github.com/zhouzirui/heartlog/backend/internal/handler/stream"
	"github.com/zhouzirui/heartlog/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/heartlog/backend/internal/middleware"
	"github.com/zhouzirui/heartlog/backend/internal/realtime"
	aiService "github.com/zhouzirui/heartlog/backend/internal/service/ai"
	analyticsService "github.com/zhouzirui/heartlog/backend/internal/service/analytics"
	chatService "github.com/zhouzirui/heartlog/backend/internal/service/chat"
	emotionService "github.com/zhouzirui/heartlog/backend/internal/service/emotion"
	journeyService "github.com/zhouzirui/heartlog/backend/internal/service/journey"
	settingsService "github.com/zhouzirui/heartlog/backend/internal/service/settings"
	"github.com/zhouzirui/heartlog/backend/pkg/utils"
)

// Services bundles everything the HTTP layer serves. AI may be nil.
type Services struct {
	Chat      *chatService.Service
	AI        *aiService.Service
	Emotion   *emotionService.Service
	Journey   *journeyService.Service
	Analytics *analyticsService.Service
	Settings  *settingsService.Service
	Hub       *realtime.Hub
}

// Options configures cross-cutting HTTP behaviour.
type Options struct {
	Auth           *middlewarePkg.Authenticator
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svcs Services, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondData(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(opts.Auth.Middleware)

		// SSE 与 WebSocket 是长连接，不受请求超时约束
		api.Group(func(long chi.Router) {
			stream.New(svcs.AI, svcs.Emotion, svcs.Chat).RegisterRoutes(long)
			realtimeHandler.NewWebSocketHandler(svcs.Hub, opts.AllowedOrigins).RegisterRoutes(long)
		})

		api.Group(func(rest chi.Router) {
			if opts.RequestTimeout > 0 {
				rest.Use(middleware.Timeout(opts.RequestTimeout))
			}
			chatHandler.New(svcs.Chat).RegisterRoutes(rest)
			journeyHandler.New(svcs.Journey).RegisterRoutes(rest)
			analyticsHandler.New(svcs.Analytics).RegisterRoutes(rest)
			settingsHandler.New(svcs.Settings).RegisterRoutes(rest)
			emotionHandler.New(svcs.Emotion).RegisterRoutes(rest)
		})
	})

	return r
}
