package server

import (
	"net/http"
	"time"

	"github.com/flowstate-app/gateway/internal/server/middleware"
	v1 "github.com/flowstate-app/gateway/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.engine.Use(middleware.CORS(s.config.Server.ClientURL))
	s.engine.Use(middleware.Session())
	if s.config.Tracing.Enabled {
		s.engine.Use(middleware.Tracing("gateway"))
	}

	limiter := middleware.NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst, s.logger)
	s.engine.Use(limiter.Middleware())

	httpClient := &http.Client{Timeout: 30 * time.Second}

	healthHandler := v1.NewHealthHandler(s.deps.Router)
	s.engine.GET("/api/health", healthHandler.Health)

	api := s.engine.Group("/api")
	{
		chatHandler := v1.NewChatHandler(s.deps.Router, s.deps.Registry, s.deps.Keys, s.deps.Ingestor)
		api.POST("/chat", chatHandler.Chat)
		api.POST("/chat/stream", chatHandler.Stream)

		modelHandler := v1.NewModelHandler(s.deps.Router)
		api.GET("/models", modelHandler.List)
		api.GET("/models/status", modelHandler.Status)

		keysHandler := v1.NewKeysHandler(s.deps.Keys, s.deps.Registry, s.deps.Cache, httpClient)
		api.POST("/keys", keysHandler.Submit)
		api.GET("/keys/status", keysHandler.Status)
		api.DELETE("/keys/:provider", keysHandler.Remove)

		runHandler := v1.NewRunHandler(s.config.Judge0, httpClient)
		api.POST("/run", runHandler.Run)

		spotifyHandler := v1.NewSpotifyHandler(s.config.Spotify, s.config.Server.ClientURL, s.deps.Tokens)
		spotify := api.Group("/spotify")
		{
			spotify.GET("/auth", spotifyHandler.Auth)
			spotify.GET("/callback", spotifyHandler.Callback)
			spotify.GET("/status", spotifyHandler.Status)
			spotify.GET("/now-playing", spotifyHandler.NowPlaying)
			spotify.PUT("/play", spotifyHandler.Play)
			spotify.PUT("/pause", spotifyHandler.Pause)
			spotify.POST("/next", spotifyHandler.Next)
			spotify.POST("/previous", spotifyHandler.Previous)
			spotify.POST("/disconnect", spotifyHandler.Disconnect)
		}

		if s.deps.Analytics != nil {
			analyticsHandler := v1.NewAnalyticsHandler(s.deps.Analytics)
			api.GET("/usage", analyticsHandler.Usage)
			api.GET("/usage/recent", analyticsHandler.Recent)
		}
	}
}
