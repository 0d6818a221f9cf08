package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/flowstate-app/gateway/internal/analytics"
	"github.com/flowstate-app/gateway/internal/config"
	"github.com/flowstate-app/gateway/internal/crypto"
	"github.com/flowstate-app/gateway/internal/keystore"
	"github.com/flowstate-app/gateway/internal/logger"
	"github.com/flowstate-app/gateway/internal/platform/otel"
	"github.com/flowstate-app/gateway/internal/provider"
	"github.com/flowstate-app/gateway/internal/ratelimit"
	"github.com/flowstate-app/gateway/internal/registry"
	"github.com/flowstate-app/gateway/internal/router"
	"github.com/flowstate-app/gateway/internal/server"
	"github.com/flowstate-app/gateway/internal/store/cache"
	"github.com/flowstate-app/gateway/internal/store/cache/memory"
	"github.com/flowstate-app/gateway/internal/store/cache/redis"
	"github.com/flowstate-app/gateway/internal/store/sqlite"
	"github.com/flowstate-app/gateway/internal/tokenstore"

	// Adapter packages register themselves with the provider factory.
	_ "github.com/flowstate-app/gateway/internal/provider/anthropic"
	_ "github.com/flowstate-app/gateway/internal/provider/google"
	_ "github.com/flowstate-app/gateway/internal/provider/openai"
)

// catalog is the logical model table. Paid models resolve through
// session-scoped providers built from user keys; free models run on the
// server's own google and huggingface credentials.
var catalog = []registry.Mapping{
	{ModelID: "chatgpt", ProviderID: "openai", UpstreamID: "gpt-4o", DisplayName: "ChatGPT"},
	{ModelID: "claude", ProviderID: "anthropic", UpstreamID: "claude-sonnet-4-20250514", DisplayName: "Claude"},
	{ModelID: "deepseek", ProviderID: "deepseek", UpstreamID: "deepseek-chat", DisplayName: "DeepSeek"},
	{ModelID: "gemini", ProviderID: "google", UpstreamID: "gemini-2.0-flash", DisplayName: "Gemini"},
	{ModelID: "mixtral", ProviderID: "huggingface", UpstreamID: "mistralai/Mixtral-8x7B-Instruct-v0.1", DisplayName: "Mixtral"},
	{ModelID: "llama3", ProviderID: "huggingface", UpstreamID: "meta-llama/Llama-3.1-8B-Instruct", DisplayName: "Llama 3.1"},
	{ModelID: "mistral", ProviderID: "huggingface", UpstreamID: "mistralai/Mistral-7B-Instruct-v0.3", DisplayName: "Mistral"},
	{ModelID: "qwen-coder", ProviderID: "huggingface", UpstreamID: "Qwen/Qwen2.5-Coder-7B-Instruct", DisplayName: "Qwen Coder"},
	{ModelID: "phi3", ProviderID: "huggingface", UpstreamID: "HuggingFaceTB/SmolLM3-3B", DisplayName: "SmolLM3"},
	{ModelID: "codellama", ProviderID: "huggingface", UpstreamID: "codellama/CodeLlama-34b-Instruct-hf", DisplayName: "CodeLlama"},
	{ModelID: "starcoder2", ProviderID: "huggingface", UpstreamID: "bigcode/starcoder2-15b-instruct-v0.1", DisplayName: "StarCoder2"},
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Initialize(logger.DefaultConfig())
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Initialize(logger.DefaultConfig())
	log := logger.Get()
	defer logger.Sync()

	CheckForUpdates()

	if cfg.Tracing.Enabled {
		shutdown, err := otel.InitTracer("gateway", log, os.Stdout)
		if err != nil {
			log.Fatal("failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	vault, err := crypto.NewVault(cfg.Encryption.Secret)
	if err != nil {
		log.Fatal("failed to initialize vault", zap.Error(err))
	}
	keys := keystore.New(vault)
	tokens := tokenstore.New(vault)

	reg := registry.New()
	for _, m := range catalog {
		reg.Register(m)
	}

	rt := router.New(reg, ratelimit.NewTracker())
	serverProviders := []provider.Config{
		{Type: "google", ID: "google", Name: "Google Gemini", APIKey: cfg.Providers.GoogleAIKey},
		{Type: "openai", ID: "huggingface", Name: "Hugging Face", APIKey: cfg.Providers.HFToken, BaseURL: cfg.Providers.HFBaseURL},
	}
	for _, pCfg := range serverProviders {
		p, err := provider.New(pCfg)
		if err != nil {
			log.Error("failed to create provider", zap.String("provider", pCfg.ID), zap.Error(err))
			continue
		}
		rt.RegisterProvider(p)
	}

	var verdictCache cache.Cache
	if cfg.Redis.Enabled {
		redisCache, err := redis.New(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisCache.Close()
		verdictCache = redisCache
	} else {
		verdictCache = memory.New()
	}

	deps := server.Deps{
		Router:   rt,
		Registry: reg,
		Keys:     keys,
		Tokens:   tokens,
		Cache:    verdictCache,
	}

	if cfg.Analytics.Enabled {
		repo, err := sqlite.NewStorage(cfg.Analytics.DSN)
		if err != nil {
			log.Fatal("failed to open analytics store", zap.Error(err))
		}
		defer repo.Close()

		ingestor := analytics.NewIngestor(log, repo)
		ingestor.Start(context.Background())
		defer ingestor.Stop()

		deps.Ingestor = ingestor
		deps.Analytics = analytics.NewService(repo)
	}

	srv := server.New(cfg, log, deps)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting gateway", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
}
