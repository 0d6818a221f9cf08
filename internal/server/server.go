package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flowstate-app/gateway/internal/analytics"
	"github.com/flowstate-app/gateway/internal/config"
	"github.com/flowstate-app/gateway/internal/keystore"
	"github.com/flowstate-app/gateway/internal/registry"
	"github.com/flowstate-app/gateway/internal/router"
	"github.com/flowstate-app/gateway/internal/server/validator"
	"github.com/flowstate-app/gateway/internal/store/cache"
	"github.com/flowstate-app/gateway/internal/tokenstore"
)

// Deps carries the wired application services into the HTTP layer.
// Analytics and Ingestor are nil when analytics is disabled.
type Deps struct {
	Router    *router.Router
	Registry  *registry.Registry
	Keys      *keystore.Store
	Tokens    *tokenstore.Store
	Cache     cache.Cache
	Analytics analytics.Service
	Ingestor  analytics.Ingestor
}

type Server struct {
	engine *gin.Engine
	config *config.Config
	logger *zap.Logger
	deps   Deps
}

func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(logger, true))

	validator.Init()

	s := &Server{
		engine: engine,
		config: cfg,
		logger: logger,
		deps:   deps,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}
