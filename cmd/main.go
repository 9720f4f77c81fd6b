package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-screener/internal/api"
	"call-screener/internal/cache"
	"call-screener/internal/config"
	"call-screener/internal/contacts"
	"call-screener/internal/metrics"
	"call-screener/internal/normalize"
	"call-screener/internal/repository"
	"call-screener/internal/reputation"
	"call-screener/internal/screening"
	"call-screener/internal/stats"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Configuration
		fx.Provide(config.NewConfig),

		// Logging
		fx.Provide(NewLogger),

		// Database
		fx.Provide(repository.NewPostgresDB),
		fx.Provide(repository.NewRuleRepository),
		fx.Provide(repository.NewHistoryRepository),

		// Cache
		fx.Provide(cache.NewRedisClient),
		fx.Provide(cache.NewResultCache),

		// Screening
		fx.Provide(normalize.NewNormalizer),
		fx.Provide(contacts.NewClient),
		fx.Provide(reputation.NewClient),
		fx.Provide(reputation.NewAnalyzer),
		fx.Provide(screening.NewEngine),
		fx.Provide(stats.NewService),

		// Metrics
		fx.Provide(metrics.NewCollector),

		// API
		fx.Provide(NewGinEngine),
		fx.Provide(api.NewScreenHandler),
		fx.Provide(api.NewRuleHandler),
		fx.Provide(api.NewHistoryHandler),
		fx.Provide(api.NewReputationHandler),
		fx.Provide(api.NewHealthHandler),

		// HTTP Server
		fx.Provide(NewHTTPServer),

		// Lifecycle
		fx.Invoke(RegisterRoutes),
		fx.Invoke(StartServer),
		fx.Invoke(StopAnalyzer),
	)

	app.Run()
}

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if !cfg.Logging.Development {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func NewGinEngine(cfg *config.Config) *gin.Engine {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	// CORS middleware
	engine.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	return engine
}

func NewHTTPServer(cfg *config.Config, engine *gin.Engine) *http.Server {
	return &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        engine,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
}

func RegisterRoutes(
	engine *gin.Engine,
	screenHandler *api.ScreenHandler,
	ruleHandler *api.RuleHandler,
	historyHandler *api.HistoryHandler,
	reputationHandler *api.ReputationHandler,
	healthHandler *api.HealthHandler,
	cfg *config.Config,
) {
	// Health endpoints
	engine.GET("/health", healthHandler.Health)
	engine.GET("/health/ready", healthHandler.Ready)
	engine.GET("/health/live", healthHandler.Live)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	// API v1 routes
	v1 := engine.Group("/api/v1")
	{
		// Screening
		v1.POST("/screen", screenHandler.Screen)

		// Rule management
		v1.GET("/rules", ruleHandler.ListRules)
		v1.POST("/rules", ruleHandler.CreateRule)
		v1.PUT("/rules/reorder", ruleHandler.ReorderRules)
		v1.PUT("/rules/:id", ruleHandler.UpdateRule)
		v1.DELETE("/rules/:id", ruleHandler.DeleteRule)

		// History
		v1.GET("/history", historyHandler.ListHistory)
		v1.DELETE("/history", historyHandler.ClearHistory)
		v1.POST("/history/:timestamp/reanalyze", historyHandler.Reanalyze)
		v1.GET("/stats", historyHandler.GetStats)

		// Reputation administration
		v1.POST("/reputation/verify-key", reputationHandler.VerifyKey)
	}
}

func StartServer(
	lc fx.Lifecycle,
	server *http.Server,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting call screener service",
				zap.String("addr", server.Addr))

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("failed to start server", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down call screener service")

			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			return server.Shutdown(shutdownCtx)
		},
	})

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("received shutdown signal")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}()
}

// StopAnalyzer drains the analysis queue on shutdown so in-flight jobs get
// their results recorded.
func StopAnalyzer(lc fx.Lifecycle, analyzer *reputation.Analyzer) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			analyzer.Close()
			return nil
		},
	})
}
