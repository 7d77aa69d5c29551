package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"transfermarket/internal/config"
	cronrunner "transfermarket/internal/cron"
	"transfermarket/internal/db"
	"transfermarket/internal/decision"
	"transfermarket/internal/feed"
	"transfermarket/internal/handler"
	"transfermarket/internal/logger"
	gormrepository "transfermarket/internal/repository/gorm"
	"transfermarket/internal/service"
)

func main() {
	cfgPath := os.Getenv("TM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("TM_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	hub := feed.NewHub(logger, cfg.Feed.Buffer)

	provider := buildProvider(cfg, logger)
	engineSvc := &service.MarketService{
		Store:    store,
		Provider: provider,
		Feed:     hub,
		Logger:   logger,
		Market:   cfg.Market,
		Decision: cfg.Decision,
	}
	querySvc := &service.MarketQueryService{Store: store}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Hub: hub}
	healthHandler.Register(engine)
	marketHandler := &handler.MarketHandler{Engine: engineSvc, Query: querySvc}
	marketHandler.Register(engine)
	leagueHandler := &handler.LeagueHandler{Query: querySvc}
	leagueHandler.Register(engine)
	if cfg.Feed.Enabled {
		feedHandler := &handler.FeedHandler{Hub: hub}
		feedHandler.Register(engine)
	}

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		seasonID := strings.TrimSpace(os.Getenv("TM_SEASON_ID"))
		if seasonID == "" {
			logger.Warn("cron enabled but TM_SEASON_ID unset, tick job skipped")
		} else {
			_, err := cronRunner.Add(cfg.Cron.TickSpec, func(ctx context.Context) {
				result, err := engineSvc.Tick(ctx, seasonID)
				if err != nil {
					logger.Warn("cron tick failed", zap.Error(err))
					return
				}
				if result.Finished {
					logger.Info("window complete, nothing to tick",
						zap.String("season_id", seasonID))
				}
			})
			if err != nil {
				logger.Warn("cron register tick failed", zap.Error(err))
			}
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildProvider(cfg config.Config, logger *zap.Logger) decision.Provider {
	var provider decision.Provider
	switch strings.ToLower(strings.TrimSpace(cfg.Decision.Mode)) {
	case "llm":
		client := decision.NewClient(cfg.Decision.LLM, logger)
		if client.Enabled() {
			provider = decision.NewLLM(client)
			logger.Info("decision provider: llm", zap.String("model", cfg.Decision.LLM.Model))
		} else {
			logger.Warn("llm mode requested but no api key, using heuristic provider")
			provider = decision.NewHeuristic()
		}
	default:
		provider = decision.NewHeuristic()
		logger.Info("decision provider: heuristic")
	}
	return decision.WithTimeout(provider, cfg.Decision.Timeout)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
