package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VeritasFi/aegis/internal/config"
	"github.com/VeritasFi/aegis/internal/handler"
	"github.com/VeritasFi/aegis/internal/keeper"
	"github.com/VeritasFi/aegis/internal/middleware"
	"github.com/VeritasFi/aegis/internal/mlrisk"
	"github.com/VeritasFi/aegis/internal/pkg/logger"
	"github.com/VeritasFi/aegis/internal/repository"
	"github.com/VeritasFi/aegis/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Server.LogLevel)

	// Idempotency persistence (Redis > Memory)
	var idempotencyStore middleware.IdempotencyStore
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("Connected to Redis")
			ttl := time.Duration(cfg.Redis.IdempotencyTTLSeconds) * time.Second
			idempotencyStore = repository.NewRedisIdempotencyStore(redisClient, ttl)
		} else {
			logger.Error("Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if idempotencyStore == nil {
		idempotencyStore = middleware.NewInMemIdempotencyStore()
	}

	// Event persistence (Postgres > Local file only)
	var eventRepo service.EventRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("Connected to PostgreSQL")
			eventRepo = repository.NewPostgresEventRepo(db)
		} else {
			logger.Error("Failed to connect to DB, events will be file-only", "error", err)
		}
	}

	hub := service.NewHub()
	eventSvc, err := service.NewEventService(cfg.Server.AuditDir, eventRepo, hub)
	if err != nil {
		log.Fatalf("Failed to initialize event service: %v", err)
	}

	protocol, err := service.NewProtocol(cfg, eventSvc)
	if err != nil {
		log.Fatalf("Failed to initialize protocol: %v", err)
	}

	// Embedded keeper (optional)
	var bot *keeper.Bot
	if cfg.Keeper.Enabled {
		engine := mlrisk.NewClient(cfg.Keeper.MLEndpoint)
		bot = keeper.New(cfg.Keeper, engine, protocol.Strategy, protocol.StrategyKeeper,
			protocol.Assets, protocol.AssetOracle, protocol.Registry)
		if err := bot.Start(); err != nil {
			log.Fatalf("Failed to start keeper: %v", err)
		}
	}

	complianceHandler := handler.NewComplianceHandler(protocol)
	poolHandler := handler.NewPoolHandler(protocol)
	strategyHandler := handler.NewStrategyHandler(protocol)
	eventsHandler := handler.NewEventsHandler(eventSvc, hub)

	r := gin.Default()

	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RequestLogMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "aegis"})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.RoleAuthMiddleware(cfg))
	v1.Use(middleware.RateLimitMiddleware(cfg))
	v1.Use(middleware.IdempotencyMiddleware(idempotencyStore))
	{
		// compliance ledger
		v1.POST("/compliance/profiles", middleware.RequireRoles(middleware.RoleIssuer), complianceHandler.IssueProfile)
		v1.POST("/compliance/profiles/:addr/upgrade", middleware.RequireRoles(middleware.RoleIssuer), complianceHandler.UpgradeTier)
		v1.POST("/compliance/profiles/:addr/revoke", middleware.RequireRoles(middleware.RoleIssuer), complianceHandler.Revoke)
		v1.POST("/compliance/profiles/:addr/investments", middleware.RequireRoles(middleware.RoleVault), complianceHandler.RecordInvestment)
		v1.GET("/compliance/profiles/:addr", complianceHandler.GetProfile)
		v1.GET("/compliance/profiles/:addr/can-invest", complianceHandler.CanInvest)

		// synthetic asset ledger
		v1.POST("/pools", middleware.RequireRoles(middleware.RoleIssuer), poolHandler.InitializePool)
		v1.POST("/pools/:id/nav", middleware.RequireRoles(middleware.RoleOracle), poolHandler.UpdateNAV)
		v1.POST("/pools/:id/cash-flows", middleware.RequireRoles(middleware.RoleOracle), poolHandler.RecordCashFlow)
		v1.POST("/pools/:id/defaults", middleware.RequireRoles(middleware.RoleOracle), poolHandler.RecordDefault)
		v1.POST("/pools/:id/mint", middleware.RequireRoles(middleware.RoleIssuer), poolHandler.Mint)
		v1.POST("/pools/:id/burn", middleware.RequireRoles(middleware.RoleIssuer), poolHandler.Burn)
		v1.POST("/pools/:id/transfers", poolHandler.Transfer)
		v1.POST("/pools/:id/approvals", poolHandler.Approve)
		v1.POST("/pools/:id/transfer-from", poolHandler.TransferFrom)
		v1.POST("/pools/:id/whitelist", middleware.RequireRoles(middleware.RoleAdmin), poolHandler.SetWhitelist)
		v1.GET("/pools", poolHandler.ListPools)
		v1.GET("/pools/:id", poolHandler.GetPool)
		v1.GET("/pools/:id/balances/:addr", poolHandler.GetBalance)

		// leverage position ledger
		v1.POST("/strategies/:id/collateral", middleware.RequireRoles(middleware.RoleVault), strategyHandler.SupplyCollateral)
		v1.POST("/strategies/:id/borrow", middleware.RequireRoles(middleware.RoleKeeper), strategyHandler.Borrow)
		v1.POST("/strategies/:id/deploy", middleware.RequireRoles(middleware.RoleKeeper), strategyHandler.Deploy)
		v1.POST("/strategies/:id/harvest", middleware.RequireRoles(middleware.RoleKeeper), strategyHandler.Harvest)
		v1.POST("/strategies/:id/repay", middleware.RequireRoles(middleware.RoleKeeper), strategyHandler.Repay)
		v1.POST("/strategies/:id/deleverage", middleware.RequireRoles(middleware.RoleKeeper), strategyHandler.Deleverage)
		v1.POST("/strategies/:id/pause", middleware.RequireRoles(middleware.RoleKeeper), strategyHandler.SetPaused)
		v1.POST("/strategies/:id/refresh-health", middleware.RequireRoles(middleware.RoleKeeper), strategyHandler.RefreshHealth)
		v1.GET("/strategies/:id/metrics", strategyHandler.Metrics)

		// event log
		v1.GET("/events", eventsHandler.List)
		v1.GET("/events/stream", eventsHandler.Stream)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Aegis started", "port", cfg.Server.Port, "keeper_enabled", cfg.Keeper.Enabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if bot != nil {
		bot.Stop()
	}
	eventSvc.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}
