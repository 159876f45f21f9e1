package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"streamshare/backend/internal/auth"
	jwtpkg "streamshare/backend/internal/auth/jwt"
	"streamshare/backend/internal/config"
	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/health"
	"streamshare/backend/internal/logger"
	"streamshare/backend/internal/mailfetch"
	"streamshare/backend/internal/monitoring"
	"streamshare/backend/internal/pool"
	"streamshare/backend/internal/service"
	"streamshare/backend/internal/storage"
	"streamshare/backend/internal/storage/hybrid"
	"streamshare/backend/internal/storage/memory"
	redisstore "streamshare/backend/internal/storage/redis"
	sqlstore "streamshare/backend/internal/storage/sql"
	httptransport "streamshare/backend/internal/transport/http"
	"streamshare/backend/internal/websocket"
)

// main 启动验证码中转服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()
	log.Info("starting streamshare server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// 取件互斥注册表：默认进程内，启用 Redis 后叠加跨进程互斥
	var registry mailfetch.AttemptRegistry = mailfetch.NewMemoryRegistry()
	var cache *redisstore.Cache
	if cfg.Redis.Enabled {
		cache, err = redisstore.NewCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		store = hybrid.New(store, cache, log)
		registry = mailfetch.NewLayeredRegistry(registry, cache)
		log.Info("redis cache enabled", zap.String("address", cfg.Redis.Address))
	}

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	var pinger health.Pinger
	if cache != nil {
		pinger = cache
	}
	healthChecker := health.NewChecker(store, pinger, log)

	// WebSocket Hub（验证码就绪推送）
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, log)

	// 取件链路：传输 -> 识别 -> 编排 -> 落库
	httpTransport := mailfetch.NewHTTPTransport(cfg.Fetch.TransportTimeout)
	imapTransport := mailfetch.NewIMAPTransport(
		cfg.Fetch.TransportTimeout,
		mailfetch.WithIMAPLookback(cfg.Fetch.IMAPLookback),
	)
	transports := map[domain.TransportKind]mailfetch.Transport{
		domain.TransportCustomHTTP: httpTransport,
		domain.TransportVendorHTTP: httpTransport,
		domain.TransportWebhook:    httpTransport,
		domain.TransportIMAP:       imapTransport,
	}

	classifier := mailfetch.NewClassifier(cfg.Classifier.ServiceDomains, cfg.Classifier.Keywords)
	codeStore := service.NewCodeStore(store, wsHub, log)
	orchestrator := mailfetch.NewOrchestrator(
		transports,
		classifier,
		registry,
		codeStore,
		metrics,
		mailfetch.Options{
			PollInterval:     cfg.Fetch.PollInterval,
			MaxAttempts:      cfg.Fetch.MaxAttempts,
			Timeout:          cfg.Fetch.AcquireTimeout,
			FallbackValidity: cfg.Fetch.FallbackValidity,
			DefaultValidity:  cfg.Fetch.CodeValidity,
		},
		log,
	)

	// 初始化服务层
	workers := pool.NewWorkerPool(cfg.Fetch.Workers, cfg.Fetch.QueueSize, log)
	verifyService := service.NewVerifyService(store, codeStore, orchestrator, workers, cfg.Fetch.EstimatedWait, log)
	accountService := service.NewAccountService(store, transports, classifier, log)
	sharePageService := service.NewSharePageService(store, store, log)

	// 初始化认证服务
	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authService := auth.NewService(store, jwtManager)

	// 创建 HTTP 路由
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		AccountService: accountService,
		SharePages:     sharePageService,
		VerifyService:  verifyService,
		AuthService:    authService,
		JWTManager:     jwtManager,
		WebSocketHub:   wsHub,
		Metrics:        metrics,
		HealthChecker:  healthChecker,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// 取码协程池
	workers.Start(groupCtx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 定时清理过期验证码 goroutine
	group.Go(func() error {
		log.Info("starting expired code cleanup task",
			zap.Duration("interval", cfg.Fetch.CleanupInterval),
		)
		codeStore.RunCleanupLoop(groupCtx, cfg.Fetch.CleanupInterval)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		workers.Stop()

		if err := store.Close(); err != nil {
			log.Warn("storage close warning", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
