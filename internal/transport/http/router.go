package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamshare/backend/internal/auth"
	jwtpkg "streamshare/backend/internal/auth/jwt"
	"streamshare/backend/internal/config"
	"streamshare/backend/internal/health"
	"streamshare/backend/internal/middleware"
	"streamshare/backend/internal/monitoring"
	"streamshare/backend/internal/service"
	"streamshare/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	AccountService *service.AccountService
	SharePages     *service.SharePageService
	VerifyService  *service.VerifyService
	AuthService    *auth.Service
	JWTManager     *jwtpkg.Manager
	WebSocketHub   *websocket.Hub
	Metrics        *monitoring.Metrics
	HealthChecker  *health.Checker
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(monitor.HTTPMetrics())

	// 取码系统的请求体都很小，1MB 足够
	router.Use(middleware.RequestSizeLimit(1 << 20))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	shareHandler := NewShareHandler(deps.SharePages, deps.VerifyService, deps.WebSocketHub, deps.Logger)
	adminHandler := NewAdminHandler(deps.AccountService, deps.SharePages, deps.VerifyService, deps.Logger)
	authHandler := NewAuthHandler(deps.AuthService)

	// 创建中间件
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)
	rateLimiter := middleware.NewRateLimiter(deps.Config.RateLimit.PerMinute, deps.Config.RateLimit.Burst, deps.Metrics)

	// 运维端点
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	if deps.HealthChecker != nil {
		healthHandler := gin.WrapH(deps.HealthChecker.Handler())
		router.GET("/live", healthHandler)
		router.GET("/ready", healthHandler)
	}

	// ========== 分享页公开接口（限流） ==========
	share := router.Group("/share", rateLimiter.Limit())
	{
		share.GET("/:code", shareHandler.getPage)
		share.POST("/:code/access", shareHandler.access)
		share.POST("/:code/activate", shareHandler.activate)
		share.POST("/:code/verify-code", shareHandler.requestCode)
		share.GET("/:code/verify-code-status", shareHandler.codeStatus)
		share.GET("/:code/ws", shareHandler.serveWS)
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/login", authHandler.login)
			authRoutes.POST("/refresh", authHandler.refresh)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.me)
		}

		// ========== Admin Routes ==========
		admin := v1.Group("/admin", jwtAuth.RequireAuth())
		{
			admin.POST("/accounts", adminHandler.createAccount)
			admin.GET("/accounts", adminHandler.listAccounts)
			admin.GET("/accounts/:id", adminHandler.getAccount)
			admin.PUT("/accounts/:id", adminHandler.updateAccount)
			admin.DELETE("/accounts/:id", adminHandler.deleteAccount)
			admin.POST("/accounts/:id/mailbox/test", adminHandler.testMailbox)
			admin.POST("/accounts/:id/verify-code", adminHandler.requestCode)
			admin.GET("/accounts/:id/verify-code-status", adminHandler.codeStatus)

			admin.POST("/share-pages", adminHandler.createSharePage)
			admin.GET("/share-pages", adminHandler.listSharePages)
			admin.GET("/share-pages/:id", adminHandler.getSharePage)
			admin.DELETE("/share-pages/:id", adminHandler.deleteSharePage)
		}
	}

	return router
}
