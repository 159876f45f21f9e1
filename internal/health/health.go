package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"streamshare/backend/internal/storage"
)

// Pinger 可被健康检查探测的缓存连接。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker 健康检查器，聚合存储与缓存的存活探测。
type Checker struct {
	handler healthcheck.Handler
	store   storage.Store
	cache   Pinger
	logger  *zap.Logger
}

// NewChecker 创建健康检查器。cache 可以为 nil。
func NewChecker(store storage.Store, cache Pinger, logger *zap.Logger) *Checker {
	c := &Checker{
		handler: healthcheck.NewHandler(),
		store:   store,
		cache:   cache,
		logger:  logger,
	}
	c.addChecks()
	return c
}

// addChecks 注册各项探测。
func (c *Checker) addChecks() {
	c.handler.AddReadinessCheck("storage", func() error {
		return c.store.Health()
	})

	if c.cache != nil {
		c.handler.AddReadinessCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return c.cache.Ping(ctx)
		})
	}

	// 协程数突增通常意味着取码任务泄漏
	c.handler.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(500))
}

// Handler 返回 /live 与 /ready 的 HTTP 处理器。
func (c *Checker) Handler() http.Handler {
	return c.handler
}
