package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/storage"
)

// Cache 验证码的 Redis 缓存与取件在途标记实现。
type Cache struct {
	client *goredis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例。
func NewCache(addr, password string, db int) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx := context.Background()

	// 测试连接
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client, ctx: ctx}, nil
}

// codeKey 验证码缓存键：code:账号ID:用途。
func codeKey(accountID string, purpose domain.CodePurpose) string {
	return fmt.Sprintf("code:%s:%s", accountID, purpose)
}

// attemptKey 取件在途标记键。
func attemptKey(key string) string {
	return fmt.Sprintf("attempt:%s", key)
}

// ========== 验证码缓存 ==========

// CacheCode 缓存验证码记录，TTL 与记录剩余有效期一致。
func (c *Cache) CacheCode(code *domain.VerificationCode) error {
	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(code)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, codeKey(code.AccountID, code.Purpose), data, ttl).Err()
}

// GetCachedCode 读取缓存的验证码记录。
// 缓存命中但记录已不可用（已消费后未及时失效）时视为未命中。
func (c *Cache) GetCachedCode(accountID string, purpose domain.CodePurpose) (*domain.VerificationCode, error) {
	data, err := c.client.Get(c.ctx, codeKey(accountID, purpose)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, storage.ErrCodeNotFound
		}
		return nil, err
	}

	var code domain.VerificationCode
	if err := json.Unmarshal([]byte(data), &code); err != nil {
		return nil, err
	}
	if !code.Usable(time.Now().UTC()) {
		return nil, storage.ErrCodeNotFound
	}
	return &code, nil
}

// InvalidateCode 删除验证码缓存（消费后调用）。
func (c *Cache) InvalidateCode(accountID string, purpose domain.CodePurpose) error {
	return c.client.Del(c.ctx, codeKey(accountID, purpose)).Err()
}

// ========== 取件在途标记（跨进程互斥） ==========
//
// 多副本部署时进程内注册表不足以互斥，用 SETNX + TTL 兜底：
// TTL 略长于取码超时，异常退出的进程不会永久占锁。

// AttemptTTL 在途标记的保底生存时间。
const AttemptTTL = 6 * time.Minute

// TryAcquire 原子登记取件标记，已在途时返回 false。
func (c *Cache) TryAcquire(key string) bool {
	ok, err := c.client.SetNX(c.ctx, attemptKey(key), 1, AttemptTTL).Result()
	if err != nil {
		// Redis 不可用时放行，由进程内注册表兜底
		return true
	}
	return ok
}

// Release 清除取件标记。
func (c *Cache) Release(key string) {
	_ = c.client.Del(c.ctx, attemptKey(key)).Err()
}

// InFlight 查询取件标记是否存在。
func (c *Cache) InFlight(key string) bool {
	n, err := c.client.Exists(c.ctx, attemptKey(key)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// Ping 测试 Redis 连通性。
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭 Redis 连接。
func (c *Cache) Close() error {
	return c.client.Close()
}
