package cache

import (
	"sync"
	"time"
)

// LocalCache 进程内 TTL 缓存。
//
// 用 sync.Map 做无锁读取，后台协程定期清理过期条目。
// 分享页按码查询走这一层，公网轮询不会每次都打到数据库。
type LocalCache struct {
	data sync.Map
	ttl  time.Duration
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存，ttl 为默认过期时间。
func NewLocalCache(ttl time.Duration) *LocalCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	c := &LocalCache{ttl: ttl}
	go c.cleanupLoop()
	return c
}

// Get 获取缓存值，过期条目按未命中处理并顺手删除。
func (c *LocalCache) Get(key string) (interface{}, bool) {
	val, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}

	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.data.Delete(key)
		return nil, false
	}
	return entry.value, true
}

// Set 设置缓存值。ttl 为 0 时使用默认值。
func (c *LocalCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.data.Store(key, &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
}

// Delete 删除缓存值。
func (c *LocalCache) Delete(key string) {
	c.data.Delete(key)
}

// cleanupLoop 定期扫除过期条目，防止冷 key 占住内存。
func (c *LocalCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.data.Range(func(key, val interface{}) bool {
			if entry := val.(*cacheEntry); now.After(entry.expiresAt) {
				c.data.Delete(key)
			}
			return true
		})
	}
}
