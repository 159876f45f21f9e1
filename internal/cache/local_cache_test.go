package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCache(t *testing.T) {
	t.Run("写入后可读取", func(t *testing.T) {
		c := NewLocalCache(time.Minute)
		c.Set("k", "v", 0)

		val, ok := c.Get("k")
		require.True(t, ok)
		assert.Equal(t, "v", val)
	})

	t.Run("过期条目按未命中处理", func(t *testing.T) {
		c := NewLocalCache(time.Minute)
		c.Set("k", "v", 10*time.Millisecond)

		time.Sleep(30 * time.Millisecond)
		_, ok := c.Get("k")
		assert.False(t, ok)
	})

	t.Run("ttl 为零时使用默认值", func(t *testing.T) {
		c := NewLocalCache(time.Hour)
		c.Set("k", "v", 0)

		time.Sleep(20 * time.Millisecond)
		_, ok := c.Get("k")
		assert.True(t, ok)
	})

	t.Run("删除后不可读取", func(t *testing.T) {
		c := NewLocalCache(time.Minute)
		c.Set("k", "v", 0)
		c.Delete("k")

		_, ok := c.Get("k")
		assert.False(t, ok)
	})

	t.Run("覆盖写入更新值与过期时间", func(t *testing.T) {
		c := NewLocalCache(time.Minute)
		c.Set("k", "old", 10*time.Millisecond)
		c.Set("k", "new", time.Minute)

		time.Sleep(30 * time.Millisecond)
		val, ok := c.Get("k")
		require.True(t, ok)
		assert.Equal(t, "new", val)
	})
}
