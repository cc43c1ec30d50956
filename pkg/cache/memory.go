package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache 线程安全的内存缓存实现
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*CacheEntry
	maxSize    int64
	hitCount   int64
	missCount  int64
	defaultTTL time.Duration

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	closeOnce     sync.Once
	lastCleanup   time.Time
}

// MemoryCacheConfig 内存缓存配置
type MemoryCacheConfig struct {
	MaxSize         int64         // 最大条目数量
	DefaultTTL      time.Duration // 默认TTL
	CleanupInterval time.Duration // 清理间隔，<=0 时不启动后台清理
}

// DefaultMemoryCacheConfig 目录缓存等长周期数据的默认配置
func DefaultMemoryCacheConfig() MemoryCacheConfig {
	return MemoryCacheConfig{
		MaxSize:         1024,
		DefaultTTL:      12 * time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

// NewMemoryCache 创建新的内存缓存
func NewMemoryCache(config MemoryCacheConfig) *MemoryCache {
	cache := &MemoryCache{
		entries:     make(map[string]*CacheEntry),
		maxSize:     config.MaxSize,
		defaultTTL:  config.DefaultTTL,
		stopCleanup: make(chan struct{}),
		lastCleanup: time.Now(),
	}

	if config.CleanupInterval > 0 {
		cache.cleanupTicker = time.NewTicker(config.CleanupInterval)
		go cache.startCleanup()
	}

	return cache
}

// Get 获取缓存值。命中时更新访问时间，过期条目惰性删除。
func (mc *MemoryCache) Get(ctx context.Context, key string) (interface{}, error) {
	now := time.Now()

	mc.mu.Lock()
	entry, exists := mc.entries[key]
	if exists && entry.ExpireTime.Before(now) {
		// 惰性过期
		delete(mc.entries, key)
		exists = false
	}
	if !exists {
		mc.mu.Unlock()
		atomic.AddInt64(&mc.missCount, 1)
		return nil, ErrCacheMissNotFound
	}

	entry.AccessTime = now
	value := entry.Value
	mc.mu.Unlock()

	atomic.AddInt64(&entry.HitCount, 1)
	atomic.AddInt64(&mc.hitCount, 1)
	return value, nil
}

// Set 设置缓存值
func (mc *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = mc.defaultTTL
	}

	now := time.Now()
	entry := &CacheEntry{
		Value:      value,
		ExpireTime: now.Add(ttl),
		AccessTime: now,
		CreateTime: now,
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if int64(len(mc.entries)) >= mc.maxSize {
		mc.evictOldest()
	}

	mc.entries[key] = entry
	return nil
}

// Delete 删除缓存值
func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	delete(mc.entries, key)
	return nil
}

// Clear 清空缓存
func (mc *MemoryCache) Clear(ctx context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries = make(map[string]*CacheEntry)
	atomic.StoreInt64(&mc.hitCount, 0)
	atomic.StoreInt64(&mc.missCount, 0)
	return nil
}

// Stats 获取缓存统计信息
func (mc *MemoryCache) Stats() CacheStats {
	mc.mu.RLock()
	size := int64(len(mc.entries))
	mc.mu.RUnlock()

	hitCount := atomic.LoadInt64(&mc.hitCount)
	missCount := atomic.LoadInt64(&mc.missCount)

	var hitRate float64
	if total := hitCount + missCount; total > 0 {
		hitRate = float64(hitCount) / float64(total)
	}

	return CacheStats{
		Size:        size,
		MaxSize:     mc.maxSize,
		HitCount:    hitCount,
		MissCount:   missCount,
		HitRate:     hitRate,
		TTL:         mc.defaultTTL,
		LastCleanup: mc.lastCleanup,
	}
}

// Close 关闭缓存，停止后台清理。可重复调用。
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() {
		if mc.cleanupTicker != nil {
			mc.cleanupTicker.Stop()
		}
		close(mc.stopCleanup)
	})
	return nil
}

func (mc *MemoryCache) startCleanup() {
	for {
		select {
		case <-mc.cleanupTicker.C:
			mc.cleanup()
		case <-mc.stopCleanup:
			return
		}
	}
}

// cleanup 清理过期条目
func (mc *MemoryCache) cleanup() {
	now := time.Now()
	expiredKeys := make([]string, 0)

	mc.mu.RLock()
	for key, entry := range mc.entries {
		if entry.ExpireTime.Before(now) {
			expiredKeys = append(expiredKeys, key)
		}
	}
	mc.mu.RUnlock()

	if len(expiredKeys) > 0 {
		mc.mu.Lock()
		for _, key := range expiredKeys {
			delete(mc.entries, key)
		}
		mc.lastCleanup = now
		mc.mu.Unlock()
	}
}

// evictOldest 淘汰创建时间最早的条目
func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range mc.entries {
		if oldestKey == "" || entry.CreateTime.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.CreateTime
		}
	}

	if oldestKey != "" {
		delete(mc.entries, oldestKey)
	}
}

var _ Cache = (*MemoryCache)(nil)
