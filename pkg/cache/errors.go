package cache

import (
	"marketstate/pkg/error"
)

type CacheError struct {
	error.BaseError
}

const (
	// ErrCacheMiss 表示在缓存中未找到请求的条目。
	ErrCacheMiss error.ErrorCode = "CACHE_MISS"
	// ErrCacheFull 表示缓存已满，无法添加新条目。
	ErrCacheFull error.ErrorCode = "CACHE_FULL"
)

var (
	ErrCacheMissNotFound = NewCacheError(ErrCacheMiss, "cache entry not found")
)

func NewCacheError(code error.ErrorCode, message string) *CacheError {
	return &CacheError{
		BaseError: *error.NewError(code, message),
	}
}
