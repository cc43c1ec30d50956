package exchange

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"marketstate/pkg/cache"
	"marketstate/pkg/logger"
	"marketstate/pkg/provider"
)

const directoryCacheKey = "exchange:directory:symbols"

// DefaultDirectoryTTL 上市代码目录的默认缓存时长。
// 代码全集盘中不会变化，按半天刷新足够。
const DefaultDirectoryTTL = 12 * time.Hour

// SSEListing 上交所上市代码来源
type SSEListing interface {
	Listing(ctx context.Context) ([]string, error)
}

// SZSEListing 深交所上市代码来源
type SZSEListing interface {
	Listing(ctx context.Context) ([]string, error)
}

// Directory 聚合沪深两所上市A股代码的目录，结果进TTL缓存。
// 单所失败时降级为另一所的代码集，两所全部失败才报错。
type Directory struct {
	sse   SSEListing
	szse  SZSEListing
	cache cache.Cache
	ttl   time.Duration
	log   *logrus.Entry
}

// NewDirectory 创建代码目录。c 为 nil 时不做缓存。
func NewDirectory(sse SSEListing, szse SZSEListing, c cache.Cache, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = DefaultDirectoryTTL
	}
	return &Directory{
		sse:   sse,
		szse:  szse,
		cache: c,
		ttl:   ttl,
		log:   logger.WithComponent("SymbolDirectory"),
	}
}

// Symbols 返回去重排序后的全市场A股代码列表
func (d *Directory) Symbols(ctx context.Context) ([]string, error) {
	if d.cache != nil {
		if v, err := d.cache.Get(ctx, directoryCacheKey); err == nil {
			if symbols, ok := v.([]string); ok && len(symbols) > 0 {
				return symbols, nil
			}
		}
	}

	symbols, err := d.fetch(ctx)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, directoryCacheKey, symbols, d.ttl); err != nil {
			d.log.Warnf("目录缓存写入失败: %v", err)
		}
	}
	return symbols, nil
}

func (d *Directory) fetch(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	var failures []string

	sseCodes, err := d.sse.Listing(ctx)
	if err != nil {
		d.log.Warnf("上交所代码列表获取失败: %v", err)
		failures = append(failures, fmt.Sprintf("sse: %v", err))
	}
	for _, code := range sseCodes {
		seen[code] = struct{}{}
	}

	szseCodes, err := d.szse.Listing(ctx)
	if err != nil {
		d.log.Warnf("深交所代码列表获取失败: %v", err)
		failures = append(failures, fmt.Sprintf("szse: %v", err))
	}
	for _, code := range szseCodes {
		seen[code] = struct{}{}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("symbol directory unavailable: %v", failures)
	}

	symbols := make([]string, 0, len(seen))
	for code := range seen {
		symbols = append(symbols, code)
	}
	sort.Strings(symbols)

	d.log.Infof("代码目录刷新完成, 共 %d 只", len(symbols))
	return symbols, nil
}

var _ provider.SymbolDirectory = (*Directory)(nil)
