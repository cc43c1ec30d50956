package exchange

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketstate/pkg/cache"
)

type fakeListing struct {
	codes []string
	err   error
	calls int
}

func (f *fakeListing) Listing(ctx context.Context) ([]string, error) {
	f.calls++
	return f.codes, f.err
}

func TestDirectorySymbols(t *testing.T) {
	sse := &fakeListing{codes: []string{"601318", "600000", "600000"}}
	szse := &fakeListing{codes: []string{"000001", "300750"}}

	d := NewDirectory(sse, szse, nil, 0)
	symbols, err := d.Symbols(context.Background())
	require.NoError(t, err)

	// 去重并排序
	assert.Equal(t, []string{"000001", "300750", "600000", "601318"}, symbols)
}

func TestDirectorySingleExchangeDown(t *testing.T) {
	sse := &fakeListing{err: fmt.Errorf("sse down")}
	szse := &fakeListing{codes: []string{"000001"}}

	d := NewDirectory(sse, szse, nil, 0)
	symbols, err := d.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"000001"}, symbols)
}

func TestDirectoryAllExchangesDown(t *testing.T) {
	sse := &fakeListing{err: fmt.Errorf("sse down")}
	szse := &fakeListing{err: fmt.Errorf("szse down")}

	d := NewDirectory(sse, szse, nil, 0)
	_, err := d.Symbols(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol directory unavailable")
	assert.Contains(t, err.Error(), "sse down")
	assert.Contains(t, err.Error(), "szse down")
}

func TestDirectoryCaching(t *testing.T) {
	sse := &fakeListing{codes: []string{"600000"}}
	szse := &fakeListing{codes: []string{"000001"}}

	mc := cache.NewMemoryCache(cache.MemoryCacheConfig{MaxSize: 4, DefaultTTL: time.Minute})
	defer mc.Close()

	d := NewDirectory(sse, szse, mc, time.Minute)

	first, err := d.Symbols(context.Background())
	require.NoError(t, err)

	second, err := d.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// 第二次命中缓存，不再请求交易所
	assert.Equal(t, 1, sse.calls)
	assert.Equal(t, 1, szse.calls)
}
