package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fixedTimeService 固定时间源
type fixedTimeService struct {
	t time.Time
}

func (f *fixedTimeService) Now() time.Time {
	return f.t
}

func at(value string) *MarketTime {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", value, cst)
	if err != nil {
		panic(err)
	}
	return NewMarketTime(&fixedTimeService{t: t})
}

func TestIsTradingTime(t *testing.T) {
	tests := []struct {
		name     string
		now      string // 2026-08-26 周三
		expected bool
	}{
		{"开盘前", "2026-08-26 09:15:00", false},
		{"上午盘中", "2026-08-26 10:30:00", true},
		{"午间休市", "2026-08-26 12:00:00", false},
		{"下午盘中", "2026-08-26 14:30:00", true},
		{"收盘后", "2026-08-26 15:30:00", false},
		{"周六", "2026-08-29 10:30:00", false},
		{"周日", "2026-08-30 10:30:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, at(tt.now).IsTradingTime())
		})
	}
}

func TestIsAfterClose(t *testing.T) {
	assert.False(t, at("2026-08-26 14:00:00").IsAfterClose())
	assert.True(t, at("2026-08-26 15:30:00").IsAfterClose())
	assert.False(t, at("2026-08-29 16:00:00").IsAfterClose())
}

func TestLatestTradingDay(t *testing.T) {
	tests := []struct {
		name     string
		now      string
		expected string
	}{
		{"交易日盘中", "2026-08-26 10:30:00", "20260826"},
		{"交易日开盘前回退到前一日", "2026-08-26 08:00:00", "20260825"},
		{"周一开盘前回退到周五", "2026-08-24 08:00:00", "20260821"},
		{"周六回退到周五", "2026-08-29 12:00:00", "20260828"},
		{"周日回退到周五", "2026-08-30 12:00:00", "20260828"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, at(tt.now).LatestTradingDay())
		})
	}
}

func TestNextOpen(t *testing.T) {
	t.Run("盘前取当日开盘", func(t *testing.T) {
		next := at("2026-08-26 08:00:00").NextOpen()
		assert.Equal(t, "2026-08-26 09:30:00", next.Format("2006-01-02 15:04:05"))
	})

	t.Run("收盘后取次日开盘", func(t *testing.T) {
		next := at("2026-08-26 16:00:00").NextOpen()
		assert.Equal(t, "2026-08-27 09:30:00", next.Format("2006-01-02 15:04:05"))
	})

	t.Run("周五收盘后跳到周一", func(t *testing.T) {
		next := at("2026-08-28 16:00:00").NextOpen()
		assert.Equal(t, "2026-08-31 09:30:00", next.Format("2006-01-02 15:04:05"))
	})
}
