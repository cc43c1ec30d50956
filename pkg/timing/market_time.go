// Package timing A股交易时段与交易日判断。
package timing

import (
	"time"
)

// TimeService 提供当前时间接口，用于mock测试
type TimeService interface {
	Now() time.Time
}

// SystemTimeService 使用系统实际时间
type SystemTimeService struct{}

func (s *SystemTimeService) Now() time.Time {
	return time.Now()
}

// cst A股市场时区
var cst = time.FixedZone("CST", 8*3600)

// MarketTime 提供市场交易时间检测功能。
// 只按周末判断非交易日，法定节假日不在覆盖范围内。
type MarketTime struct {
	timeService TimeService
}

// NewMarketTime 创建新的市场时间检测器
func NewMarketTime(timeService TimeService) *MarketTime {
	return &MarketTime{
		timeService: timeService,
	}
}

// DefaultMarketTime 使用系统时间的默认市场时间检测器
func DefaultMarketTime() *MarketTime {
	return NewMarketTime(&SystemTimeService{})
}

// Now 返回当前时间（市场时区）
func (m *MarketTime) Now() time.Time {
	return m.timeService.Now().In(cst)
}

// IsTradingTime 判断当前是否在连续竞价时段
func (m *MarketTime) IsTradingTime() bool {
	now := m.Now()

	if !m.IsTradingDay(now) {
		return false
	}

	// 上午: 09:30:00 - 11:30:00  下午: 13:00:00 - 15:00:00
	currentTime := now.Format("15:04:05")

	return (currentTime >= "09:30:00" && currentTime <= "11:30:00") ||
		(currentTime >= "13:00:00" && currentTime <= "15:00:00")
}

// IsTradingDay 判断是否是交易日（周一到周五）
func (m *MarketTime) IsTradingDay(t time.Time) bool {
	weekday := t.In(cst).Weekday()
	return weekday >= time.Monday && weekday <= time.Friday
}

// IsAfterClose 判断当天是否已收盘
func (m *MarketTime) IsAfterClose() bool {
	now := m.Now()
	if !m.IsTradingDay(now) {
		return false
	}
	return now.Format("15:04:05") > "15:00:00"
}

// LatestTradingDay 返回最近一个已开盘的交易日（YYYYMMDD）。
// 交易日开盘前取上一交易日，周末回退到周五。
func (m *MarketTime) LatestTradingDay() string {
	t := m.Now()

	// 当天尚未开盘则从前一天算起
	if m.IsTradingDay(t) && t.Format("15:04:05") < "09:30:00" {
		t = t.AddDate(0, 0, -1)
	}

	for !m.IsTradingDay(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t.Format("20060102")
}

// NextOpen 获取下一个开盘时间点
func (m *MarketTime) NextOpen() time.Time {
	now := m.Now()
	todayOpen := time.Date(now.Year(), now.Month(), now.Day(), 9, 30, 0, 0, now.Location())

	t := todayOpen
	if !now.Before(todayOpen) {
		t = todayOpen.AddDate(0, 0, 1)
	}
	for !m.IsTradingDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
