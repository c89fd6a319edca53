package core

import (
	"fmt"
	"time"
)

// StrategyName identifies a backtestable strategy
type StrategyName string

const (
	StrategyDonchianChannel       StrategyName = "donchian_channel"
	StrategyPairTrading           StrategyName = "pair_trading"
	StrategyEMAStopLossPercentage StrategyName = "ema_with_stop_loss_percentage"
	StrategyEMAATRStopLoss        StrategyName = "ema_with_atr_stop_loss"
)

// Strategies lists every supported strategy in a stable order
func Strategies() []StrategyName {
	return []StrategyName{
		StrategyDonchianChannel,
		StrategyPairTrading,
		StrategyEMAStopLossPercentage,
		StrategyEMAATRStopLoss,
	}
}

// ParseStrategyName accepts the canonical name or a short alias used by
// the CLI and HTTP routes.
func ParseStrategyName(s string) (StrategyName, error) {
	switch s {
	case string(StrategyDonchianChannel), "donchian":
		return StrategyDonchianChannel, nil
	case string(StrategyPairTrading), "pair", "pair-trading":
		return StrategyPairTrading, nil
	case string(StrategyEMAStopLossPercentage), "ema-stop", "ema_stop":
		return StrategyEMAStopLossPercentage, nil
	case string(StrategyEMAATRStopLoss), "ema-atr", "ema_atr":
		return StrategyEMAATRStopLoss, nil
	}
	return "", WrapError(ErrUnknownStrategy, fmt.Errorf("%q", s))
}

// Timespan is the bar size unit of an aggregate query
type Timespan string

const (
	TimespanSecond  Timespan = "second"
	TimespanMinute  Timespan = "minute"
	TimespanHour    Timespan = "hour"
	TimespanDay     Timespan = "day"
	TimespanWeek    Timespan = "week"
	TimespanMonth   Timespan = "month"
	TimespanQuarter Timespan = "quarter"
	TimespanYear    Timespan = "year"
)

// Valid reports whether t is one of the known timespans
func (t Timespan) Valid() bool {
	switch t {
	case TimespanSecond, TimespanMinute, TimespanHour, TimespanDay,
		TimespanWeek, TimespanMonth, TimespanQuarter, TimespanYear:
		return true
	}
	return false
}

// SortOrder controls chronological ordering of provider results
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// OHLCV represents a gap-free candlestick/bar
type OHLCV struct {
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Time   time.Time
}

// RawBar is a bar as delivered by a provider. Any channel may be missing.
type RawBar struct {
	Open   *float64
	High   *float64
	Low    *float64
	Close  *float64
	Volume *float64
	Time   time.Time
}

// BarSeries holds the four OHLC channels aligned by index.
type BarSeries struct {
	Open  []float64
	High  []float64
	Low   []float64
	Close []float64
}

// Len returns the number of bars (the close channel length)
func (b BarSeries) Len() int {
	return len(b.Close)
}

// Aligned reports whether all four channels have identical length
func (b BarSeries) Aligned() bool {
	n := len(b.Close)
	return len(b.Open) == n && len(b.High) == n && len(b.Low) == n
}

// Channels returns the channels in open, high, low, close order
func (b BarSeries) Channels() [4][]float64 {
	return [4][]float64{b.Open, b.High, b.Low, b.Close}
}

// BarsFromOHLCV splits candles into aligned channels
func BarsFromOHLCV(candles []OHLCV) BarSeries {
	bars := BarSeries{
		Open:  make([]float64, len(candles)),
		High:  make([]float64, len(candles)),
		Low:   make([]float64, len(candles)),
		Close: make([]float64, len(candles)),
	}
	for i, c := range candles {
		bars.Open[i] = c.Open
		bars.High[i] = c.High
		bars.Low[i] = c.Low
		bars.Close[i] = c.Close
	}
	return bars
}
