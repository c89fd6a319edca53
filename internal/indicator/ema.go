package indicator

import (
	"github.com/markcheno/go-talib"

	"github.com/newthinker/fastquant/internal/core"
)

// EMA calculates the exponential moving average of prices.
// The seed is the simple average of the first period prices, so the
// series is valid from bar period-1. Fewer than period prices give an
// empty series.
func EMA(prices []float64, period int) Series {
	if period < 1 || len(prices) < period {
		return Series{Offset: max(period-1, 0)}
	}
	return fromFull(talib.Ema(prices, period), period-1)
}

// TrueRange returns the per-bar true range. Bar 0 has no previous close
// and is left undefined.
func TrueRange(bars core.BarSeries) Series {
	if bars.Len() < 2 || !bars.Aligned() {
		return Series{Offset: 1}
	}
	return fromFull(talib.TRange(bars.High, bars.Low, bars.Close), 1)
}

// ATR calculates the Wilder-smoothed average true range. The seed is the
// mean of the true ranges of bars 1..period, so the series is valid from
// bar period. Fewer than period+1 bars give an empty series.
func ATR(bars core.BarSeries, period int) Series {
	if period < 1 || bars.Len() < period+1 || !bars.Aligned() {
		return Series{Offset: max(period, 0)}
	}
	return fromFull(talib.Atr(bars.High, bars.Low, bars.Close, period), period)
}
