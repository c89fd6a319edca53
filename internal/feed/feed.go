// Package feed turns provider bars into the gap-free series the
// backtester consumes.
package feed

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"github.com/newthinker/fastquant/internal/core"
)

// ForwardFill replaces missing values with the last known one. A leading
// gap takes def.
func ForwardFill(values []*float64, def float64) []float64 {
	out := make([]float64, len(values))
	last := def
	for i, v := range values {
		if v != nil {
			last = *v
		}
		out[i] = last
	}
	return out
}

// FirstPresent returns the first non-missing value, or 0 when every value
// is missing.
func FirstPresent(values []*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

// Bars forward-fills every channel of raw independently and returns the
// aligned series. A nil def backfills a leading gap with the first value
// present in that channel.
func Bars(raw []core.RawBar, def *float64) core.BarSeries {
	open := make([]*float64, len(raw))
	high := make([]*float64, len(raw))
	low := make([]*float64, len(raw))
	cls := make([]*float64, len(raw))
	for i, b := range raw {
		open[i], high[i], low[i], cls[i] = b.Open, b.High, b.Low, b.Close
	}
	fill := func(ch []*float64) []float64 {
		if def != nil {
			return ForwardFill(ch, *def)
		}
		return ForwardFill(ch, FirstPresent(ch))
	}
	return core.BarSeries{
		Open:  fill(open),
		High:  fill(high),
		Low:   fill(low),
		Close: fill(cls),
	}
}

// AveragePrice returns (open+high+low+close)/4 for every bar.
func AveragePrice(bars core.BarSeries) ([]float64, error) {
	if !bars.Aligned() {
		return nil, core.WrapError(core.ErrSeriesMismatch,
			fmt.Errorf("open=%d high=%d low=%d close=%d", len(bars.Open), len(bars.High), len(bars.Low), len(bars.Close)))
	}
	if bars.Len() == 0 {
		return []float64{}, nil
	}
	return talib.AvgPrice(bars.Open, bars.High, bars.Low, bars.Close), nil
}

// Align truncates a and b to their common length.
func Align(a, b []float64) ([]float64, []float64) {
	n := min(len(a), len(b))
	return a[:n], b[:n]
}
