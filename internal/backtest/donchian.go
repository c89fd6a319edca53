package backtest

import (
	"context"
	"math"

	"github.com/newthinker/fastquant/internal/core"
)

// Donchian runs the channel breakout: go long when the price closes above
// the highest price of the previous lookback bars, exit when it closes
// below the lowest. Cumulative return is a gross ratio (1 means no growth)
// compounded only when a position is closed; an open position is closed
// at the last price.
//
// Series no longer than lookback produce a degenerate result filled with 0.
func (b *Backtester) Donchian(ctx context.Context, prices []float64, params DonchianParams, period Period) (*Result, error) {
	id, period, err := b.begin(ctx, core.StrategyDonchianChannel, period)
	if err != nil {
		return nil, err
	}

	lookback := max(params.Lookback, 0)
	n := len(prices)
	if n <= lookback {
		r := degenerate(id, core.StrategyDonchianChannel, period, 0)
		b.logResult(r, n, true)
		return r, nil
	}

	var (
		long       bool
		entryPrice float64
		trades     int
		maxDD      float64
	)
	cumulative := 1.0
	peak := cumulative
	returns := make([]float64, 0, n-lookback)

	for i := lookback; i < n; i++ {
		upper, lower := channel(prices, i, lookback)
		price := prices[i]
		if i > 0 {
			returns = append(returns, price/prices[i-1]-1)
		}

		switch {
		case !long && price > upper:
			long = true
			entryPrice = price
			trades++
		case long && price < lower:
			cumulative *= price / entryPrice
			long = false
		}

		if cumulative > peak {
			peak = cumulative
		}
		if dd := (peak - cumulative) / peak; dd > maxDD {
			maxDD = dd
		}
	}

	if long {
		cumulative *= prices[n-1] / entryPrice
	}

	vol := finiteOr(populationStd(returns), 0)
	m := Metrics{
		CumulativeReturn: finiteOr(cumulative, 0),
		AnnualizedReturn: annualize(cumulative, float64(n-lookback)),
		MaxDrawdown:      clamp01(finiteOr(maxDD, 0)),
		Volatility:       vol,
		SharpeRatio:      sharpe(mean(returns), vol),
	}

	r := assemble(id, core.StrategyDonchianChannel, period, m, trades)
	b.logResult(r, n, false)
	return r, nil
}

// channel returns the max and min of prices[i-lookback, i). An empty
// window falls back to prices[i].
func channel(prices []float64, i, lookback int) (upper, lower float64) {
	if lookback == 0 {
		return prices[i], prices[i]
	}
	upper, lower = math.Inf(-1), math.Inf(1)
	for _, p := range prices[i-lookback : i] {
		upper = math.Max(upper, p)
		lower = math.Min(lower, p)
	}
	return upper, lower
}
