package backtest

import (
	"context"

	"github.com/newthinker/fastquant/internal/core"
	"github.com/newthinker/fastquant/internal/indicator"
)

// EMAStopLoss runs the EMA crossover with a fixed percentage stop. The EMA
// is computed over closes; crossovers, sizing and valuation use the
// valuation series (typically the average of open, high, low and close).
// The position is entered on an upward crossover and exited when the price
// reaches entry*(1-StopLossPercent/100) or crosses back below the EMA.
//
// An equity curve shorter than two points produces a degenerate result
// filled with 0.
func (b *Backtester) EMAStopLoss(ctx context.Context, closes, valuation []float64, params EMAStopParams, period Period) (*Result, error) {
	id, period, err := b.begin(ctx, core.StrategyEMAStopLossPercentage, period)
	if err != nil {
		return nil, err
	}

	n := min(len(closes), len(valuation))
	ema := indicator.EMA(closes[:n], params.EMAPeriod)

	pos := newPosition()
	curve := []float64{initialCapital}

	for i := max(params.EMAPeriod, 1); i < n; i++ {
		avg, ok := ema.At(i)
		prevAvg, prevOK := ema.At(i - 1)
		if !ok || !prevOK {
			continue
		}
		price, prevPrice := valuation[i], valuation[i-1]

		if pos.holding {
			if pos.stopped(price) || crossedBelow(prevPrice, prevAvg, price, avg) {
				pos.exit(price)
			}
		} else if crossedAbove(prevPrice, prevAvg, price, avg) {
			pos.enter(price, price*(1-params.StopLossPercent/100), price)
		}

		curve = append(curve, pos.equity(price))
	}

	return b.finishEquity(id, core.StrategyEMAStopLossPercentage, period, curve, pos.trades, n), nil
}

// finishEquity evaluates an EMA-family equity curve, or returns the
// zero-filled degenerate result when the curve has fewer than two points.
func (b *Backtester) finishEquity(id string, name core.StrategyName, period Period, curve []float64, trades, bars int) *Result {
	if len(curve) < 2 {
		r := degenerate(id, name, period, 0)
		b.logResult(r, bars, true)
		return r
	}
	r := assemble(id, name, period, evaluateEquity(curve), trades)
	b.logResult(r, bars, false)
	return r
}
