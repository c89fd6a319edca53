package backtest

import (
	"context"

	"github.com/newthinker/fastquant/internal/core"
	"github.com/newthinker/fastquant/internal/indicator"
)

// EMAATRStopLoss runs the EMA crossover on closes with a volatility stop at
// entry - ATR*ATRMultiplier. Position size is capital/ATR. Evaluation
// starts at max(EMAPeriod, ATRPeriod+1), the first bar where the current
// and previous EMA and the ATR are all defined.
//
// Fewer than start+1 bars, or misaligned channels, produce a degenerate
// result filled with 0.
func (b *Backtester) EMAATRStopLoss(ctx context.Context, bars core.BarSeries, params EMAATRParams, period Period) (*Result, error) {
	id, period, err := b.begin(ctx, core.StrategyEMAATRStopLoss, period)
	if err != nil {
		return nil, err
	}

	start := params.startIndex()
	n := bars.Len()
	if n < start+1 || !bars.Aligned() {
		r := degenerate(id, core.StrategyEMAATRStopLoss, period, 0)
		b.logResult(r, n, true)
		return r, nil
	}

	ema := indicator.EMA(bars.Close, params.EMAPeriod)
	atr := indicator.ATR(bars, params.ATRPeriod)

	pos := newPosition()
	curve := []float64{initialCapital}

	for i := start; i < n; i++ {
		avg, _ := ema.At(i)
		prevAvg, _ := ema.At(i - 1)
		curATR, _ := atr.At(i)
		price, prevPrice := bars.Close[i], bars.Close[i-1]

		if pos.holding {
			if pos.stopped(price) || crossedBelow(prevPrice, prevAvg, price, avg) {
				pos.exit(price)
			}
		} else if crossedAbove(prevPrice, prevAvg, price, avg) && curATR > 0 {
			pos.enter(price, price-curATR*params.ATRMultiplier, curATR)
		}

		curve = append(curve, pos.equity(price))
	}

	return b.finishEquity(id, core.StrategyEMAATRStopLoss, period, curve, pos.trades, n), nil
}
