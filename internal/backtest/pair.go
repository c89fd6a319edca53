package backtest

import (
	"context"
	"math"

	"github.com/newthinker/fastquant/internal/core"
	"github.com/newthinker/fastquant/internal/indicator"
)

// PairTrading runs the mean-reversion pair trade on the hedge-ratio
// adjusted spread prices1 - beta*prices2. The z-score of the spread
// against its rolling mean and std sets the signal; the return at step i
// is taken from spread[i-Lag] and spread[i] according to params.ReturnMode.
//
// Legs of unequal length are truncated to the shorter one. A lag longer
// than the series, or no data, produce a degenerate result filled with NaN.
func (b *Backtester) PairTrading(ctx context.Context, prices1, prices2 []float64, params PairParams, period Period) (*Result, error) {
	id, period, err := b.begin(ctx, core.StrategyPairTrading, period)
	if err != nil {
		return nil, err
	}

	n := min(len(prices1), len(prices2))
	x := params.Lag
	if x > n || x < 0 || n == 0 {
		r := degenerate(id, core.StrategyPairTrading, period, math.NaN())
		b.logResult(r, n, true)
		return r, nil
	}
	p1, p2 := prices1[:n], prices2[:n]

	beta := indicator.Beta(p1, p2)
	spread := make([]float64, n)
	for i := range spread {
		spread[i] = p1[i] - beta*p2[i]
	}

	rollMean := indicator.RollingMean(spread, params.Window)
	rollStd := indicator.RollingStd(spread, rollMean, params.Window)

	signal := make([]int, n)
	for i := range signal {
		if i < params.Window-1 || math.IsNaN(rollStd[i]) || rollStd[i] == 0 {
			continue
		}
		z := (spread[i] - rollMean[i]) / rollStd[i]
		signal[i] = zScoreSignal(z, params.ZScoreThreshold)
	}

	returns := make([]float64, n)
	for i := x; i < n; i++ {
		returns[i] = pairReturn(params.ReturnMode, spread, signal, i, x)
	}

	equity := Compound(returns)
	last := equity[n-1]

	// the first step carries no return
	vol := finiteOr(populationStd(returns[1:])*math.Sqrt(daysPerYear), 0)
	annualized := 0.0
	if n > 1 {
		annualized = annualize(last, float64(n-1))
	}

	m := Metrics{
		CumulativeReturn: finiteOr(last-1, 0),
		AnnualizedReturn: annualized,
		MaxDrawdown:      maxDrawdown(equity),
		Volatility:       vol,
		SharpeRatio:      sharpe(annualized, vol),
	}

	r := assemble(id, core.StrategyPairTrading, period, m, countEntries(signal))
	b.logResult(r, n, false)
	return r, nil
}

func pairReturn(mode ReturnMode, spread []float64, signal []int, i, x int) float64 {
	if mode == ReturnSignalWeighted {
		return float64(signal[i-x]) * (spread[i] - spread[i-x])
	}
	return spread[i-x]*spread[i] - spread[i-x]
}
