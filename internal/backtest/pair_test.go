package backtest

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/fastquant/internal/core"
)

func TestPairTrading_IdenticalSeries(t *testing.T) {
	prices := []float64{10, 11, 12, 11, 13, 14, 12, 15, 16, 14}
	bt := newTestBacktester(&stubIssuer{})

	r, err := bt.PairTrading(context.Background(), prices, prices, PairParams{Window: 3, ZScoreThreshold: 1, Lag: 1}, Period{})
	require.NoError(t, err)

	// beta 1, spread 0 everywhere: no signal, flat equity
	assert.Equal(t, 0, r.TradeCount)
	assert.Equal(t, 0.0, r.CumulativeReturn)
	assert.Equal(t, 0.0, r.AnnualizedReturn)
	assert.Equal(t, 0.0, r.MaxDrawdown)
	assert.Equal(t, 0.0, r.Volatility)
	assert.Equal(t, 0.0, r.SharpeRatio)
}

func TestPairTrading_LagBeyondSeries(t *testing.T) {
	bt := newTestBacktester(&stubIssuer{})

	for _, n := range []int{0, 1, 4} {
		prices := make([]float64, n)
		for i := range prices {
			prices[i] = float64(i + 1)
		}
		r, err := bt.PairTrading(context.Background(), prices, prices, PairParams{Window: 2, Lag: n + 1}, Period{})
		require.NoError(t, err)
		assert.Equal(t, 0, r.TradeCount)
		assert.True(t, r.Degenerate(math.NaN()), "n=%d: expected NaN-filled result, got %+v", n, r)
	}
}

// spread equals the first leg when the second is constant
var pairLeg = []float64{10, 10, 10, 20, 10, 10, 0, 10}

func constantLeg(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func TestPairTrading_SignalWeighted(t *testing.T) {
	bt := newTestBacktester(&stubIssuer{})
	params := PairParams{Window: 3, ZScoreThreshold: 1, Lag: 1, ReturnMode: ReturnSignalWeighted}

	r, err := bt.PairTrading(context.Background(), pairLeg, constantLeg(len(pairLeg)), params, Period{})
	require.NoError(t, err)

	// signals: short at bar 3 (z=+1.41), long at bar 6 (z=-1.41)
	assert.Equal(t, 2, r.TradeCount)

	// returns 0,0,0,10,0,0,10 after bar 0: equity 1,1,1,1,11,11,11,121
	assert.InDelta(t, 120, r.CumulativeReturn, 1e-9)
	assert.Equal(t, 0.0, r.MaxDrawdown)

	wantVol := math.Sqrt(7000.0/343.0) * math.Sqrt(365)
	assert.InDelta(t, wantVol, r.Volatility, 1e-9)

	wantAnn := math.Pow(121, 365.0/7) - 1
	assert.InEpsilon(t, wantAnn, r.AnnualizedReturn, 1e-9)
	assert.InEpsilon(t, wantAnn/wantVol, r.SharpeRatio, 1e-9)
}

func TestPairTrading_LiteralReturn(t *testing.T) {
	bt := newTestBacktester(&stubIssuer{})
	spread := []float64{1, 2, 1.5, 1.2}
	params := PairParams{Window: 2, ZScoreThreshold: 5, Lag: 1}

	r, err := bt.PairTrading(context.Background(), spread, constantLeg(len(spread)), params, Period{})
	require.NoError(t, err)

	returns := []float64{0}
	for i := 1; i < len(spread); i++ {
		returns = append(returns, spread[i-1]*spread[i]-spread[i-1])
	}
	equity := Compound(returns)

	assert.InDelta(t, equity[len(equity)-1]-1, r.CumulativeReturn, 1e-12)
	assert.InDelta(t, maxDrawdown(equity), r.MaxDrawdown, 1e-12)
	assert.InDelta(t, populationStd(returns[1:])*math.Sqrt(365), r.Volatility, 1e-12)
	assert.Equal(t, 0, r.TradeCount, "threshold 5 is never crossed")
}

func TestPairTrading_UnequalLegsTruncate(t *testing.T) {
	bt := newTestBacktester(&stubIssuer{})
	params := PairParams{Window: 3, ZScoreThreshold: 1, Lag: 1, ReturnMode: ReturnSignalWeighted}

	full, err := bt.PairTrading(context.Background(), pairLeg, constantLeg(len(pairLeg)), params, Period{})
	require.NoError(t, err)
	longer, err := bt.PairTrading(context.Background(), pairLeg, constantLeg(len(pairLeg)+5), params, Period{})
	require.NoError(t, err)

	assert.Equal(t, full.TradeCount, longer.TradeCount)
	assert.Equal(t, full.CumulativeReturn, longer.CumulativeReturn)
}

func TestPairParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  PairParams
		wantErr bool
	}{
		{"valid", PairParams{Window: 20, ZScoreThreshold: 2, Lag: 1}, false},
		{"signal weighted", PairParams{Window: 20, ZScoreThreshold: 2, ReturnMode: ReturnSignalWeighted}, false},
		{"zero window", PairParams{Window: 0}, true},
		{"negative lag", PairParams{Window: 5, Lag: -1}, true},
		{"negative threshold", PairParams{Window: 5, ZScoreThreshold: -1}, true},
		{"unknown mode", PairParams{Window: 5, ReturnMode: "log"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, core.ErrInvalidParams))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCountEntries(t *testing.T) {
	assert.Equal(t, 0, countEntries(nil))
	assert.Equal(t, 0, countEntries([]int{0, 0, 0}))
	assert.Equal(t, 1, countEntries([]int{0, 1, 1, 1}))
	// flipping straight from short to long is a new entry
	assert.Equal(t, 3, countEntries([]int{0, -1, 1, 0, 1}))
}
