package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/fastquant/internal/core"
)

// stubIssuer hands out sequential ids and records every category asked for
type stubIssuer struct {
	mu         sync.Mutex
	fixed      string
	err        error
	categories []string
}

func (s *stubIssuer) NextID(_ context.Context, category string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, category)
	if s.err != nil {
		return "", s.err
	}
	if s.fixed != "" {
		return s.fixed, nil
	}
	return fmt.Sprintf("%s-%d", category, len(s.categories)), nil
}

func (s *stubIssuer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.categories)
}

var fixedNow = time.Date(2025, 2, 11, 0, 0, 0, 0, time.UTC)

func newTestBacktester(ids IDIssuer) *Backtester {
	return New(ids, WithClock(func() time.Time { return fixedNow }))
}

func TestBacktester_StampsPeriod(t *testing.T) {
	bt := newTestBacktester(&stubIssuer{})
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	r, err := bt.Donchian(context.Background(), []float64{1, 2, 3}, DonchianParams{Lookback: 1}, Period{Start: start})
	require.NoError(t, err)

	assert.Equal(t, start, r.StartDate)
	assert.Equal(t, fixedNow, r.EndDate, "zero end should fall back to the clock")
	assert.Equal(t, core.StrategyDonchianChannel, r.Strategy)
	assert.Equal(t, "donchian_channel-1", r.ID)
}

func TestBacktester_IssuerFailure(t *testing.T) {
	ids := &stubIssuer{err: errors.New("redis down")}
	bt := newTestBacktester(ids)
	ctx := context.Background()

	_, err := bt.Donchian(ctx, []float64{1, 2, 3}, DonchianParams{Lookback: 1}, Period{})
	assert.ErrorIs(t, err, core.ErrIDIssuer)

	_, err = bt.PairTrading(ctx, []float64{1}, []float64{1}, PairParams{Window: 1}, Period{})
	assert.ErrorIs(t, err, core.ErrIDIssuer)

	_, err = bt.EMAStopLoss(ctx, []float64{1}, []float64{1}, EMAStopParams{EMAPeriod: 1, StopLossPercent: 5}, Period{})
	assert.ErrorIs(t, err, core.ErrIDIssuer)

	_, err = bt.EMAATRStopLoss(ctx, core.BarSeries{}, EMAATRParams{EMAPeriod: 1, ATRPeriod: 1, ATRMultiplier: 1}, Period{})
	assert.ErrorIs(t, err, core.ErrIDIssuer)
}

func TestBacktester_EveryCallConsumesOneID(t *testing.T) {
	ids := &stubIssuer{}
	bt := newTestBacktester(ids)
	ctx := context.Background()

	// all four inputs short-circuit into degenerate results
	_, err := bt.Donchian(ctx, []float64{1}, DonchianParams{Lookback: 5}, Period{})
	require.NoError(t, err)
	_, err = bt.PairTrading(ctx, []float64{1, 2}, []float64{1, 2}, PairParams{Window: 2, Lag: 3}, Period{})
	require.NoError(t, err)
	_, err = bt.EMAStopLoss(ctx, []float64{1}, []float64{1}, EMAStopParams{EMAPeriod: 3, StopLossPercent: 5}, Period{})
	require.NoError(t, err)
	_, err = bt.EMAATRStopLoss(ctx, core.BarSeries{}, EMAATRParams{EMAPeriod: 3, ATRPeriod: 3, ATRMultiplier: 1}, Period{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"donchian_channel",
		"pair_trading",
		"ema_with_stop_loss_percentage",
		"ema_with_atr_stop_loss",
	}, ids.categories)
}

func TestBacktester_Idempotent(t *testing.T) {
	prices := []float64{10, 11, 10.5, 12, 11.8, 13, 12.1, 11, 12.5, 14, 13.2, 12.9, 15}
	other := []float64{20, 21.5, 21, 23, 23.1, 25, 24, 22.5, 24, 27, 26.1, 25, 29}
	bars := core.BarSeries{Close: prices}
	for _, p := range prices {
		bars.Open = append(bars.Open, p-0.2)
		bars.High = append(bars.High, p+0.5)
		bars.Low = append(bars.Low, p-0.6)
	}

	bt := newTestBacktester(&stubIssuer{fixed: "same"})
	ctx := context.Background()

	run := func() []*Result {
		d, err := bt.Donchian(ctx, prices, DonchianParams{Lookback: 3}, Period{})
		require.NoError(t, err)
		p, err := bt.PairTrading(ctx, prices, other, PairParams{Window: 4, ZScoreThreshold: 0.5, Lag: 1, ReturnMode: ReturnSignalWeighted}, Period{})
		require.NoError(t, err)
		e, err := bt.EMAStopLoss(ctx, prices, prices, EMAStopParams{EMAPeriod: 3, StopLossPercent: 5}, Period{})
		require.NoError(t, err)
		a, err := bt.EMAATRStopLoss(ctx, bars, EMAATRParams{EMAPeriod: 3, ATRPeriod: 3, ATRMultiplier: 2}, Period{})
		require.NoError(t, err)
		return []*Result{d, p, e, a}
	}

	first, second := run(), run()
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestBacktester_ConcurrentRuns(t *testing.T) {
	ids := &stubIssuer{}
	bt := newTestBacktester(ids)
	prices := []float64{1, 2, 3, 2, 1, 2, 3, 4, 5, 4}

	var wg sync.WaitGroup
	results := make([]*Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := bt.Donchian(context.Background(), prices, DonchianParams{Lookback: 2}, Period{})
			if err == nil {
				results[i] = r
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, r := range results {
		require.NotNil(t, r)
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
		assert.Equal(t, results[0].TradeCount, r.TradeCount)
		assert.Equal(t, results[0].CumulativeReturn, r.CumulativeReturn)
	}
	assert.Equal(t, len(results), ids.calls())
}
