package backtest

import (
	"context"
	"math"
	"testing"

	"github.com/newthinker/fastquant/internal/core"
)

func TestDonchian_MonotonicUptrend(t *testing.T) {
	prices := []float64{100, 101, 102, 103, 104, 105}
	bt := newTestBacktester(&stubIssuer{})

	r, err := bt.Donchian(context.Background(), prices, DonchianParams{Lookback: 1}, Period{})
	if err != nil {
		t.Fatalf("Donchian() error = %v", err)
	}

	// entered on the second bar at 101, held to the forced close at 105
	if r.TradeCount != 1 {
		t.Errorf("TradeCount = %d, want 1", r.TradeCount)
	}
	want := 105.0 / 101.0
	if math.Abs(r.CumulativeReturn-want) > 1e-12 {
		t.Errorf("CumulativeReturn = %f, want %f", r.CumulativeReturn, want)
	}
	if r.MaxDrawdown != 0 {
		t.Errorf("MaxDrawdown = %f, want 0", r.MaxDrawdown)
	}
	wantAnn := math.Pow(want, 365.0/5) - 1
	if math.Abs(r.AnnualizedReturn-wantAnn)/wantAnn > 1e-9 {
		t.Errorf("AnnualizedReturn = %g, want %g", r.AnnualizedReturn, wantAnn)
	}
}

func TestDonchian_FlatSeries(t *testing.T) {
	prices := []float64{50, 50, 50, 50, 50, 50, 50}
	bt := newTestBacktester(&stubIssuer{})

	r, err := bt.Donchian(context.Background(), prices, DonchianParams{Lookback: 3}, Period{})
	if err != nil {
		t.Fatalf("Donchian() error = %v", err)
	}

	if r.TradeCount != 0 {
		t.Errorf("TradeCount = %d, want 0", r.TradeCount)
	}
	if r.CumulativeReturn != 1 {
		t.Errorf("CumulativeReturn = %f, want 1 (no growth)", r.CumulativeReturn)
	}
	if r.Volatility != 0 || r.SharpeRatio != 0 {
		t.Errorf("Volatility = %f, SharpeRatio = %f, want 0 and 0", r.Volatility, r.SharpeRatio)
	}
	if r.AnnualizedReturn != 0 {
		t.Errorf("AnnualizedReturn = %f, want 0", r.AnnualizedReturn)
	}
}

func TestDonchian_BreakoutAndExit(t *testing.T) {
	// channel of 2: enter at 12 above [10 11], exit at 8 below [11 12]
	prices := []float64{10, 11, 12, 8, 8, 8}
	bt := newTestBacktester(&stubIssuer{})

	r, err := bt.Donchian(context.Background(), prices, DonchianParams{Lookback: 2}, Period{})
	if err != nil {
		t.Fatalf("Donchian() error = %v", err)
	}

	if r.TradeCount != 1 {
		t.Errorf("TradeCount = %d, want 1", r.TradeCount)
	}
	wantCum := 8.0 / 12.0
	if math.Abs(r.CumulativeReturn-wantCum) > 1e-12 {
		t.Errorf("CumulativeReturn = %f, want %f", r.CumulativeReturn, wantCum)
	}
	if math.Abs(r.MaxDrawdown-(1-wantCum)) > 1e-12 {
		t.Errorf("MaxDrawdown = %f, want %f", r.MaxDrawdown, 1-wantCum)
	}

	returns := []float64{12.0/11 - 1, 8.0/12 - 1, 0, 0}
	wantVol := populationStd(returns)
	if math.Abs(r.Volatility-wantVol) > 1e-12 {
		t.Errorf("Volatility = %f, want %f", r.Volatility, wantVol)
	}
	if math.Abs(r.SharpeRatio-mean(returns)/wantVol) > 1e-12 {
		t.Errorf("SharpeRatio = %f, want %f", r.SharpeRatio, mean(returns)/wantVol)
	}
}

func TestDonchian_ShorterThanLookback(t *testing.T) {
	bt := newTestBacktester(&stubIssuer{})

	for _, n := range []int{0, 1, 5} {
		prices := make([]float64, n)
		for i := range prices {
			prices[i] = float64(100 + i)
		}
		r, err := bt.Donchian(context.Background(), prices, DonchianParams{Lookback: 5}, Period{})
		if err != nil {
			t.Fatalf("Donchian() error = %v", err)
		}
		if !r.Degenerate(0) {
			t.Errorf("len %d: expected zero-filled degenerate result, got %+v", n, r)
		}
		if r.Strategy != core.StrategyDonchianChannel {
			t.Errorf("Strategy = %s", r.Strategy)
		}
	}
}

func TestDonchianParams_Validate(t *testing.T) {
	if err := DefaultDonchianParams().Validate(); err != nil {
		t.Errorf("default params invalid: %v", err)
	}
	if err := (DonchianParams{Lookback: 0}).Validate(); err == nil {
		t.Error("expected error for zero lookback")
	}
}
