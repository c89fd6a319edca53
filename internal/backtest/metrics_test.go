package backtest

import (
	"math"
	"math/rand"
	"testing"
)

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name  string
		curve []float64
		want  float64
	}{
		{"flat", []float64{1, 1, 1}, 0},
		{"rising", []float64{1, 1.1, 1.2}, 0},
		{"peak to trough", []float64{1, 1.1, 1.155, 0.924, 1.0164}, 0.2},
		{"wiped out", []float64{1, 0.5, 0}, 1},
		{"negative equity clamps", []float64{1, -2}, 1},
		{"skips non-finite", []float64{1, math.NaN(), math.Inf(1), 0.9}, 0.1},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maxDrawdown(tt.curve); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("maxDrawdown = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestMaxDrawdown_Bounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		curve := []float64{1}
		for i := 0; i < 50; i++ {
			curve = append(curve, curve[len(curve)-1]*(1+rng.NormFloat64()*0.3))
		}
		dd := maxDrawdown(curve)
		if dd < 0 || dd > 1 {
			t.Fatalf("trial %d: drawdown %f outside [0, 1]", trial, dd)
		}
	}
}

func TestPopulationStd(t *testing.T) {
	if got := populationStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}); got != 2 {
		t.Errorf("populationStd = %f, want 2", got)
	}
	if got := populationStd(nil); got != 0 {
		t.Errorf("populationStd(nil) = %f, want 0", got)
	}
}

func TestPctChanges(t *testing.T) {
	got := pctChanges([]float64{1, 1.1, 0.99})
	want := []float64{0.1, -0.1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("pctChanges[%d] = %f, want %f", i, got[i], want[i])
		}
	}
	if pctChanges([]float64{1}) != nil {
		t.Error("a single point has no changes")
	}
}

func TestSharpe(t *testing.T) {
	if got := sharpe(0.5, 0); got != 0 {
		t.Errorf("sharpe with zero vol = %f, want 0", got)
	}
	if got := sharpe(0.5, 0.25); got != 2 {
		t.Errorf("sharpe = %f, want 2", got)
	}
	if got := sharpe(math.Inf(1), 1); got != 0 {
		t.Errorf("non-finite sharpe = %f, want 0", got)
	}
}

func TestAnnualize(t *testing.T) {
	if got := annualize(1, 100); got != 0 {
		t.Errorf("annualize(1) = %f, want 0", got)
	}
	// one year of days leaves the growth untouched
	if got := annualize(1.2, 365); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("annualize(1.2, 365) = %f, want 0.2", got)
	}
	if got := annualize(-0.5, 10); got != 0 {
		t.Errorf("negative growth should clamp to 0, got %f", got)
	}
}

func TestEvaluateEquity(t *testing.T) {
	curve := []float64{1, 1.1, 0.99, 1.2}
	m := evaluateEquity(curve)

	if math.Abs(m.CumulativeReturn-0.2) > 1e-12 {
		t.Errorf("CumulativeReturn = %f, want 0.2", m.CumulativeReturn)
	}
	wantAnn := math.Pow(1.2, 365.0/3) - 1
	if math.Abs(m.AnnualizedReturn-wantAnn)/wantAnn > 1e-9 {
		t.Errorf("AnnualizedReturn = %g, want %g", m.AnnualizedReturn, wantAnn)
	}
	if math.Abs(m.MaxDrawdown-0.1) > 1e-12 {
		t.Errorf("MaxDrawdown = %f, want 0.1", m.MaxDrawdown)
	}
	wantVol := math.Sqrt(populationVariance(pctChanges(curve)) * 365)
	if math.Abs(m.Volatility-wantVol) > 1e-12 {
		t.Errorf("Volatility = %f, want %f", m.Volatility, wantVol)
	}
	if math.Abs(m.SharpeRatio-wantAnn/wantVol)/m.SharpeRatio > 1e-9 {
		t.Errorf("SharpeRatio = %g, want %g", m.SharpeRatio, wantAnn/wantVol)
	}
}

func TestEvaluateEquity_Flat(t *testing.T) {
	m := evaluateEquity([]float64{1, 1, 1})
	if m != (Metrics{}) {
		t.Errorf("flat curve should have all-zero metrics, got %+v", m)
	}
}
