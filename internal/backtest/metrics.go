package backtest

import (
	"math"
)

// daysPerYear is the annualization base; crypto markets trade every day.
const daysPerYear = 365.0

// maxDrawdown finds the largest peak-to-trough decline of curve as a
// fraction of the running peak. Non-finite points are skipped and the
// result is clamped to [0, 1].
func maxDrawdown(curve []float64) float64 {
	var maxDD float64
	peak := math.NaN()

	for _, v := range curve {
		if !isFinite(v) {
			continue
		}
		if math.IsNaN(peak) || v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return clamp01(maxDD)
}

// populationStd returns the population standard deviation, 0 for no input.
func populationStd(xs []float64) float64 {
	return math.Sqrt(populationVariance(xs))
}

func populationVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return ss / float64(len(xs))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// pctChanges returns curve[i]/curve[i-1] - 1 for every consecutive pair.
func pctChanges(curve []float64) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		out = append(out, curve[i]/curve[i-1]-1)
	}
	return out
}

// annualize converts a gross growth factor over days into a yearly rate.
func annualize(growth float64, days float64) float64 {
	return finiteOr(math.Pow(growth, daysPerYear/days)-1, 0)
}

// sharpe divides return by volatility with a zero risk-free rate.
// Zero volatility yields exactly 0.
func sharpe(ret, vol float64) float64 {
	if vol == 0 {
		return 0
	}
	return finiteOr(ret/vol, 0)
}

// evaluateEquity derives the metrics of an equity curve seeded with
// initial capital curve[0]. The curve must hold at least two points.
func evaluateEquity(curve []float64) Metrics {
	initial := curve[0]
	last := curve[len(curve)-1]

	cumulative := finiteOr(last/initial-1, 0)
	totalDays := float64(len(curve) - 1)
	annualized := annualize(1+cumulative, totalDays)

	daily := pctChanges(curve)
	vol := finiteOr(math.Sqrt(populationVariance(daily)*daysPerYear), 0)

	return Metrics{
		AnnualizedReturn: annualized,
		CumulativeReturn: cumulative,
		MaxDrawdown:      maxDrawdown(curve),
		Volatility:       vol,
		SharpeRatio:      sharpe(annualized, vol),
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOr(v, fallback float64) float64 {
	if isFinite(v) {
		return v
	}
	return fallback
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
