package indicator

import "math"

// Mean returns the arithmetic mean of xs, NaN when xs is empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// RollingMean returns, for every index i, the mean of xs[i-window+1..i].
// Indexes before window-1 are NaN. Each window is summed afresh so a
// large value leaves no rounding residue once it drops out.
func RollingMean(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 || len(xs) < window {
		return out
	}

	for i := window - 1; i < len(xs); i++ {
		var sum float64
		for _, x := range xs[i-window+1 : i+1] {
			sum += x
		}
		out[i] = sum / float64(window)
	}
	return out
}

// RollingStd returns the population standard deviation of each trailing
// window. Every point in window i is measured against rollMean[i], not
// against its own window mean.
func RollingStd(xs, rollMean []float64, window int) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 {
		return out
	}

	for i := window - 1; i < len(xs) && i < len(rollMean); i++ {
		m := rollMean[i]
		if math.IsNaN(m) {
			continue
		}
		var ss float64
		for j := i - window + 1; j <= i; j++ {
			d := xs[j] - m
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window))
	}
	return out
}

// Beta returns the OLS hedge ratio Cov(series2, series1) / Var(series2)
// over the common length of both series. A constant series2 yields 0.
func Beta(series1, series2 []float64) float64 {
	n := min(len(series1), len(series2))
	if n == 0 {
		return 0
	}

	m1 := Mean(series1[:n])
	m2 := Mean(series2[:n])

	var cov, variance float64
	for i := 0; i < n; i++ {
		d2 := series2[i] - m2
		cov += d2 * (series1[i] - m1)
		variance += d2 * d2
	}
	if variance == 0 {
		return 0
	}
	return cov / variance
}
