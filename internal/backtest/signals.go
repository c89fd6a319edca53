package backtest

// crossedAbove reports an upward crossover of price through its average.
func crossedAbove(prevPrice, prevAvg, price, avg float64) bool {
	return prevPrice < prevAvg && price > avg
}

// crossedBelow reports a downward crossover of price through its average.
func crossedBelow(prevPrice, prevAvg, price, avg float64) bool {
	return prevPrice > prevAvg && price < avg
}

// zScoreSignal maps a z-score to a mean-reversion position.
func zScoreSignal(z, threshold float64) int {
	switch {
	case z > threshold:
		return -1
	case z < -threshold:
		return 1
	default:
		return 0
	}
}

// countEntries counts steps where the signal switches to a new non-zero value.
func countEntries(signal []int) int {
	var n int
	for i := 1; i < len(signal); i++ {
		if signal[i] != signal[i-1] && signal[i] != 0 {
			n++
		}
	}
	return n
}
