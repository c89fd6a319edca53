package backtest

import (
	"github.com/newthinker/fastquant/internal/core"
)

// assemble packages a run into its immutable result record.
func assemble(id string, name core.StrategyName, period Period, m Metrics, trades int) *Result {
	return &Result{
		ID:               id,
		Strategy:         name,
		StartDate:        period.Start,
		EndDate:          period.End,
		AnnualizedReturn: m.AnnualizedReturn,
		CumulativeReturn: m.CumulativeReturn,
		MaxDrawdown:      m.MaxDrawdown,
		Volatility:       m.Volatility,
		SharpeRatio:      m.SharpeRatio,
		TradeCount:       trades,
	}
}

// degenerate returns the result of a run that could not be evaluated:
// every metric set to fill and no trades.
func degenerate(id string, name core.StrategyName, period Period, fill float64) *Result {
	return assemble(id, name, period, Metrics{
		AnnualizedReturn: fill,
		CumulativeReturn: fill,
		MaxDrawdown:      fill,
		Volatility:       fill,
		SharpeRatio:      fill,
	}, 0)
}
