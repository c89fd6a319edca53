package backtest

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/newthinker/fastquant/internal/core"
)

// Result is the immutable outcome of one backtest run.
type Result struct {
	ID               string
	Strategy         core.StrategyName
	StartDate        time.Time
	EndDate          time.Time
	AnnualizedReturn float64
	CumulativeReturn float64
	MaxDrawdown      float64
	Volatility       float64
	SharpeRatio      float64
	TradeCount       int
}

// Metrics holds the evaluator output for one equity curve
type Metrics struct {
	AnnualizedReturn float64
	CumulativeReturn float64
	MaxDrawdown      float64
	Volatility       float64
	SharpeRatio      float64
}

// Period is the requested date range stamped on a result.
// Zero bounds fall back to the backtester clock.
type Period struct {
	Start time.Time
	End   time.Time
}

// Degenerate reports whether every metric equals fill (NaN matches NaN)
// and no trade was made.
func (r *Result) Degenerate(fill float64) bool {
	if r.TradeCount != 0 {
		return false
	}
	for _, v := range r.metricValues() {
		if math.IsNaN(fill) {
			if !math.IsNaN(v) {
				return false
			}
		} else if v != fill {
			return false
		}
	}
	return true
}

func (r *Result) metricValues() []float64 {
	return []float64{r.AnnualizedReturn, r.CumulativeReturn, r.MaxDrawdown, r.Volatility, r.SharpeRatio}
}

// resultJSON is the wire form; non-finite metrics are written as null.
type resultJSON struct {
	ID               string            `json:"strategy_id"`
	Strategy         core.StrategyName `json:"strategy_name"`
	StartDate        time.Time         `json:"start_date"`
	EndDate          time.Time         `json:"end_date"`
	AnnualizedReturn *float64          `json:"annualized_return"`
	CumulativeReturn *float64          `json:"cumulative_return"`
	MaxDrawdown      *float64          `json:"max_drawdown"`
	Volatility       *float64          `json:"volatility"`
	SharpeRatio      *float64          `json:"sharpe_ratio"`
	TradeCount       int               `json:"trade_count"`
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		ID:               r.ID,
		Strategy:         r.Strategy,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		AnnualizedReturn: NullableFloat(r.AnnualizedReturn),
		CumulativeReturn: NullableFloat(r.CumulativeReturn),
		MaxDrawdown:      NullableFloat(r.MaxDrawdown),
		Volatility:       NullableFloat(r.Volatility),
		SharpeRatio:      NullableFloat(r.SharpeRatio),
		TradeCount:       r.TradeCount,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Null metrics decode as NaN.
func (r *Result) UnmarshalJSON(data []byte) error {
	var w resultJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	*r = Result{
		ID:               w.ID,
		Strategy:         w.Strategy,
		StartDate:        w.StartDate,
		EndDate:          w.EndDate,
		AnnualizedReturn: FloatOrNaN(w.AnnualizedReturn),
		CumulativeReturn: FloatOrNaN(w.CumulativeReturn),
		MaxDrawdown:      FloatOrNaN(w.MaxDrawdown),
		Volatility:       FloatOrNaN(w.Volatility),
		SharpeRatio:      FloatOrNaN(w.SharpeRatio),
		TradeCount:       w.TradeCount,
	}
	return nil
}

// NullableFloat returns nil for NaN and infinities.
func NullableFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FloatOrNaN is the inverse of NullableFloat.
func FloatOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
