package app

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/fastquant/internal/backtest"
	"github.com/newthinker/fastquant/internal/core"
)

// Request describes one backtest. Price input is either inline (Bars or
// Prices, plus Bars2 or Prices2 for the second pair leg) or fetched from
// Provider for Ticker/Ticker2 over From..To.
type Request struct {
	Strategy core.StrategyName `json:"strategy"`
	Params   json.RawMessage   `json:"params,omitempty"`

	Provider   string         `json:"provider,omitempty"`
	Ticker     string         `json:"ticker,omitempty"`
	Ticker2    string         `json:"ticker2,omitempty"`
	Multiplier int            `json:"multiplier,omitempty"`
	Timespan   core.Timespan  `json:"timespan,omitempty"`
	From       string         `json:"from,omitempty"`
	To         string         `json:"to,omitempty"`
	Unadjusted bool           `json:"unadjusted,omitempty"`
	Limit      int            `json:"limit,omitempty"`
	Sort       core.SortOrder `json:"sort,omitempty"`
	APIKey     string         `json:"-"`

	Bars    *core.BarSeries `json:"bars,omitempty"`
	Bars2   *core.BarSeries `json:"bars2,omitempty"`
	Prices  []float64       `json:"prices,omitempty"`
	Prices2 []float64       `json:"prices2,omitempty"`
}

// StrategyParams holds the decoded, defaulted parameters of one strategy.
// Exactly the field matching the strategy is meaningful.
type StrategyParams struct {
	Donchian backtest.DonchianParams
	Pair     backtest.PairParams
	EMAStop  backtest.EMAStopParams
	EMAATR   backtest.EMAATRParams
}

// Default parameters applied to fields the caller leaves unset.
var (
	DefaultPairParams    = backtest.PairParams{Window: 20, ZScoreThreshold: 2, Lag: 1, ReturnMode: backtest.ReturnLiteral}
	DefaultEMAStopParams = backtest.EMAStopParams{EMAPeriod: 20, StopLossPercent: 5}
	DefaultEMAATRParams  = backtest.EMAATRParams{EMAPeriod: 20, ATRPeriod: 14, ATRMultiplier: 2}
)

// DecodeParams overlays raw JSON onto the strategy defaults and validates
// the result.
func DecodeParams(name core.StrategyName, raw json.RawMessage) (StrategyParams, error) {
	var p StrategyParams
	var target interface{ Validate() error }

	switch name {
	case core.StrategyDonchianChannel:
		p.Donchian = backtest.DefaultDonchianParams()
		target = &p.Donchian
	case core.StrategyPairTrading:
		p.Pair = DefaultPairParams
		target = &p.Pair
	case core.StrategyEMAStopLossPercentage:
		p.EMAStop = DefaultEMAStopParams
		target = &p.EMAStop
	case core.StrategyEMAATRStopLoss:
		p.EMAATR = DefaultEMAATRParams
		target = &p.EMAATR
	default:
		return p, core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("%q", name))
	}

	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, target); err != nil {
			return p, core.WrapError(core.ErrInvalidParams, err)
		}
	}
	return p, target.Validate()
}

// inline reports whether the request carries its own price data.
func (r Request) inline() bool {
	return r.Bars != nil || len(r.Prices) > 0
}

// Period parses From/To as dates and stamps them at the start of day UTC.
// Unset bounds stay zero so the backtester clock fills them.
func (r Request) Period() (backtest.Period, error) {
	var p backtest.Period
	var err error
	if p.Start, err = parseDate(r.From); err != nil {
		return p, core.WrapError(core.ErrInvalidParams, fmt.Errorf("from: %w", err))
	}
	if p.End, err = parseDate(r.To); err != nil {
		return p, core.WrapError(core.ErrInvalidParams, fmt.Errorf("to: %w", err))
	}
	if !p.Start.IsZero() && !p.End.IsZero() && p.End.Before(p.Start) {
		return p, core.WrapError(core.ErrInvalidParams, fmt.Errorf("to %s is before from %s", r.To, r.From))
	}
	return p, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// flatBars turns a single price series into bars whose four channels are
// that series, so the average price equals the input.
func flatBars(prices []float64) core.BarSeries {
	return core.BarSeries{Open: prices, High: prices, Low: prices, Close: prices}
}
