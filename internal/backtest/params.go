package backtest

import (
	"fmt"

	"github.com/newthinker/fastquant/internal/core"
)

// DonchianParams configures the Donchian channel breakout
type DonchianParams struct {
	Lookback int `json:"lookback"`
}

// DefaultDonchianParams returns the conventional 20-bar channel
func DefaultDonchianParams() DonchianParams {
	return DonchianParams{Lookback: 20}
}

// Validate checks the parameters before a run
func (p DonchianParams) Validate() error {
	if p.Lookback < 1 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("lookback must be >= 1, got %d", p.Lookback))
	}
	return nil
}

// ReturnMode selects the pair-trading strategy return formula.
type ReturnMode string

const (
	// ReturnLiteral computes spread[i-x]*spread[i] - spread[i-x].
	ReturnLiteral ReturnMode = "literal"
	// ReturnSignalWeighted computes signal[i-x]*(spread[i]-spread[i-x]).
	ReturnSignalWeighted ReturnMode = "signal_weighted"
)

// PairParams configures the z-score pair trade
type PairParams struct {
	Window          int        `json:"window"`
	ZScoreThreshold float64    `json:"z_score_threshold"`
	Lag             int        `json:"x"`
	ReturnMode      ReturnMode `json:"return_mode,omitempty"`
}

// Validate checks the parameters before a run
func (p PairParams) Validate() error {
	if p.Window < 1 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("window must be >= 1, got %d", p.Window))
	}
	if p.ZScoreThreshold < 0 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("z-score threshold must be >= 0, got %g", p.ZScoreThreshold))
	}
	if p.Lag < 0 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("lag must be >= 0, got %d", p.Lag))
	}
	switch p.ReturnMode {
	case "", ReturnLiteral, ReturnSignalWeighted:
	default:
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("unknown return mode %q", p.ReturnMode))
	}
	return nil
}

// EMAStopParams configures the EMA crossover with a fixed percentage stop
type EMAStopParams struct {
	EMAPeriod       int     `json:"ema_period"`
	StopLossPercent float64 `json:"stop_loss_percentage"`
}

// Validate checks the parameters before a run
func (p EMAStopParams) Validate() error {
	if p.EMAPeriod < 1 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("ema period must be >= 1, got %d", p.EMAPeriod))
	}
	if p.StopLossPercent <= 0 || p.StopLossPercent >= 100 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("stop loss percentage must be in (0, 100), got %g", p.StopLossPercent))
	}
	return nil
}

// EMAATRParams configures the EMA crossover with an ATR stop
type EMAATRParams struct {
	EMAPeriod     int     `json:"ema_period"`
	ATRPeriod     int     `json:"atr_period"`
	ATRMultiplier float64 `json:"atr_multiplier"`
}

// Validate checks the parameters before a run
func (p EMAATRParams) Validate() error {
	if p.EMAPeriod < 1 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("ema period must be >= 1, got %d", p.EMAPeriod))
	}
	if p.ATRPeriod < 1 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("atr period must be >= 1, got %d", p.ATRPeriod))
	}
	if p.ATRMultiplier <= 0 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("atr multiplier must be > 0, got %g", p.ATRMultiplier))
	}
	return nil
}

// startIndex is the first bar where EMA, previous EMA and ATR are all defined.
func (p EMAATRParams) startIndex() int {
	return max(p.EMAPeriod, p.ATRPeriod+1)
}
