package backtest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/fastquant/internal/core"
)

// IDIssuer hands out run identifiers scoped by category. Implementations
// must never return the same value twice, including under concurrent calls.
type IDIssuer interface {
	NextID(ctx context.Context, category string) (string, error)
}

// Backtester runs strategy backtests against in-memory price series.
// It keeps no per-run state, so one value serves concurrent runs.
type Backtester struct {
	ids    IDIssuer
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Backtester
type Option func(*Backtester)

// WithLogger sets the logger used for run summaries
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock overrides the clock used for unset period bounds
func WithClock(now func() time.Time) Option {
	return func(b *Backtester) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a new Backtester with the given id issuer
func New(ids IDIssuer, opts ...Option) *Backtester {
	b := &Backtester{
		ids:    ids,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// begin issues the run identifier and resolves the period. It runs before
// any input guard so every call consumes exactly one identifier.
func (b *Backtester) begin(ctx context.Context, name core.StrategyName, period Period) (string, Period, error) {
	id, err := b.ids.NextID(ctx, string(name))
	if err != nil {
		return "", Period{}, core.WrapError(core.ErrIDIssuer, err)
	}

	now := b.now()
	if period.Start.IsZero() {
		period.Start = now
	}
	if period.End.IsZero() {
		period.End = now
	}
	return id, period, nil
}

func (b *Backtester) logResult(r *Result, bars int, degenerate bool) {
	b.logger.Debug("backtest complete",
		zap.String("strategy", string(r.Strategy)),
		zap.String("id", r.ID),
		zap.Int("bars", bars),
		zap.Bool("degenerate", degenerate),
		zap.Int("trades", r.TradeCount),
		zap.Float64("cumulative_return", r.CumulativeReturn),
		zap.Float64("max_drawdown", r.MaxDrawdown),
	)
}
