// Package lognotifier writes published results to the structured log.
package lognotifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/newthinker/fastquant/internal/backtest"
	"github.com/newthinker/fastquant/internal/notifier"
)

type Log struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("results")}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Init(cfg notifier.Config) error { return nil }

func (l *Log) Send(ctx context.Context, r *backtest.Result) error {
	l.logger.Info("backtest result",
		zap.String("strategy_id", r.ID),
		zap.String("strategy", string(r.Strategy)),
		zap.Time("start", r.StartDate),
		zap.Time("end", r.EndDate),
		zap.Float64("annualized_return", r.AnnualizedReturn),
		zap.Float64("cumulative_return", r.CumulativeReturn),
		zap.Float64("max_drawdown", r.MaxDrawdown),
		zap.Float64("volatility", r.Volatility),
		zap.Float64("sharpe_ratio", r.SharpeRatio),
		zap.Int("trades", r.TradeCount),
	)
	return nil
}

func (l *Log) SendBatch(ctx context.Context, results []*backtest.Result) error {
	for _, r := range results {
		l.Send(ctx, r)
	}
	return nil
}
