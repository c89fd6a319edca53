package notifier

import (
	"context"

	"github.com/newthinker/fastquant/internal/backtest"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Notifier receives every published backtest result
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send publishes a single result
	Send(ctx context.Context, result *backtest.Result) error

	// SendBatch publishes the results of one batch run
	SendBatch(ctx context.Context, results []*backtest.Result) error
}
