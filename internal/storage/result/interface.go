// Package result persists backtest results.
package result

import (
	"context"
	"time"

	"github.com/newthinker/fastquant/internal/backtest"
	"github.com/newthinker/fastquant/internal/core"
)

// Store defines the interface for result persistence.
type Store interface {
	// Save persists a result. Saving an existing id replaces it.
	Save(ctx context.Context, r *backtest.Result) error

	// GetByID retrieves a result by its strategy id.
	GetByID(ctx context.Context, id string) (*backtest.Result, error)

	// List retrieves results matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]*backtest.Result, error)

	// Count returns the number of results matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter defines criteria for listing results.
type ListFilter struct {
	Strategy core.StrategyName
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

func (f ListFilter) matches(r *backtest.Result) bool {
	if f.Strategy != "" && r.Strategy != f.Strategy {
		return false
	}
	if !f.From.IsZero() && r.StartDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.EndDate.After(f.To) {
		return false
	}
	return true
}
