package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/fastquant/internal/core"
)

// Query describes an aggregate bar request
type Query struct {
	Ticker     string
	Multiplier int
	Timespan   core.Timespan
	From       time.Time
	To         time.Time
	Unadjusted bool
	Limit      int
	Sort       core.SortOrder
	// APIKey overrides the provider's configured key for this request
	APIKey string
}

// Defaults fills unset fields with the provider defaults
func (q Query) Defaults() Query {
	if q.Multiplier == 0 {
		q.Multiplier = 1
	}
	if q.Timespan == "" {
		q.Timespan = core.TimespanDay
	}
	if q.Limit == 0 {
		q.Limit = 50000
	}
	if q.Sort == "" {
		q.Sort = core.SortAsc
	}
	return q
}

// Validate checks the query before it is sent
func (q Query) Validate() error {
	if q.Ticker == "" {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("ticker is required"))
	}
	if q.Multiplier < 1 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("multiplier must be >= 1"))
	}
	if !q.Timespan.Valid() {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("unknown timespan %q", q.Timespan))
	}
	if q.From.IsZero() || q.To.IsZero() || q.To.Before(q.From) {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("invalid date range %s..%s", q.From.Format(time.DateOnly), q.To.Format(time.DateOnly)))
	}
	if q.Sort != core.SortAsc && q.Sort != core.SortDesc {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("unknown sort %q", q.Sort))
	}
	return nil
}

// Provider fetches historical bars. Missing channel values stay nil.
type Provider interface {
	Name() string
	FetchBars(ctx context.Context, q Query) ([]core.RawBar, error)
}
