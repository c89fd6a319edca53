// Package polygon fetches aggregate bars from the Polygon.io REST API.
package polygon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/newthinker/fastquant/internal/collector"
	"github.com/newthinker/fastquant/internal/core"
	"github.com/newthinker/fastquant/internal/platform/httpclient"
)

const (
	baseURL = "https://api.polygon.io"
	// maxPages bounds next_url pagination
	maxPages = 50
)

// Polygon implements collector.Provider for Polygon.io aggregates
type Polygon struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

// Option configures a Polygon provider
type Option func(*Polygon)

// WithBaseURL overrides the API root (for testing)
func WithBaseURL(u string) Option {
	return func(p *Polygon) { p.baseURL = u }
}

// WithClient sets the HTTP client
func WithClient(c *httpclient.Client) Option {
	return func(p *Polygon) { p.client = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Polygon) { p.logger = l }
}

// New creates a new Polygon provider
func New(apiKey string, opts ...Option) *Polygon {
	p := &Polygon{
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = httpclient.New(httpclient.Options{RequestsPerSec: 5, Timeout: 30 * time.Second})
	}
	return p
}

func (p *Polygon) Name() string {
	return "polygon"
}

// FetchBars fetches aggregate bars for q, following pagination.
func (p *Polygon) FetchBars(ctx context.Context, q collector.Query) ([]core.RawBar, error) {
	q = q.Defaults()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	apiKey := q.APIKey
	if apiKey == "" {
		apiKey = p.apiKey
	}
	if apiKey == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("polygon api key"))
	}

	// the key travels in a header so it never shows up in URLs or in the
	// transport errors that quote them
	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)

	next := p.aggregatesURL(q)
	var bars []core.RawBar
	for page := 0; next != "" && page < maxPages; page++ {
		body, err := p.client.Get(ctx, withoutAPIKey(next), header)
		if err != nil {
			return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("polygon %s: %w", q.Ticker, err))
		}

		pageBars, nextURL, err := parseAggregates(body)
		if err != nil {
			return nil, core.WrapError(core.ErrProviderFailed, err)
		}
		bars = append(bars, pageBars...)
		next = nextURL
	}

	p.logger.Debug("fetched aggregates",
		zap.String("ticker", q.Ticker),
		zap.String("timespan", string(q.Timespan)),
		zap.Int("bars", len(bars)),
	)
	return bars, nil
}

func (p *Polygon) aggregatesURL(q collector.Query) string {
	v := url.Values{}
	v.Set("adjusted", strconv.FormatBool(!q.Unadjusted))
	v.Set("sort", string(q.Sort))
	v.Set("limit", strconv.Itoa(q.Limit))

	return fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%d/%s/%s/%s?%s",
		p.baseURL,
		url.PathEscape(q.Ticker),
		q.Multiplier,
		q.Timespan,
		q.From.Format(time.DateOnly),
		q.To.Format(time.DateOnly),
		v.Encode(),
	)
}

// withoutAPIKey drops an apiKey query parameter a next_url may carry.
func withoutAPIKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	v := u.Query()
	if !v.Has("apiKey") {
		return raw
	}
	v.Del("apiKey")
	u.RawQuery = v.Encode()
	return u.String()
}

// parseAggregates decodes one aggregates page. Absent or null o/h/l/c/v
// fields stay nil so the caller can forward-fill them.
func parseAggregates(body []byte) ([]core.RawBar, string, error) {
	if !gjson.ValidBytes(body) {
		return nil, "", fmt.Errorf("polygon: invalid json")
	}
	doc := gjson.ParseBytes(body)

	if status := doc.Get("status").String(); status == "ERROR" || status == "NOT_AUTHORIZED" {
		return nil, "", fmt.Errorf("polygon: %s: %s", status, doc.Get("error").String())
	}

	results := doc.Get("results").Array()
	bars := make([]core.RawBar, 0, len(results))
	for _, r := range results {
		bars = append(bars, core.RawBar{
			Open:   number(r.Get("o")),
			High:   number(r.Get("h")),
			Low:    number(r.Get("l")),
			Close:  number(r.Get("c")),
			Volume: number(r.Get("v")),
			Time:   time.UnixMilli(r.Get("t").Int()).UTC(),
		})
	}
	return bars, doc.Get("next_url").String(), nil
}

func number(r gjson.Result) *float64 {
	if r.Type != gjson.Number {
		return nil
	}
	v := r.Float()
	return &v
}
