// Package binance fetches kline bars from the Binance spot API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/fastquant/internal/collector"
	"github.com/newthinker/fastquant/internal/core"
	"github.com/newthinker/fastquant/internal/platform/httpclient"
)

const (
	baseURL = "https://api.binance.com"
	// pageLimit is the largest kline page Binance serves
	pageLimit = 1000
)

// Binance implements collector.Provider for Binance exchange klines
type Binance struct {
	client  *httpclient.Client
	baseURL string
	logger  *zap.Logger
}

// New creates a new Binance provider
func New() *Binance {
	return &Binance{
		client:  httpclient.New(httpclient.Options{Timeout: 10 * time.Second, RequestsPerSec: 10}),
		baseURL: baseURL,
		logger:  zap.NewNop(),
	}
}

// NewWithBaseURL creates a Binance provider with custom base URL (for testing)
func NewWithBaseURL(url string, client *httpclient.Client) *Binance {
	b := New()
	b.baseURL = url
	if client != nil {
		b.client = client
	}
	return b
}

// WithLogger sets the logger and returns b
func (b *Binance) WithLogger(l *zap.Logger) *Binance {
	b.logger = l
	return b
}

func (b *Binance) Name() string {
	return "binance"
}

// FetchBars fetches klines for q, paging forward from q.From until q.To.
func (b *Binance) FetchBars(ctx context.Context, q collector.Query) ([]core.RawBar, error) {
	q = q.Defaults()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	interval, err := b.toInterval(q.Multiplier, q.Timespan)
	if err != nil {
		return nil, err
	}

	var bars []core.RawBar
	start := q.From
	for len(bars) < q.Limit {
		url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&endTime=%d&limit=%d",
			b.baseURL, toSymbol(q.Ticker), interval, start.UnixMilli(), q.To.UnixMilli(), min(pageLimit, q.Limit-len(bars)))

		body, err := b.client.Get(ctx, url, nil)
		if err != nil {
			return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("binance %s: %w", q.Ticker, err))
		}

		page, err := parseKlines(body)
		if err != nil {
			return nil, core.WrapError(core.ErrProviderFailed, err)
		}
		bars = append(bars, page...)

		if len(page) < pageLimit {
			break
		}
		start = page[len(page)-1].Time.Add(time.Millisecond)
	}

	if q.Sort == core.SortDesc {
		for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
			bars[i], bars[j] = bars[j], bars[i]
		}
	}

	b.logger.Debug("fetched klines", zap.String("symbol", q.Ticker), zap.String("interval", interval), zap.Int("bars", len(bars)))
	return bars, nil
}

func parseKlines(body []byte) ([]core.RawBar, error) {
	var klines [][]any
	if err := json.Unmarshal(body, &klines); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	data := make([]core.RawBar, 0, len(klines))
	for _, k := range klines {
		if len(k) < 6 {
			continue
		}

		openTime, _ := k[0].(float64)
		data = append(data, core.RawBar{
			Open:   parseField(k[1]),
			High:   parseField(k[2]),
			Low:    parseField(k[3]),
			Close:  parseField(k[4]),
			Volume: parseField(k[5]),
			Time:   time.UnixMilli(int64(openTime)).UTC(),
		})
	}
	return data, nil
}

// parseField reads a decimal string field; anything unparsable is missing.
func parseField(v any) *float64 {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// toSymbol maps Polygon-style crypto tickers (X:BTCUSD) to Binance symbols.
func toSymbol(ticker string) string {
	s := strings.TrimPrefix(strings.ToUpper(ticker), "X:")
	if strings.HasSuffix(s, "USD") && !strings.HasSuffix(s, "USDT") {
		s += "T"
	}
	return s
}

func (b *Binance) toInterval(multiplier int, span core.Timespan) (string, error) {
	supported := map[core.Timespan][]int{
		core.TimespanSecond: {1},
		core.TimespanMinute: {1, 3, 5, 15, 30},
		core.TimespanHour:   {1, 2, 4, 6, 8, 12},
		core.TimespanDay:    {1, 3},
		core.TimespanWeek:   {1},
		core.TimespanMonth:  {1},
	}
	suffix := map[core.Timespan]string{
		core.TimespanSecond: "s",
		core.TimespanMinute: "m",
		core.TimespanHour:   "h",
		core.TimespanDay:    "d",
		core.TimespanWeek:   "w",
		core.TimespanMonth:  "M",
	}

	for _, m := range supported[span] {
		if m == multiplier {
			return strconv.Itoa(m) + suffix[span], nil
		}
	}
	return "", core.WrapError(core.ErrInvalidParams, fmt.Errorf("binance has no %d %s interval", multiplier, span))
}
