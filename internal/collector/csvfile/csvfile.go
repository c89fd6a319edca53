// Package csvfile reads bars from local CSV files.
//
// Files carry a header row naming the columns; time (or date/timestamp)
// and close are required, open/high/low/volume are optional. Empty cells
// are missing values.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/fastquant/internal/collector"
	"github.com/newthinker/fastquant/internal/core"
)

// Provider serves bars from <dir>/<ticker>.csv
type Provider struct {
	dir string
}

// New creates a CSV provider rooted at dir
func New(dir string) *Provider {
	return &Provider{dir: dir}
}

func (p *Provider) Name() string {
	return "csv"
}

// Path returns the file backing ticker. Characters that are unsafe in file
// names are replaced with underscores.
func (p *Provider) Path(ticker string) string {
	name := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(ticker)
	return filepath.Join(p.dir, name+".csv")
}

// FetchBars reads the ticker file and keeps rows inside [q.From, q.To].
func (p *Provider) FetchBars(ctx context.Context, q collector.Query) ([]core.RawBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars, err := ReadFile(p.Path(q.Ticker))
	if err != nil {
		return nil, err
	}

	out := bars[:0]
	for _, b := range bars {
		if !q.From.IsZero() && b.Time.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && b.Time.After(endOfDay(q.To)) {
			continue
		}
		out = append(out, b)
	}

	if q.Sort == core.SortDesc {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// ReadFile loads every bar of a CSV file in chronological order.
func ReadFile(path string) ([]core.RawBar, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s: %w", path, err))
		}
		return nil, core.WrapError(core.ErrProviderFailed, err)
	}
	defer f.Close()

	bars, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// Read parses CSV bars from r and sorts them by time.
func Read(r io.Reader) ([]core.RawBar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("reading header: %w", err))
	}
	cols := columnIndex(header)
	timeCol, ok := firstColumn(cols, "time", "date", "timestamp", "t")
	if !ok {
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("csv has no time column"))
	}
	closeCol, ok := firstColumn(cols, "close", "c")
	if !ok {
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("csv has no close column"))
	}

	var bars []core.RawBar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("line %d: %w", line, err))
		}

		ts, err := parseTime(cell(rec, timeCol))
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("line %d: %w", line, err))
		}

		bar := core.RawBar{Time: ts, Close: parseCell(cell(rec, closeCol))}
		if i, ok := firstColumn(cols, "open", "o"); ok {
			bar.Open = parseCell(cell(rec, i))
		}
		if i, ok := firstColumn(cols, "high", "h"); ok {
			bar.High = parseCell(cell(rec, i))
		}
		if i, ok := firstColumn(cols, "low", "l"); ok {
			bar.Low = parseCell(cell(rec, i))
		}
		if i, ok := firstColumn(cols, "volume", "v"); ok {
			bar.Volume = parseCell(cell(rec, i))
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func firstColumn(cols map[string]int, names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i, true
		}
	}
	return 0, false
}

func cell(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseCell(s string) *float64 {
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "nan") {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func endOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}
