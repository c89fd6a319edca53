package result

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/fastquant/internal/core"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "fastquant.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStore("  ")
	assert.True(t, errors.Is(err, core.ErrConfigMissing))
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleResult("42", core.StrategyEMAStopLossPercentage, start)))

	got, err := store.GetByID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, core.StrategyEMAStopLossPercentage, got.Strategy)
	assert.True(t, got.StartDate.Equal(start))
	assert.InDelta(t, 0.12, got.AnnualizedReturn, 1e-12)
	assert.InDelta(t, 0.6, got.SharpeRatio, 1e-12)
	assert.Equal(t, 4, got.TradeCount)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store := newTestSQLiteStore(t)

	_, err := store.GetByID(context.Background(), "nope")
	assert.True(t, errors.Is(err, core.ErrResultNotFound))
}

func TestSQLiteStore_NaNStoredAsNull(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	r := sampleResult("nan", core.StrategyPairTrading, time.Now().UTC())
	r.AnnualizedReturn = math.NaN()
	r.Volatility = math.Inf(1)
	require.NoError(t, store.Save(ctx, r))

	var nulls int64
	require.NoError(t, store.db.Model(&quantStrategyModel{}).
		Where("annualized_return IS NULL AND volatility IS NULL").Count(&nulls).Error)
	assert.Equal(t, int64(1), nulls)

	got, err := store.GetByID(ctx, "nan")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.AnnualizedReturn))
	assert.True(t, math.IsNaN(got.Volatility))
	assert.InDelta(t, 0.03, got.CumulativeReturn, 1e-12)
}

func TestSQLiteStore_SaveUpserts(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	r := sampleResult("7", core.StrategyDonchianChannel, time.Now().UTC())
	require.NoError(t, store.Save(ctx, r))
	r.TradeCount = 11
	require.NoError(t, store.Save(ctx, r))

	n, err := store.Count(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetByID(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 11, got.TradeCount)
}

func TestSQLiteStore_ListFilterAndOrder(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleResult("a", core.StrategyDonchianChannel, now)))
	require.NoError(t, store.Save(ctx, sampleResult("b", core.StrategyPairTrading, now)))
	require.NoError(t, store.Save(ctx, sampleResult("c", core.StrategyDonchianChannel, now)))

	results, err := store.List(ctx, ListFilter{Strategy: core.StrategyDonchianChannel})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c", results[0].ID)
	assert.Equal(t, "a", results[1].ID)

	page, err := store.List(ctx, ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)

	n, err := store.Count(ctx, ListFilter{Strategy: core.StrategyPairTrading})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
