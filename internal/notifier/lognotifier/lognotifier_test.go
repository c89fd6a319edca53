package lognotifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/newthinker/fastquant/internal/backtest"
	"github.com/newthinker/fastquant/internal/core"
	"github.com/newthinker/fastquant/internal/notifier"
)

func TestLog_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Log)(nil)
}

func TestLog_SendBatch(t *testing.T) {
	zcore, logs := observer.New(zap.InfoLevel)
	n := New(zap.New(zcore))

	results := []*backtest.Result{
		{ID: "1", Strategy: core.StrategyDonchianChannel},
		{ID: "2", Strategy: core.StrategyPairTrading, TradeCount: 3},
	}
	assert.NoError(t, n.SendBatch(context.Background(), results))

	entries := logs.FilterMessage("backtest result").All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "2", entries[1].ContextMap()["strategy_id"])
	assert.Equal(t, int64(3), entries[1].ContextMap()["trades"])
}
