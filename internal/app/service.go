// Package app wires price providers, the backtester and the result sinks
// into the backtest service used by the CLI and the HTTP API.
package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/fastquant/internal/backtest"
	"github.com/newthinker/fastquant/internal/collector"
	"github.com/newthinker/fastquant/internal/core"
	"github.com/newthinker/fastquant/internal/feed"
	"github.com/newthinker/fastquant/internal/metrics"
	"github.com/newthinker/fastquant/internal/notifier"
	"github.com/newthinker/fastquant/internal/storage/archive"
	"github.com/newthinker/fastquant/internal/storage/result"
)

// Service runs backtests and publishes their results.
type Service struct {
	backtester      *backtest.Backtester
	providers       *collector.Registry
	defaultProvider string

	store     result.Store
	archive   *archive.ResultArchive
	notifiers *notifier.Registry
	metrics   *metrics.Registry
	logger    *zap.Logger

	workers int
	timeout time.Duration
}

// Option configures a Service
type Option func(*Service)

func WithStore(s result.Store) Option { return func(svc *Service) { svc.store = s } }
func WithArchive(a *archive.ResultArchive) Option { return func(svc *Service) { svc.archive = a } }
func WithMetrics(m *metrics.Registry) Option { return func(svc *Service) { svc.metrics = m } }

func WithNotifiers(n *notifier.Registry) Option {
	return func(svc *Service) {
		if n != nil {
			svc.notifiers = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// WithDefaultProvider names the provider used when a request sets none.
func WithDefaultProvider(name string) Option {
	return func(svc *Service) { svc.defaultProvider = name }
}

// WithWorkers bounds the parallelism of RunBatch.
func WithWorkers(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.workers = n
		}
	}
}

// WithTimeout bounds a single run, including price fetches.
func WithTimeout(d time.Duration) Option {
	return func(svc *Service) { svc.timeout = d }
}

// New creates a service. Without WithStore results go to a bounded
// in-memory store.
func New(bt *backtest.Backtester, providers *collector.Registry, opts ...Option) *Service {
	if providers == nil {
		providers = collector.NewRegistry()
	}
	svc := &Service{
		backtester: bt,
		providers:  providers,
		notifiers:  notifier.NewRegistry(),
		logger:     zap.NewNop(),
		workers:    4,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.store == nil {
		svc.store = result.NewMemoryStore(0)
	}
	return svc
}

// Store returns the result store results are published to.
func (s *Service) Store() result.Store {
	return s.store
}

// Run executes one backtest and publishes the result to the store, the
// archive and every notifier. A store failure is returned together with
// the computed result; archive and notifier failures are only logged.
func (s *Service) Run(ctx context.Context, req Request) (*backtest.Result, error) {
	r, err := s.run(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, r); err != nil {
		return r, err
	}
	s.notify(ctx, r)
	return r, nil
}

// BatchItem is the outcome of one request of a batch.
type BatchItem struct {
	Request Request          `json:"-"`
	Result  *backtest.Result `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// RunBatch runs independent requests in parallel, at most Workers at a
// time. A failing request does not cancel the others. Notifiers receive
// the successful results once, as a batch.
func (s *Service) RunBatch(ctx context.Context, reqs []Request) []BatchItem {
	items := make([]BatchItem, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, req := range reqs {
		items[i].Request = req
		g.Go(func() error {
			r, err := s.run(gctx, req)
			if err == nil {
				err = s.publish(gctx, r)
			}
			items[i].Result = r
			if err != nil {
				items[i].Error = err.Error()
			}
			return nil
		})
	}
	g.Wait()

	done := make([]*backtest.Result, 0, len(items))
	for _, it := range items {
		// a result that failed to persist is returned but not announced, as in Run
		if it.Result != nil && it.Error == "" {
			done = append(done, it.Result)
		}
	}
	s.notifyBatch(ctx, done)
	return items
}

func (s *Service) run(ctx context.Context, req Request) (*backtest.Result, error) {
	start := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	name, err := core.ParseStrategyName(string(req.Strategy))
	if err != nil {
		return nil, err
	}
	r, bars, err := s.dispatch(ctx, name, req)
	s.record(name, r, bars, err, time.Since(start))
	if err != nil {
		s.logger.Warn("backtest failed", zap.String("strategy", string(name)), zap.Error(err))
		return nil, err
	}

	s.logger.Info("backtest finished",
		zap.String("strategy", string(name)),
		zap.String("id", r.ID),
		zap.Int("bars", bars),
		zap.Int("trades", r.TradeCount),
		zap.Duration("elapsed", time.Since(start)),
	)
	return r, nil
}

// dispatch decodes the parameters, loads the inputs and runs the strategy.
// It returns the number of bars fed to the strategy.
func (s *Service) dispatch(ctx context.Context, name core.StrategyName, req Request) (*backtest.Result, int, error) {
	params, err := DecodeParams(name, req.Params)
	if err != nil {
		return nil, 0, err
	}
	period, err := req.Period()
	if err != nil {
		return nil, 0, err
	}

	switch name {
	case core.StrategyDonchianChannel:
		bars, err := s.load(ctx, req, req.Ticker, req.Bars, req.Prices)
		if err != nil {
			return nil, 0, err
		}
		r, err := s.backtester.Donchian(ctx, bars.Close, params.Donchian, period)
		return r, bars.Len(), err

	case core.StrategyPairTrading:
		legs, err := s.loadPair(ctx, req)
		if err != nil {
			return nil, 0, err
		}
		p1, err := feed.AveragePrice(legs[0])
		if err != nil {
			return nil, 0, err
		}
		p2, err := feed.AveragePrice(legs[1])
		if err != nil {
			return nil, 0, err
		}
		p1, p2 = feed.Align(p1, p2)
		r, err := s.backtester.PairTrading(ctx, p1, p2, params.Pair, period)
		return r, len(p1), err

	case core.StrategyEMAStopLossPercentage:
		bars, err := s.load(ctx, req, req.Ticker, req.Bars, req.Prices)
		if err != nil {
			return nil, 0, err
		}
		avg, err := feed.AveragePrice(bars)
		if err != nil {
			return nil, 0, err
		}
		r, err := s.backtester.EMAStopLoss(ctx, bars.Close, avg, params.EMAStop, period)
		return r, bars.Len(), err

	case core.StrategyEMAATRStopLoss:
		bars, err := s.load(ctx, req, req.Ticker, req.Bars, req.Prices)
		if err != nil {
			return nil, 0, err
		}
		r, err := s.backtester.EMAATRStopLoss(ctx, bars, params.EMAATR, period)
		return r, bars.Len(), err
	}
	return nil, 0, core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("%q", name))
}

// loadPair resolves both legs, fetching them concurrently.
func (s *Service) loadPair(ctx context.Context, req Request) ([2]core.BarSeries, error) {
	var legs [2]core.BarSeries
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		legs[0], err = s.load(gctx, req, req.Ticker, req.Bars, req.Prices)
		return err
	})
	g.Go(func() error {
		var err error
		legs[1], err = s.load(gctx, req, req.Ticker2, req.Bars2, req.Prices2)
		return err
	})
	return legs, g.Wait()
}

// load returns inline bars when present and fetches ticker otherwise.
func (s *Service) load(ctx context.Context, req Request, ticker string, bars *core.BarSeries, prices []float64) (core.BarSeries, error) {
	if bars != nil {
		if !bars.Aligned() {
			return core.BarSeries{}, core.WrapError(core.ErrSeriesMismatch, fmt.Errorf("inline bars for %q", ticker))
		}
		return *bars, nil
	}
	if len(prices) > 0 {
		return flatBars(prices), nil
	}
	if req.inline() {
		// one leg inline, the other missing
		return core.BarSeries{}, core.WrapError(core.ErrNoData, fmt.Errorf("no inline prices for second leg"))
	}
	return s.fetch(ctx, req, ticker)
}

func (s *Service) fetch(ctx context.Context, req Request, ticker string) (core.BarSeries, error) {
	name := req.Provider
	if name == "" {
		name = s.defaultProvider
	}
	provider, err := s.providers.Resolve(name)
	if err != nil {
		return core.BarSeries{}, err
	}

	period, err := req.Period()
	if err != nil {
		return core.BarSeries{}, err
	}
	q := collector.Query{
		Ticker:     ticker,
		Multiplier: req.Multiplier,
		Timespan:   req.Timespan,
		From:       period.Start,
		To:         period.End,
		Unadjusted: req.Unadjusted,
		Limit:      req.Limit,
		Sort:       req.Sort,
		APIKey:     req.APIKey,
	}.Defaults()
	if err := q.Validate(); err != nil {
		return core.BarSeries{}, err
	}

	raw, err := provider.FetchBars(ctx, q)
	if s.metrics != nil {
		s.metrics.RecordProviderRequest(provider.Name(), err)
	}
	if err != nil {
		return core.BarSeries{}, err
	}
	s.logger.Debug("fetched bars",
		zap.String("provider", provider.Name()),
		zap.String("ticker", ticker),
		zap.Int("bars", len(raw)),
	)
	return feed.Bars(raw, nil), nil
}

func (s *Service) publish(ctx context.Context, r *backtest.Result) error {
	err := s.store.Save(ctx, r)
	s.recordPublish("store", err)
	if err != nil {
		s.logger.Error("saving result", zap.String("id", r.ID), zap.Error(err))
		return err
	}

	if s.archive != nil {
		err := s.archive.Put(ctx, r)
		s.recordPublish("archive", err)
		if err != nil {
			s.logger.Warn("archiving result", zap.String("id", r.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) notify(ctx context.Context, r *backtest.Result) {
	errs := s.notifiers.NotifyAll(ctx, r)
	for _, name := range s.notifiers.Names() {
		s.recordPublish(name, errs[name])
		if err := errs[name]; err != nil {
			s.logger.Warn("notifier failed", zap.String("notifier", name), zap.String("id", r.ID), zap.Error(err))
		}
	}
}

func (s *Service) notifyBatch(ctx context.Context, results []*backtest.Result) {
	if len(results) == 0 {
		return
	}
	errs := s.notifiers.NotifyAllBatch(ctx, results)
	for _, name := range s.notifiers.Names() {
		s.recordPublish(name, errs[name])
		if err := errs[name]; err != nil {
			s.logger.Warn("notifier failed", zap.String("notifier", name), zap.Int("results", len(results)), zap.Error(err))
		}
	}
}

func (s *Service) recordPublish(sink string, err error) {
	if s.metrics != nil {
		s.metrics.RecordPublish(sink, err)
	}
}

func (s *Service) record(name core.StrategyName, r *backtest.Result, bars int, err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	status, trades := "ok", 0
	switch {
	case err != nil:
		status = "error"
	case r.Degenerate(0) || r.Degenerate(math.NaN()):
		status = "degenerate"
	default:
		trades = r.TradeCount
		if !math.IsNaN(r.SharpeRatio) && !math.IsInf(r.SharpeRatio, 0) {
			s.metrics.SetLastSharpe(string(name), r.SharpeRatio)
		}
	}
	s.metrics.RecordBacktest(string(name), status, bars, trades, elapsed.Seconds())
}
