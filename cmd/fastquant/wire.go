package main

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/fastquant/internal/app"
	"github.com/newthinker/fastquant/internal/backtest"
	"github.com/newthinker/fastquant/internal/collector"
	"github.com/newthinker/fastquant/internal/collector/binance"
	"github.com/newthinker/fastquant/internal/collector/csvfile"
	"github.com/newthinker/fastquant/internal/collector/polygon"
	"github.com/newthinker/fastquant/internal/config"
	"github.com/newthinker/fastquant/internal/idgen"
	"github.com/newthinker/fastquant/internal/logger"
	"github.com/newthinker/fastquant/internal/metrics"
	"github.com/newthinker/fastquant/internal/notifier"
	"github.com/newthinker/fastquant/internal/notifier/lognotifier"
	"github.com/newthinker/fastquant/internal/notifier/webhook"
	"github.com/newthinker/fastquant/internal/platform/httpclient"
	"github.com/newthinker/fastquant/internal/storage/archive"
	"github.com/newthinker/fastquant/internal/storage/result"
)

// loadConfig reads --config when given and falls back to defaults.
func loadConfig() (*config.Config, error) {
	cfg := config.Defaults()
	if cfgFile != "" {
		var err error
		if cfg, err = config.Load(cfgFile); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Options{Development: debug, Level: cfg.Log.Level})
}

// runtime bundles everything built from config.
type runtime struct {
	service *app.Service
	store   result.Store
	metrics *metrics.Registry
	closers []io.Closer
}

func (r *runtime) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func buildRuntime(cfg *config.Config, log *zap.Logger) (*runtime, error) {
	rt := &runtime{}

	ids, err := idgen.New(cfg.IDGen.Type)
	if err != nil {
		return nil, err
	}

	store, closer, err := openStore(cfg.Storage.Hot)
	if err != nil {
		return nil, err
	}
	rt.store = store
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}

	opts := []app.Option{
		app.WithStore(store),
		app.WithLogger(log),
		app.WithDefaultProvider(cfg.Providers.Default),
		app.WithWorkers(cfg.Backtest.Workers),
		app.WithTimeout(cfg.Backtest.Timeout),
	}

	arch, err := openArchive(cfg.Storage.Cold)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if arch != nil {
		opts = append(opts, app.WithArchive(archive.NewResultArchive(arch)))
	}

	notifiers, err := buildNotifiers(cfg.Notifiers, log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	opts = append(opts, app.WithNotifiers(notifiers))

	if cfg.Metrics.Enabled {
		rt.metrics = metrics.NewRegistry()
		opts = append(opts, app.WithMetrics(rt.metrics))
	}

	bt := backtest.New(ids, backtest.WithLogger(log))
	rt.service = app.New(bt, buildProviders(cfg.Providers, log), opts...)
	return rt, nil
}

func openStore(cfg config.HotStorageConfig) (result.Store, io.Closer, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := result.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return result.NewMemoryStore(cfg.MaxSize), nil, nil
	}
}

func openArchive(cfg config.ColdStorageConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "localfs":
		return archive.NewLocalFS(cfg.Path)
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return nil, nil
	}
}

// buildProviders registers every enabled provider plus the default one.
func buildProviders(cfg config.ProvidersConfig, log *zap.Logger) *collector.Registry {
	reg := collector.NewRegistry()
	if cfg.CSV.Enabled || cfg.Default == "csv" {
		reg.Register(csvfile.New(cfg.CSV.Dir))
	}

	// without a configured key, callers pass one per request
	if cfg.Polygon.Enabled || cfg.Default == "polygon" {
		client := httpclient.New(httpclient.Options{
			Timeout:        cfg.Polygon.Timeout,
			RequestsPerSec: cfg.Polygon.RequestsPerSec,
		})
		reg.Register(polygon.New(cfg.Polygon.APIKey,
			polygon.WithBaseURL(cfg.Polygon.BaseURL),
			polygon.WithClient(client),
			polygon.WithLogger(log.Named("polygon")),
		))
	}

	if cfg.Binance.Enabled || cfg.Default == "binance" {
		b := binance.New()
		if cfg.Binance.BaseURL != "" {
			b = binance.NewWithBaseURL(cfg.Binance.BaseURL, nil)
		}
		reg.Register(b.WithLogger(log.Named("binance")))
	}
	return reg
}

func buildNotifiers(cfgs map[string]config.NotifierConfig, log *zap.Logger) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()
	for name, nc := range cfgs {
		if !nc.Enabled {
			continue
		}
		var n notifier.Notifier
		switch name {
		case "webhook":
			n = webhook.New(nc.URL, nc.Headers)
		case "log":
			n = lognotifier.New(log.Named("results"))
		default:
			return nil, fmt.Errorf("unknown notifier %q", name)
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func jobTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Server.JobTTLHours) * time.Hour
}
