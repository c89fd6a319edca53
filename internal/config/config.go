package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/newthinker/fastquant/internal/core"
)

type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Log       LogConfig                 `mapstructure:"log"`
	Storage   StorageConfig             `mapstructure:"storage"`
	Providers ProvidersConfig           `mapstructure:"providers"`
	IDGen     IDGenConfig               `mapstructure:"idgen"`
	Backtest  BacktestConfig            `mapstructure:"backtest"`
	Notifiers map[string]NotifierConfig `mapstructure:"notifiers"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Mode        string `mapstructure:"mode"`
	APIKey      string `mapstructure:"api_key"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type StorageConfig struct {
	Hot  HotStorageConfig  `mapstructure:"hot"`
	Cold ColdStorageConfig `mapstructure:"cold"`
}

// HotStorageConfig selects the queryable result store.
type HotStorageConfig struct {
	Driver  string `mapstructure:"driver"` // "memory" or "sqlite"
	Path    string `mapstructure:"path"`   // sqlite database file
	MaxSize int    `mapstructure:"max_size"`
}

// ColdStorageConfig selects the JSON archive. An empty type disables it.
type ColdStorageConfig struct {
	Type string   `mapstructure:"type"` // "", "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type ProvidersConfig struct {
	Default string         `mapstructure:"default"`
	Polygon PolygonConfig  `mapstructure:"polygon"`
	Binance ProviderConfig `mapstructure:"binance"`
	CSV     CSVConfig      `mapstructure:"csv"`
}

type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
}

type PolygonConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestsPerSec int           `mapstructure:"requests_per_sec"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type CSVConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type IDGenConfig struct {
	Type string `mapstructure:"type"` // "sequence" or "uuid"
}

type BacktestConfig struct {
	Workers int           `mapstructure:"workers"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type NotifierConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	// Support environment variable overrides
	v.SetEnvPrefix("FASTQUANT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reading config: %w", err))
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.job_ttl_hours", d.Server.JobTTLHours)
	v.SetDefault("server.max_jobs", d.Server.MaxJobs)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("storage.hot.driver", d.Storage.Hot.Driver)
	v.SetDefault("storage.hot.path", d.Storage.Hot.Path)
	v.SetDefault("storage.hot.max_size", d.Storage.Hot.MaxSize)
	v.SetDefault("providers.default", d.Providers.Default)
	v.SetDefault("providers.polygon.base_url", d.Providers.Polygon.BaseURL)
	v.SetDefault("providers.polygon.requests_per_sec", d.Providers.Polygon.RequestsPerSec)
	v.SetDefault("providers.polygon.timeout", d.Providers.Polygon.Timeout)
	v.SetDefault("providers.csv.dir", d.Providers.CSV.Dir)
	v.SetDefault("idgen.type", d.IDGen.Type)
	v.SetDefault("backtest.workers", d.Backtest.Workers)
	v.SetDefault("backtest.timeout", d.Backtest.Timeout)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Mode:        "release",
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Log: LogConfig{Level: "info"},
		Storage: StorageConfig{
			Hot: HotStorageConfig{
				Driver:  "memory",
				Path:    "data/fastquant.db",
				MaxSize: 10000,
			},
		},
		Providers: ProvidersConfig{
			Default: "polygon",
			Polygon: PolygonConfig{
				BaseURL:        "https://api.polygon.io",
				RequestsPerSec: 5,
				Timeout:        30 * time.Second,
			},
			CSV: CSVConfig{Dir: "data/prices"},
		},
		IDGen: IDGenConfig{Type: "sequence"},
		Backtest: BacktestConfig{
			Workers: 4,
			Timeout: 5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Storage.Hot.Driver {
	case "", "memory":
	case "sqlite":
		if c.Storage.Hot.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.hot.path required for sqlite driver"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage.hot.driver %q", c.Storage.Hot.Driver))
	}

	switch c.Storage.Cold.Type {
	case "":
	case "localfs":
		if c.Storage.Cold.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.cold.path required for localfs archive"))
		}
	case "s3":
		if c.Storage.Cold.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.cold.s3.bucket required for s3 archive"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage.cold.type %q", c.Storage.Cold.Type))
	}

	if c.Providers.Polygon.Enabled && c.Providers.Polygon.APIKey == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("providers.polygon.api_key required when polygon is enabled"))
	}

	switch c.IDGen.Type {
	case "", "sequence", "uuid":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown idgen.type %q", c.IDGen.Type))
	}

	if c.Backtest.Workers < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.workers cannot be negative, got %d", c.Backtest.Workers))
	}

	if wh, ok := c.Notifiers["webhook"]; ok && wh.Enabled && wh.URL == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("notifiers.webhook.url required when webhook is enabled"))
	}

	return nil
}
