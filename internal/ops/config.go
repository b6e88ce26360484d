package ops

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"spotengine/internal/candle"
	"spotengine/internal/ingest/binance"
	delegator "spotengine/internal/order/delegator/binance"
	"spotengine/internal/portfolio"
	"spotengine/internal/strategy"
	"spotengine/pkg/conn"
)

// FileConfig mirrors the YAML config layout.
type FileConfig struct {
	Exchange  ExchangeFileConfig  `yaml:"exchange"`
	Trading   TradingFileConfig   `yaml:"trading"`
	Logging   LoggingFileConfig   `yaml:"logging"`
	Notify    NotifyFileConfig    `yaml:"notify"`
	Journal   conn.Postgres       `yaml:"journal"`
	Metrics   MetricsFileConfig   `yaml:"metrics"`
	Profiling ProfilingFileConfig `yaml:"profiling"`
}

// ExchangeFileConfig holds the venue endpoints.
type ExchangeFileConfig struct {
	RESTURL           string  `yaml:"rest_url"`
	StreamURL         string  `yaml:"stream_url"`
	RecvWindow        string  `yaml:"recv_window"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// TradingFileConfig holds the tickers and slot layout.
type TradingFileConfig struct {
	BaseAsset   string               `yaml:"base_asset"`
	Tickers     []string             `yaml:"tickers"`
	Period      string               `yaml:"period"`
	MaxLookback string               `yaml:"max_lookback"`
	VarsPath    string               `yaml:"vars_path"`
	RestoreVars bool                 `yaml:"restore_vars"`
	Autostart   bool                 `yaml:"autostart"`
	Strategies  []StrategyFileConfig `yaml:"strategies"`
}

// StrategyFileConfig is one slot: a strategy variant plus its capital share.
type StrategyFileConfig struct {
	Kind         strategy.Kind `yaml:"kind"`
	Params       []float64     `yaml:"params"`
	CapitalSplit float64       `yaml:"capital_split"`
}

type LoggingFileConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type NotifyFileConfig struct {
	DiscordWebhook string `yaml:"discord_webhook"`
	FlushInterval  string `yaml:"flush_interval"`
	MaxPostChars   int    `yaml:"max_post_chars"`
}

type MetricsFileConfig struct {
	Address string `yaml:"address"`
}

type ProfilingFileConfig struct {
	ServerAddress   string `yaml:"server_address"`
	ApplicationName string `yaml:"application_name"`
}

// Config is the resolved, validated configuration. Treat it as read-only.
type Config struct {
	Exchange  Exchange
	Trading   Trading
	Logging   LoggingFileConfig
	Notify    Notify
	Journal   conn.Postgres
	Metrics   MetricsFileConfig
	Profiling ProfilingFileConfig
}

type Exchange struct {
	RESTURL           string
	StreamURL         string
	RecvWindow        time.Duration
	RequestsPerSecond float64
}

type Trading struct {
	BaseAsset    string
	Tickers      []string
	Period       time.Duration
	Interval     string
	MaxLookback  time.Duration
	HistoryLimit int
	VarsPath     string
	RestoreVars  bool
	Autostart    bool
	Strategies   []strategy.Spec
	Split        []float64
}

type Notify struct {
	DiscordWebhook string
	FlushInterval  time.Duration
	MaxPostChars   int
}

const (
	defaultBaseAsset     = "USDT"
	defaultPeriod        = time.Minute
	defaultMaxLookback   = 24 * time.Hour
	defaultVarsPath      = "data/vars.txt"
	defaultRecvWindow    = 5 * time.Second
	defaultRequestRate   = 10
	defaultFlushInterval = 5 * time.Second
	defaultMaxPostChars  = 2000
	defaultLogMaxSizeMB  = 64
	defaultLogMaxBackups = 5
	defaultLogMaxAgeDays = 14
)

// Kline intervals the exchange accepts, keyed by bar period.
var intervals = map[time.Duration]string{
	time.Minute:      "1m",
	3 * time.Minute:  "3m",
	5 * time.Minute:  "5m",
	15 * time.Minute: "15m",
	30 * time.Minute: "30m",
	time.Hour:        "1h",
	2 * time.Hour:    "2h",
	4 * time.Hour:    "4h",
	6 * time.Hour:    "6h",
	8 * time.Hour:    "8h",
	12 * time.Hour:   "12h",
	24 * time.Hour:   "1d",
}

// Load reads a YAML config file and resolves it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse decodes and resolves YAML config bytes. All validation problems are
// reported together.
func Parse(data []byte) (Config, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	exchange, errExchange := resolveExchange(fc.Exchange)
	trading, errTrading := resolveTrading(fc.Trading)
	notify, errNotify := resolveNotify(fc.Notify)
	if err := multierr.Combine(errExchange, errTrading, errNotify); err != nil {
		return Config{}, err
	}

	return Config{
		Exchange:  exchange,
		Trading:   trading,
		Logging:   resolveLogging(fc.Logging),
		Notify:    notify,
		Journal:   fc.Journal,
		Metrics:   fc.Metrics,
		Profiling: resolveProfiling(fc.Profiling),
	}, nil
}

func resolveExchange(cfg ExchangeFileConfig) (Exchange, error) {
	out := Exchange{
		RESTURL:           cfg.RESTURL,
		StreamURL:         cfg.StreamURL,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
	if out.RESTURL == "" {
		out.RESTURL = delegator.DefaultBaseURL
	}
	if out.StreamURL == "" {
		out.StreamURL = binance.DefaultStreamURL
	}
	if out.RequestsPerSecond == 0 {
		out.RequestsPerSecond = defaultRequestRate
	}

	var err error
	if out.RequestsPerSecond < 0 {
		err = multierr.Append(err, fmt.Errorf("exchange.requests_per_second must be >= 0"))
	}
	recv, e := durationOr(cfg.RecvWindow, defaultRecvWindow, "exchange.recv_window")
	err = multierr.Append(err, e)
	if recv > time.Minute {
		err = multierr.Append(err, fmt.Errorf("exchange.recv_window must be <= 1m, got %s", recv))
	}
	out.RecvWindow = recv
	return out, err
}

func resolveTrading(cfg TradingFileConfig) (Trading, error) {
	out := Trading{
		BaseAsset:   strings.ToUpper(cfg.BaseAsset),
		VarsPath:    cfg.VarsPath,
		RestoreVars: cfg.RestoreVars,
		Autostart:   cfg.Autostart,
	}
	if out.BaseAsset == "" {
		out.BaseAsset = defaultBaseAsset
	}
	if out.VarsPath == "" {
		out.VarsPath = defaultVarsPath
	}

	var err error
	if len(cfg.Tickers) == 0 {
		err = multierr.Append(err, fmt.Errorf("trading.tickers is empty"))
	}
	for _, t := range cfg.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			err = multierr.Append(err, fmt.Errorf("trading.tickers contains an empty symbol"))
			continue
		}
		out.Tickers = append(out.Tickers, t)
	}

	period, e := durationOr(cfg.Period, defaultPeriod, "trading.period")
	err = multierr.Append(err, e)
	out.Period = period
	if interval, ok := intervals[period]; ok {
		out.Interval = interval
	} else if e == nil {
		err = multierr.Append(err, fmt.Errorf("trading.period %s is not a kline interval", period))
	}

	lookback, e := durationOr(cfg.MaxLookback, defaultMaxLookback, "trading.max_lookback")
	err = multierr.Append(err, e)
	out.MaxLookback = lookback
	if e == nil && period > 0 {
		limit, e := candle.Limit(lookback, period)
		err = multierr.Append(err, e)
		out.HistoryLimit = limit
	}

	if len(cfg.Strategies) == 0 {
		err = multierr.Append(err, fmt.Errorf("trading.strategies is empty"))
	}
	for i, s := range cfg.Strategies {
		spec := strategy.Spec{Kind: s.Kind, Params: s.Params}
		if _, e := strategy.Build(spec); e != nil {
			err = multierr.Append(err, fmt.Errorf("trading.strategies[%d]: %w", i, e))
		}
		if s.CapitalSplit <= 0 || math.IsNaN(s.CapitalSplit) {
			err = multierr.Append(err, fmt.Errorf("trading.strategies[%d].capital_split must be > 0", i))
		}
		out.Strategies = append(out.Strategies, spec)
		out.Split = append(out.Split, s.CapitalSplit)
	}

	if err == nil {
		if _, e := portfolio.NewBook(out.Tickers, out.Split); e != nil {
			err = multierr.Append(err, fmt.Errorf("trading: %w", e))
		}
	}
	return out, err
}

func resolveNotify(cfg NotifyFileConfig) (Notify, error) {
	out := Notify{DiscordWebhook: cfg.DiscordWebhook, MaxPostChars: cfg.MaxPostChars}
	if out.MaxPostChars <= 0 || out.MaxPostChars > defaultMaxPostChars {
		out.MaxPostChars = defaultMaxPostChars
	}
	interval, err := durationOr(cfg.FlushInterval, defaultFlushInterval, "notify.flush_interval")
	out.FlushInterval = interval
	return out, err
}

func resolveLogging(cfg LoggingFileConfig) LoggingFileConfig {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = defaultLogMaxSizeMB
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = defaultLogMaxBackups
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = defaultLogMaxAgeDays
	}
	return cfg
}

func resolveProfiling(cfg ProfilingFileConfig) ProfilingFileConfig {
	if cfg.ApplicationName == "" {
		cfg.ApplicationName = "spotengine"
	}
	return cfg
}

func durationOr(raw string, fallback time.Duration, field string) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return fallback, fmt.Errorf("%s must be > 0, got %s", field, d)
	}
	return d, nil
}
