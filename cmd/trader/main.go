package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"spotengine/internal/ingest/binance"
	"spotengine/internal/journal"
	"spotengine/internal/notify"
	"spotengine/internal/obs"
	"spotengine/internal/ops"
	"spotengine/internal/order"
	delegator "spotengine/internal/order/delegator/binance"
	"spotengine/internal/recorder"
	"spotengine/internal/scheduler"
	"spotengine/internal/shell"
	"spotengine/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	envPath := flag.String("env", "", "Path to .env holding BINANCE_API_KEY and BINANCE_SECRET_KEY (default: ./.env if present)")
	keysPath := flag.String("keys", "", "Path to JSON keys file with api_key and secret_key (overrides -env)")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	cred, err := ops.LoadCredentials(*envPath, *keysPath)
	if err != nil {
		log.Fatalf("credentials load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sys.Shutdown():
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.Profiling.ServerAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Profiling.ApplicationName,
			ServerAddress:   cfg.Profiling.ServerAddress,
			Tags: map[string]string{
				"interval": cfg.Trading.Interval,
			},
			Logger: emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	var wg sync.WaitGroup
	goRun := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
				logs.Errorf("%s stopped, err: %+v", name, err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)
	if cfg.Metrics.Address != "" {
		goRun("metrics server", func() error { return obs.Serve(ctx, cfg.Metrics.Address, registry) })
	}

	var fileLog *recorder.Writer
	if cfg.Logging.File != "" {
		fileLog, err = recorder.NewWriter(recorder.Config{
			File:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		})
		if err != nil {
			log.Fatalf("file log setup failed: %v", err)
		}
		if err := fileLog.Start(ctx); err != nil {
			log.Fatalf("file log start failed: %v", err)
		}
		defer func() {
			if err := fileLog.Close(); err != nil {
				logs.Errorf("close file log, err: %+v", err)
			}
		}()
	}

	discord := notify.NewDiscord(&http.Client{Timeout: 10 * time.Second}, cfg.Notify.DiscordWebhook, notify.Option{
		FlushInterval: cfg.Notify.FlushInterval,
		MaxPostChars:  cfg.Notify.MaxPostChars,
	})
	if discord != nil {
		goRun("discord notifier", func() error { discord.Run(ctx); return nil })
	}

	exchange := delegator.NewDelegator(&http.Client{}, cred, delegator.Option{
		BaseURL:           cfg.Exchange.RESTURL,
		RecvWindow:        cfg.Exchange.RecvWindow,
		RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
	})
	filters, err := exchange.ExchangeInfo(ctx, cfg.Trading.Tickers)
	if err != nil {
		log.Fatalf("exchange info failed: %v", err)
	}

	observers := []order.Observer{metrics}
	var history scheduler.OrderHistory
	if cfg.Journal.Enabled() {
		db, err := conn.OpenPostgres(ctx, cfg.Journal)
		if err != nil {
			log.Fatalf("journal connect failed: %v", err)
		}
		defer func() {
			_ = db.Close()
		}()
		j := journal.New(db.Gorm())
		if err := j.Migrate(ctx); err != nil {
			log.Fatalf("journal migrate failed: %v", err)
		}
		observers = append(observers, j)
		history = j
	}

	executor := order.NewUsecase(exchange, observers...)
	if err := executor.Run(ctx); err != nil {
		log.Fatalf("order worker start failed: %v", err)
	}
	defer executor.Close()

	deps := scheduler.Deps{
		Exchange: exchange,
		Executor: executor,
		Filters:  filters,
		Metrics:  metrics,
		History:  history,
	}
	if discord != nil {
		deps.Notifier = discord
	}
	if fileLog != nil {
		deps.Recorder = fileLog
	}
	sched, err := scheduler.New(scheduler.Config{
		BaseAsset:    cfg.Trading.BaseAsset,
		Tickers:      cfg.Trading.Tickers,
		Interval:     cfg.Trading.Interval,
		Period:       cfg.Trading.Period,
		HistoryLimit: cfg.Trading.HistoryLimit,
		Strategies:   cfg.Trading.Strategies,
		Split:        cfg.Trading.Split,
		VarsPath:     cfg.Trading.VarsPath,
		Autostart:    cfg.Trading.Autostart,
	}, deps)
	if err != nil {
		log.Fatalf("scheduler setup failed: %v", err)
	}
	if cfg.Trading.RestoreVars {
		_ = sched.Commands().Publish(scheduler.Command{Verb: scheduler.VerbFetchVars})
	}

	for _, ticker := range cfg.Trading.Tickers {
		stream := binance.NewKlineStream(cfg.Exchange.StreamURL, ticker, cfg.Trading.Interval, sched.Candles())
		goRun("kline stream "+ticker, func() error { return stream.Run(ctx) })
	}
	userStream := binance.NewUserStream(cfg.Exchange.StreamURL, exchange, sched.Accounts())
	goRun("user stream", func() error { return userStream.Run(ctx) })
	goRun("scheduler", func() error { return sched.Run(ctx) })

	logs.Infof("engine ready, tickers: %v, interval: %s, slots: %d", cfg.Trading.Tickers, cfg.Trading.Interval, len(cfg.Trading.Split))
	discord.Notifyf("spotengine up: %v on %s, %d slots", cfg.Trading.Tickers, cfg.Trading.Interval, len(cfg.Trading.Split))
	switch err := shell.New(os.Stdin, os.Stdout, sched.Commands()).Run(ctx); {
	case errors.Is(err, io.EOF):
		logs.Info("stdin closed, running without shell")
		<-ctx.Done()
	case err != nil:
		logs.Errorf("shell stopped, err: %+v", err)
	}
	cancel()
	wg.Wait()
	logs.Info("engine stopped")
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
