// Package scheduler runs the single loop that owns every piece of trading
// state: candle histories, strategy state, slot positions and the balance
// cache.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/yanun0323/logs"

	"spotengine/internal/bus"
	"spotengine/internal/candle"
	"spotengine/internal/ingest/binance"
	"spotengine/internal/journal"
	"spotengine/internal/obs"
	"spotengine/internal/order"
	"spotengine/internal/portfolio"
	"spotengine/internal/strategy"
	"spotengine/pkg/exception"
)

// Exchange is the REST surface the scheduler drives.
type Exchange interface {
	order.AccountReader
	Ping(ctx context.Context) error
	ServerTime(ctx context.Context) (int64, error)
	ExchangeInfo(ctx context.Context, symbols []string) (portfolio.FilterSet, error)
	TestOrder(ctx context.Context, req order.MarketOrderRequest) error
	NewListenKey(ctx context.Context) (string, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error)
}

// Executor runs one order round trip and returns its confirmation.
type Executor interface {
	Execute(ctx context.Context, req order.MarketOrderRequest) (order.Outcome, error)
}

// Notifier receives operator-facing lines.
type Notifier interface {
	Notify(msg string)
}

// Recorder receives structured records for the file log.
type Recorder interface {
	Record(kind string, fields map[string]any)
}

// OrderHistory lists persisted order attempts, newest first.
type OrderHistory interface {
	Recent(ctx context.Context, n int) ([]journal.OrderRecord, error)
}

// Config is the slice of the engine configuration the loop needs.
type Config struct {
	// BaseAsset is the cash currency every slot returns to. Every ticker
	// must be quoted in it.
	BaseAsset    string
	Tickers      []string
	Interval     string
	Period       time.Duration
	HistoryLimit int
	Strategies   []strategy.Spec
	Split        []float64
	VarsPath     string
	Autostart    bool
}

// Deps are the collaborators of the loop. Notifier, Recorder, Metrics and
// History are optional.
type Deps struct {
	Exchange Exchange
	Executor Executor
	Filters  portfolio.FilterSet
	Notifier Notifier
	Recorder Recorder
	Metrics  *obs.Metrics
	History  OrderHistory
}

// Scheduler is the action loop. Only Run touches its state; producers talk to
// it through the queues.
type Scheduler struct {
	cfg      Config
	exchange Exchange
	executor Executor
	filters  portfolio.FilterSet
	notifier Notifier
	recorder Recorder
	metrics  *obs.Metrics
	history  OrderHistory
	ids      *obs.DecisionIDs

	commands *bus.Queue[Command]
	accounts *bus.Queue[binance.AccountEvent]
	candles  *bus.Queue[candle.Candle]

	book       *portfolio.Book
	histories  map[string]*candle.History
	strategies map[string][]strategy.Strategy
	primed     map[string]bool
	assets     map[string]struct{}
	balances   map[string]float64
	lastClose  map[string]time.Time
	stale      map[string]bool
	pending    []candle.Candle
	running    bool
	closes     int

	now func() time.Time
}

// New validates the exchange filters and builds per-ticker state. Missing
// filters are fatal: there is no safe default for sizing.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Exchange == nil || deps.Executor == nil {
		return nil, fmt.Errorf("%w: scheduler needs an exchange and an executor", exception.ErrNilInstance)
	}
	if cfg.HistoryLimit < 1 {
		return nil, fmt.Errorf("%w: history limit %d", exception.ErrCandleLimit, cfg.HistoryLimit)
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	if err := deps.Filters.Validate(cfg.Tickers); err != nil {
		return nil, err
	}
	for _, t := range cfg.Tickers {
		if quote := deps.Filters[t].QuoteAsset; quote != cfg.BaseAsset {
			return nil, fmt.Errorf("%w: %s is quoted in %s, base asset is %q", exception.ErrQuoteMismatch, t, quote, cfg.BaseAsset)
		}
	}
	book, err := portfolio.NewBook(cfg.Tickers, cfg.Split)
	if err != nil {
		return nil, err
	}
	if len(cfg.Strategies) != book.Slots() {
		return nil, fmt.Errorf("%w: %d strategies for %d slots", exception.ErrInvalidSplit, len(cfg.Strategies), book.Slots())
	}

	s := &Scheduler{
		cfg:        cfg,
		exchange:   deps.Exchange,
		executor:   deps.Executor,
		filters:    deps.Filters,
		notifier:   deps.Notifier,
		recorder:   deps.Recorder,
		metrics:    deps.Metrics,
		history:    deps.History,
		ids:        obs.NewDecisionIDs("d-"),
		commands:   bus.NewQueue[Command](),
		accounts:   bus.NewQueue[binance.AccountEvent](),
		candles:    bus.NewQueue[candle.Candle](),
		book:       book,
		histories:  make(map[string]*candle.History, len(cfg.Tickers)),
		strategies: make(map[string][]strategy.Strategy, len(cfg.Tickers)),
		primed:     make(map[string]bool, len(cfg.Tickers)),
		assets:     map[string]struct{}{},
		balances:   map[string]float64{},
		lastClose:  make(map[string]time.Time, len(cfg.Tickers)),
		stale:      make(map[string]bool, len(cfg.Tickers)),
		now:        time.Now,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}

	started := s.now()
	for _, t := range cfg.Tickers {
		strategies, err := strategy.BuildAll(cfg.Strategies)
		if err != nil {
			return nil, err
		}
		s.strategies[t] = strategies
		s.histories[t] = candle.NewHistory(cfg.HistoryLimit)
		s.lastClose[t] = started
		f := deps.Filters[t]
		s.assets[f.BaseAsset] = struct{}{}
		s.assets[f.QuoteAsset] = struct{}{}
	}
	return s, nil
}

// Commands is the queue the shell publishes verbs on.
func (s *Scheduler) Commands() *bus.Queue[Command] { return s.commands }

// Accounts is the queue the user-data stream publishes on.
func (s *Scheduler) Accounts() *bus.Queue[binance.AccountEvent] { return s.accounts }

// Candles is the queue every kline stream publishes on.
func (s *Scheduler) Candles() *bus.Queue[candle.Candle] { return s.candles }

// Run loops until ctx is done. Each wake-up runs one iteration; while
// deferred candles remain the loop does not block.
func (s *Scheduler) Run(ctx context.Context) error {
	logs.Infof("scheduler started, tickers: %v, slots: %d, history: %d", s.cfg.Tickers, s.book.Slots(), s.cfg.HistoryLimit)
	if s.cfg.Autostart {
		s.execute(ctx, Command{Verb: VerbAutostart})
	}

	heartbeat := time.NewTicker(s.cfg.Period)
	defer heartbeat.Stop()

	for {
		if len(s.pending) == 0 {
			select {
			case <-ctx.Done():
				logs.Info("scheduler stopped")
				return nil
			case <-s.commands.C():
			case <-s.accounts.C():
			case <-s.candles.C():
			case <-heartbeat.C:
				s.checkFeeds()
				continue
			}
		} else if ctx.Err() != nil {
			logs.Info("scheduler stopped")
			return nil
		}
		s.step(ctx)
	}
}

// step is one iteration: commands, then account events while running, then
// candles up to and including the first one that triggers an evaluation.
func (s *Scheduler) step(ctx context.Context) {
	for _, cmd := range s.commands.Drain() {
		s.execute(ctx, cmd)
	}

	if s.running {
		for _, ev := range s.accounts.Drain() {
			s.applyAccount(ev)
		}
	}

	s.pending = append(s.pending, s.candles.Drain()...)
	for len(s.pending) != 0 {
		c := s.pending[0]
		s.pending = s.pending[1:]
		if s.ingest(ctx, c) {
			break
		}
	}
	if len(s.pending) == 0 {
		s.pending = nil
	}
	s.metrics.SetQueueDepth("candles", len(s.pending))
}

func (s *Scheduler) applyAccount(ev binance.AccountEvent) {
	for _, b := range ev.Balances {
		if _, ok := s.assets[b.Asset]; ok {
			s.balances[b.Asset] = b.Free
		}
	}
}

// checkFeeds warns once per episode about tickers without a close for more
// than two periods.
func (s *Scheduler) checkFeeds() {
	now := s.now()
	for _, t := range s.cfg.Tickers {
		silent := now.Sub(s.lastClose[t])
		if silent <= 2*s.cfg.Period {
			continue
		}
		if !s.stale[t] {
			s.stale[t] = true
			logs.Warnf("no closed candle for %s in %s", t, silent.Truncate(time.Second))
			s.notifier.Notify(fmt.Sprintf("feed stale: %s silent for %s", t, silent.Truncate(time.Second)))
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(string) {}

type nopRecorder struct{}

func (nopRecorder) Record(string, map[string]any) {}
