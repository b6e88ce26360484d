package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"spotengine/internal/order"
	"spotengine/internal/recorder"
	"spotengine/internal/state"
	"spotengine/internal/strategy"
	"spotengine/pkg/exception"
)

// Verb is an administrative command understood by the loop.
type Verb string

const (
	VerbStart              Verb = "start"
	VerbStop               Verb = "stop"
	VerbAutostart          Verb = "autostart"
	VerbFetchPredata       Verb = "fetchpredata"
	VerbFetchVars          Verb = "fetchvars"
	VerbStoreVars          Verb = "storevars"
	VerbDisplayVars        Verb = "displayvars"
	VerbSellToQuote        Verb = "selltousdt"
	VerbOrderTest          Verb = "ordertest"
	VerbTestPing           Verb = "testping"
	VerbExchangeInfo       Verb = "exchangeinfo"
	VerbTestTime           Verb = "testtime"
	VerbNewListenKey       Verb = "newlistenkey"
	VerbDisplayAccountInfo Verb = "displayaccountinfo"
	VerbDiagnostics        Verb = "diagnostics"
)

// Verbs lists every command in help order.
var Verbs = []Verb{
	VerbStart, VerbStop, VerbAutostart, VerbFetchPredata,
	VerbFetchVars, VerbStoreVars, VerbDisplayVars, VerbSellToQuote,
	VerbOrderTest, VerbTestPing, VerbExchangeInfo, VerbTestTime,
	VerbNewListenKey, VerbDisplayAccountInfo, VerbDiagnostics,
}

// Command is one queued verb. Ack, when set, receives the result once the
// loop has processed it; it must have room for one value.
type Command struct {
	Verb Verb
	Ack  chan error
}

// NewCommand returns a command with a ready ack channel.
func NewCommand(verb Verb) Command {
	return Command{Verb: verb, Ack: make(chan error, 1)}
}

func (s *Scheduler) execute(ctx context.Context, cmd Command) {
	start := time.Now()
	err := s.dispatch(ctx, cmd.Verb)
	fields := map[string]any{"verb": string(cmd.Verb), "took": time.Since(start).String()}
	if err != nil {
		logs.Errorf("command %s, err: %+v", cmd.Verb, err)
		fields["error"] = err.Error()
	}
	s.recorder.Record(recorder.KindCommand, fields)

	if cmd.Ack != nil {
		select {
		case cmd.Ack <- err:
		default:
			logs.Warnf("command %s ack dropped", cmd.Verb)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, verb Verb) error {
	switch verb {
	case VerbStart:
		s.setRunning(true)
	case VerbStop:
		s.setRunning(false)
	case VerbAutostart:
		if err := s.fetchPredata(ctx); err != nil {
			return err
		}
		s.setRunning(true)
	case VerbFetchPredata:
		return s.fetchPredata(ctx)
	case VerbFetchVars:
		return s.fetchVars()
	case VerbStoreVars:
		if err := state.WriteVars(s.cfg.VarsPath, s.book.Status()); err != nil {
			return err
		}
		logs.Infof("stored vars %v to %s", s.book.Status(), s.cfg.VarsPath)
	case VerbDisplayVars:
		s.report(fmt.Sprintf("vars: %v, split: %v, running: %t", s.book.Status(), s.book.Split(), s.running))
	case VerbSellToQuote:
		return s.sellAll(ctx)
	case VerbOrderTest:
		return s.orderTest(ctx)
	case VerbTestPing:
		if err := s.exchange.Ping(ctx); err != nil {
			return err
		}
		s.report("ping ok")
	case VerbExchangeInfo:
		return s.exchangeInfo(ctx)
	case VerbTestTime:
		serverMs, err := s.exchange.ServerTime(ctx)
		if err != nil {
			return err
		}
		offset := time.Duration(s.now().UnixMilli()-serverMs) * time.Millisecond
		s.report(fmt.Sprintf("server time %d, local offset %s", serverMs, offset))
	case VerbNewListenKey:
		key, err := s.exchange.NewListenKey(ctx)
		if err != nil {
			return err
		}
		s.report(fmt.Sprintf("listen key %s...", truncate(key, 8)))
	case VerbDisplayAccountInfo:
		return s.accountInfo(ctx)
	case VerbDiagnostics:
		return s.diagnostics(ctx)
	default:
		return fmt.Errorf("%w: command %q", exception.ErrArgumentUnsupported, verb)
	}
	return nil
}

func (s *Scheduler) setRunning(running bool) {
	if s.running == running {
		return
	}
	s.running = running
	msg := "trading stopped"
	if running {
		msg = "trading started"
	}
	s.report(msg)
	s.recorder.Record(recorder.KindStatus, map[string]any{"running": running, "status": s.book.Status()})
}

// fetchPredata seeds every history with the latest closed klines.
func (s *Scheduler) fetchPredata(ctx context.Context) error {
	for _, t := range s.cfg.Tickers {
		bars, err := s.exchange.Klines(ctx, t, s.cfg.Interval, s.cfg.HistoryLimit)
		if err != nil {
			return fmt.Errorf("fetch predata %s: %w", t, err)
		}
		h := s.histories[t]
		accepted := h.Seed(bars)
		logs.Infof("predata %s: %d of %d bars accepted, history %d/%d", t, accepted, len(bars), h.Len(), h.Limit())
	}
	return nil
}

// fetchVars restores slot states from disk. A malformed file keeps the
// current states.
func (s *Scheduler) fetchVars() error {
	status, err := state.ReadVars(s.cfg.VarsPath)
	if err != nil {
		return err
	}
	if err := s.book.Restore(status); err != nil {
		return err
	}
	s.report(fmt.Sprintf("restored vars %v", status))
	return nil
}

// sellAll market-sells the base asset of every ticker. Slots holding a ticker
// whose sale failed keep their state; every other slot moves back to cash.
func (s *Scheduler) sellAll(ctx context.Context) error {
	assets := make([]string, len(s.cfg.Tickers))
	for i, t := range s.cfg.Tickers {
		assets[i] = s.filters[t].BaseAsset
	}
	balances, err := order.FetchBalances(ctx, s.exchange, assets)
	if err != nil {
		return err
	}

	var failed []string
	for i, t := range s.cfg.Tickers {
		if s.sellTicker(ctx, t, balances[i]) {
			s.book.Release(t)
			continue
		}
		failed = append(failed, t)
	}

	if len(failed) != 0 {
		s.report(fmt.Sprintf("sell to quote finished, failed: %v, vars: %v", failed, s.book.Status()))
		return fmt.Errorf("%w: sell failed for %v", exception.ErrOrderNotConfirmed, failed)
	}
	s.report("sold every tracked asset, all slots in cash")
	return nil
}

// sellTicker reports whether nothing of ticker's base asset is left to sell.
func (s *Scheduler) sellTicker(ctx context.Context, ticker string, balance float64) bool {
	if balance <= 0 {
		return true
	}
	qty := s.filters[ticker].Quantize(decimal.NewFromFloat(balance))
	if !qty.IsPositive() {
		return true
	}
	outcome, err := s.executor.Execute(ctx, order.NewExit(ticker, qty, s.now().UnixMilli()))
	return err == nil && outcome.Filled()
}

func (s *Scheduler) orderTest(ctx context.Context) error {
	t := s.cfg.Tickers[0]
	req := order.NewEntry(t, s.filters[t].MinNotional, s.now().UnixMilli())
	if err := s.exchange.TestOrder(ctx, req); err != nil {
		return err
	}
	s.report(fmt.Sprintf("test order accepted: %s", req))
	return nil
}

func (s *Scheduler) exchangeInfo(ctx context.Context) error {
	filters, err := s.exchange.ExchangeInfo(ctx, s.cfg.Tickers)
	if err != nil {
		return err
	}
	for _, t := range s.cfg.Tickers {
		f, ok := filters[t]
		if !ok {
			logs.Warnf("exchange info has no %s", t)
			continue
		}
		s.report(fmt.Sprintf("%s: %s/%s step %s min notional %s", t, f.BaseAsset, f.QuoteAsset, f.StepSize, f.MinNotional))
	}
	return nil
}

func (s *Scheduler) accountInfo(ctx context.Context) error {
	balances, err := s.exchange.Balances(ctx)
	if err != nil {
		return err
	}
	lines := make([]string, 0, len(balances))
	for _, b := range balances {
		if b.Free == 0 && b.Locked == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s free %v locked %v", b.Asset, b.Free, b.Locked))
	}
	sort.Strings(lines)
	s.report("account: " + strings.Join(lines, ", "))
	s.report(fmt.Sprintf("cached: %v", s.balances))
	return nil
}

// _diagnosticOrders is how many journal rows diagnostics lists.
const _diagnosticOrders = 5

type pendingCounter interface{ Pending() int }

type lossCounter interface{ Lost() uint64 }

func (s *Scheduler) diagnostics(ctx context.Context) error {
	for _, t := range s.cfg.Tickers {
		h := s.histories[t]
		s.report(fmt.Sprintf("%s history %d/%d warmed %t primed %t", t, h.Len(), h.Limit(), h.Warmed(), s.primed[t]))
		for _, line := range strategy.CollectDiagnostics(s.strategies[t]) {
			s.report(t + " " + line)
		}
	}
	s.report(fmt.Sprintf("pending candles %d, order round trip %s", len(s.pending), s.metrics.OrderLatency()))
	if p, ok := s.executor.(pendingCounter); ok {
		s.report(fmt.Sprintf("pending order requests %d", p.Pending()))
	}
	if l, ok := s.recorder.(lossCounter); ok {
		s.report(fmt.Sprintf("file log records dropped %d", l.Lost()))
	}

	if s.history == nil {
		return nil
	}
	rows, err := s.history.Recent(ctx, _diagnosticOrders)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		s.report("journal: no orders")
	}
	for _, r := range rows {
		s.report("journal: " + r.String())
	}
	return nil
}

// report logs msg and forwards it to the operator.
func (s *Scheduler) report(msg string) {
	logs.Info(msg)
	s.notifier.Notify(msg)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
