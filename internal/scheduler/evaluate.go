package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/yanun0323/logs"

	"spotengine/internal/candle"
	"spotengine/internal/order"
	"spotengine/internal/portfolio"
	"spotengine/internal/recorder"
	"spotengine/internal/strategy"
	"spotengine/pkg/exception"
)

// ingest appends c to its ticker history and reports whether it triggered an
// evaluation.
func (s *Scheduler) ingest(ctx context.Context, c candle.Candle) bool {
	s.metrics.ObserveCandle(c.Symbol, c.Closed)
	history, ok := s.histories[c.Symbol]
	if !ok || !c.Closed {
		return false
	}

	s.lastClose[c.Symbol] = s.now()
	s.stale[c.Symbol] = false
	s.closes++
	if s.closes%len(s.cfg.Tickers) == 0 {
		s.snapshot()
	}

	if !history.Append(c) {
		return false
	}
	s.evaluate(ctx, c)
	return true
}

// evaluate feeds c to the ticker's strategies and, while running, acts on
// every permitted transition in slot order.
func (s *Scheduler) evaluate(ctx context.Context, c candle.Candle) {
	strategies := s.strategies[c.Symbol]
	if !s.primed[c.Symbol] {
		s.prime(c.Symbol, strategies)
	}

	signals := strategy.RunAll(c, strategies)
	if !s.running {
		return
	}

	id := s.ids.Next()
	for slot, sig := range signals {
		s.metrics.ObserveSignal(c.Symbol, slot, sig)
		s.recorder.Record(recorder.KindSignal, map[string]any{
			"decision": id,
			"ticker":   c.Symbol,
			"slot":     slot,
			"signal":   sig.String(),
			"close":    c.Close,
			"start":    c.StartTime,
		})

		tr, ok := s.book.Decide(slot, c.Symbol, sig)
		if !ok {
			continue
		}
		s.transition(ctx, id, tr)
	}
}

// prime replays the stored history, minus the newest bar, through the
// strategies so their indicators start warm. Signals are discarded.
func (s *Scheduler) prime(ticker string, strategies []strategy.Strategy) {
	bars := s.histories[ticker].Candles()
	if len(bars) > 0 {
		bars = bars[:len(bars)-1]
	}
	for _, bar := range bars {
		strategy.RunAll(bar, strategies)
	}
	s.primed[ticker] = true
	logs.Infof("primed %d strategies for %s with %d bars", len(strategies), ticker, len(bars))
}

// transition sizes and dispatches one order. The slot only moves when the
// exchange reports the order filled.
func (s *Scheduler) transition(ctx context.Context, id string, tr portfolio.Transition) {
	f := s.filters[tr.Ticker]
	asset := f.QuoteAsset
	if tr.Kind == portfolio.Exit {
		asset = f.BaseAsset
	}

	balances, err := order.FetchBalances(ctx, s.exchange, []string{asset})
	if err != nil {
		logs.Errorf("fetch %s balance for slot %d %s, err: %+v", asset, tr.Slot, tr.Kind, err)
		s.notifier.Notify(fmt.Sprintf("balance fetch failed, %s on %s slot %d aborted", tr.Kind, tr.Ticker, tr.Slot))
		return
	}
	balance := balances[0]
	if balance >= 0 {
		s.balances[asset] = balance
	}

	relative := s.book.RelativeSplit(tr.Slot)
	amount, err := portfolio.Size(tr, relative, balance, f)
	if err != nil {
		reason := skipReason(err)
		logs.Warnf("skip %s on %s slot %d, %s balance %v, err: %+v", tr.Kind, tr.Ticker, tr.Slot, asset, balance, err)
		s.metrics.ObserveSkip(reason)
		s.recorder.Record(recorder.KindSkip, map[string]any{
			"decision": id,
			"ticker":   tr.Ticker,
			"slot":     tr.Slot,
			"kind":     tr.Kind.String(),
			"reason":   reason,
			"balance":  balance,
		})
		return
	}

	var req order.MarketOrderRequest
	ts := s.now().UnixMilli()
	if tr.Kind == portfolio.Entry {
		req = order.NewEntry(tr.Ticker, amount, ts)
	} else {
		req = order.NewExit(tr.Ticker, amount, ts)
	}
	s.metrics.ObserveTransition(tr)
	logs.Infof("slot %d %s on %s, relative split %.4f, order: %s", tr.Slot, tr.Kind, tr.Ticker, relative, req)

	outcome, err := s.executor.Execute(ctx, req)
	if err != nil {
		logs.Errorf("execute %s, err: %+v", req, err)
		s.notifier.Notify(fmt.Sprintf("order %s not confirmed: %v", req, err))
		return
	}

	fields := map[string]any{
		"decision": id,
		"slot":     tr.Slot,
		"order":    req.String(),
		"clientId": req.ClientOrderID,
		"status":   outcome.Status.String(),
		"latency":  outcome.Latency.String(),
	}
	if outcome.Err != nil {
		fields["error"] = outcome.Err.Error()
	}
	s.recorder.Record(recorder.KindOrder, fields)

	if !outcome.Filled() {
		s.notifier.Notify(fmt.Sprintf("order %s %s, slot %d stays at %d", req, outcome.Status, tr.Slot, tr.From))
		return
	}

	s.book.Apply(tr)
	s.recorder.Record(recorder.KindTransition, map[string]any{
		"decision": id,
		"ticker":   tr.Ticker,
		"slot":     tr.Slot,
		"from":     tr.From,
		"to":       tr.To,
	})
	s.notifier.Notify(fmt.Sprintf("%s filled, executed %s for %s, slot %d: %d -> %d",
		req, outcome.Response.ExecutedQty, outcome.Response.CummulativeQuoteQty, tr.Slot, tr.From, tr.To))
}

// snapshot writes the cached balances and slot states to the file log.
func (s *Scheduler) snapshot() {
	fields := make(map[string]any, len(s.balances)+2)
	for asset, free := range s.balances {
		fields[asset] = free
	}
	fields["status"] = s.book.Status()
	fields["running"] = s.running
	s.recorder.Record(recorder.KindBalances, fields)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, exception.ErrBelowMinNotional):
		return "below_min_notional"
	case errors.Is(err, exception.ErrBalanceUnavailable):
		return "balance_unavailable"
	case errors.Is(err, exception.ErrZeroQuantity):
		return "zero_quantity"
	default:
		return "invalid"
	}
}
