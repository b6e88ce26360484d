package scheduler

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"spotengine/internal/candle"
	"spotengine/internal/journal"
	"spotengine/internal/order"
	"spotengine/internal/portfolio"
)

type fakeExchange struct {
	mu       sync.Mutex
	free     map[string]float64
	klines   map[string][]candle.Candle
	tested   []order.MarketOrderRequest
	fetchErr error
	pings    int
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{free: map[string]float64{}, klines: map[string][]candle.Candle{}}
}

func (f *fakeExchange) set(asset string, v float64) {
	f.mu.Lock()
	f.free[asset] = v
	f.mu.Unlock()
}

func (f *fakeExchange) add(asset string, v float64) {
	f.mu.Lock()
	f.free[asset] += v
	f.mu.Unlock()
}

func (f *fakeExchange) Balances(context.Context) ([]order.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]order.Balance, 0, len(f.free))
	for asset, v := range f.free {
		out = append(out, order.Balance{Asset: asset, Free: v})
	}
	return out, nil
}

func (f *fakeExchange) Ping(context.Context) error {
	f.mu.Lock()
	f.pings++
	f.mu.Unlock()
	return nil
}

func (f *fakeExchange) ServerTime(context.Context) (int64, error) { return 1_700_000_000_000, nil }

func (f *fakeExchange) ExchangeInfo(context.Context, []string) (portfolio.FilterSet, error) {
	return testFilters(), nil
}

func (f *fakeExchange) TestOrder(_ context.Context, req order.MarketOrderRequest) error {
	f.mu.Lock()
	f.tested = append(f.tested, req)
	f.mu.Unlock()
	return nil
}

func (f *fakeExchange) NewListenKey(context.Context) (string, error) { return "listen-key-0123456789", nil }

func (f *fakeExchange) Klines(_ context.Context, symbol, _ string, limit int) ([]candle.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bars := f.klines[symbol]
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// fakeExecutor settles fills against the fake exchange balances.
type fakeExecutor struct {
	mu       sync.Mutex
	exchange *fakeExchange
	status   order.Status
	rejects  map[string]bool
	requests []order.MarketOrderRequest
	pending  int
}

func (e *fakeExecutor) Pending() int { return e.pending }

func (e *fakeExecutor) Execute(_ context.Context, req order.MarketOrderRequest) (order.Outcome, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	status := e.status
	if e.rejects[req.Symbol] {
		status = order.StatusRejected
	}
	e.mu.Unlock()

	if status == 0 {
		status = order.StatusFilled
	}
	out := order.Outcome{Request: req, Status: status}
	if status != order.StatusFilled {
		return out, nil
	}

	base := testFilters()[req.Symbol].BaseAsset
	if req.HasQuoteOrderQty() {
		e.exchange.add("USDT", -req.QuoteOrderQty.InexactFloat64())
		out.Response.CummulativeQuoteQty = req.QuoteOrderQty
	} else {
		e.exchange.add(base, -req.Quantity.InexactFloat64())
		out.Response.ExecutedQty = req.Quantity
	}
	out.Response.Status = order.ExchangeStatusFilled
	return out, nil
}

func (e *fakeExecutor) sent() []order.MarketOrderRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]order.MarketOrderRequest(nil), e.requests...)
}

type capture struct {
	mu      sync.Mutex
	lines   []string
	records []recordCall
}

type recordCall struct {
	kind   string
	fields map[string]any
}

func (c *capture) Notify(msg string) {
	c.mu.Lock()
	c.lines = append(c.lines, msg)
	c.mu.Unlock()
}

func (c *capture) Record(kind string, fields map[string]any) {
	c.mu.Lock()
	c.records = append(c.records, recordCall{kind: kind, fields: fields})
	c.mu.Unlock()
}

func (c *capture) Lost() uint64 { return 3 }

func (c *capture) kinds(kind string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, r := range c.records {
		if r.kind == kind {
			out = append(out, r.fields)
		}
	}
	return out
}

func (c *capture) notes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

type fakeHistory struct {
	rows []journal.OrderRecord
	err  error
}

func (f fakeHistory) Recent(_ context.Context, n int) ([]journal.OrderRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[:min(n, len(f.rows))], nil
}

func testFilters() portfolio.FilterSet {
	step := decimal.RequireFromString("0.00001")
	min := decimal.NewFromInt(10)
	return portfolio.FilterSet{
		"ETHUSDT": {BaseAsset: "ETH", QuoteAsset: "USDT", StepSize: step, MinNotional: min},
		"BTCUSDT": {BaseAsset: "BTC", QuoteAsset: "USDT", StepSize: step, MinNotional: min},
	}
}

func bar(symbol string, i int64, close float64) candle.Candle {
	start := i * 60_000
	return candle.Candle{
		Symbol:    symbol,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		StartTime: start,
		EndTime:   start + 59_999,
		Closed:    true,
	}
}
