package obs

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"

	"spotengine/internal/order"
	"spotengine/internal/portfolio"
	"spotengine/internal/strategy"
)

// Metrics exposes engine counters to prometheus and keeps an in-process
// view of order round trips. A nil *Metrics is a no-op.
type Metrics struct {
	candles      *prometheus.CounterVec
	signals      *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	skips        *prometheus.CounterVec
	orders       *prometheus.CounterVec
	orderSeconds prometheus.Histogram
	queueDepth   *prometheus.GaugeVec

	orderLatency LatencyStats
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		candles: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "engine_candles_total", Help: "Kline updates received"},
			[]string{"symbol", "closed"},
		),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "engine_signals_total", Help: "Strategy signals emitted"},
			[]string{"symbol", "slot", "signal"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "engine_transitions_total", Help: "Permitted slot transitions"},
			[]string{"symbol", "kind"},
		),
		skips: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "engine_transition_skips_total", Help: "Transitions skipped before dispatch"},
			[]string{"reason"},
		),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "engine_orders_total", Help: "Order attempts by outcome"},
			[]string{"symbol", "side", "status"},
		),
		orderSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_order_roundtrip_seconds",
			Help:    "Order submission round trip",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "engine_queue_depth", Help: "Pending items per queue"},
			[]string{"queue"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.candles, m.signals, m.transitions, m.skips, m.orders, m.orderSeconds, m.queueDepth)
	}
	return m
}

func (m *Metrics) ObserveCandle(symbol string, closed bool) {
	if m == nil {
		return
	}
	m.candles.WithLabelValues(symbol, strconv.FormatBool(closed)).Inc()
}

func (m *Metrics) ObserveSignal(symbol string, slot int, sig strategy.Signal) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(symbol, strconv.Itoa(slot), sig.String()).Inc()
}

func (m *Metrics) ObserveTransition(tr portfolio.Transition) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(tr.Ticker, tr.Kind.String()).Inc()
}

func (m *Metrics) ObserveSkip(reason string) {
	if m == nil {
		return
	}
	m.skips.WithLabelValues(reason).Inc()
}

// ObserveOrder implements order.Observer.
func (m *Metrics) ObserveOrder(_ context.Context, outcome order.Outcome) {
	if m == nil {
		return
	}
	req := outcome.Request
	m.orders.WithLabelValues(req.Symbol, string(req.Side), outcome.Status.String()).Inc()
	m.orderSeconds.Observe(outcome.Latency.Seconds())
	m.orderLatency.Observe(outcome.Latency)
}

func (m *Metrics) SetQueueDepth(queue string, n int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(n))
}

// OrderLatency returns the order round trip stats since start.
func (m *Metrics) OrderLatency() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{}
	}
	return m.orderLatency.Snapshot()
}

// Serve exposes gatherer on addr/metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logs.Infof("metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
