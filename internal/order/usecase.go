package order

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"spotengine/internal/bus"
	"spotengine/pkg/exception"
)

// Delegator submits a signed market order to the exchange.
type Delegator interface {
	PlaceMarketOrder(ctx context.Context, req MarketOrderRequest) (Response, error)
}

// Observer receives every outcome after it is classified.
type Observer interface {
	ObserveOrder(ctx context.Context, outcome Outcome)
}

// Usecase owns the execution worker and both ends of the request/confirm
// handshake. Execute is called from the scheduler goroutine, Run starts the
// worker.
type Usecase struct {
	delegator Delegator
	observers []Observer

	requests *bus.Queue[MarketOrderRequest]
	confirms *bus.Queue[Outcome]

	running atomic.Bool
}

func NewUsecase(delegator Delegator, observers ...Observer) *Usecase {
	return &Usecase{
		delegator: delegator,
		observers: observers,
		requests:  bus.NewQueue[MarketOrderRequest](),
		confirms:  bus.NewQueue[Outcome](),
	}
}

// Run starts the execution worker. It returns immediately; the worker stops
// when ctx is done.
func (use *Usecase) Run(ctx context.Context) error {
	if use.delegator == nil {
		return exception.ErrOrderNilDelegator
	}
	if use.running.Swap(true) {
		return nil
	}
	go use.work(ctx)
	return nil
}

// Execute runs one request/confirm round trip: discard stale confirmations,
// hand exactly one request to the worker, then block for the confirmation
// carrying its client order id. A late confirmation of an abandoned request
// is dropped.
func (use *Usecase) Execute(ctx context.Context, req MarketOrderRequest) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{}, err
	}

	if stale := use.confirms.Drain(); len(stale) != 0 {
		logs.Warnf("discard %d stale order confirmations", len(stale))
	}
	if err := use.requests.Publish(req); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", exception.ErrOrderQueueClosed, err)
	}

	for {
		outcome, err := use.confirms.Wait(ctx)
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: %w", exception.ErrOrderNotConfirmed, err)
		}
		if outcome.Request.ClientOrderID == req.ClientOrderID {
			return outcome, nil
		}
		logs.Warnf("discard confirmation of %s while waiting for %s", outcome.Request.ClientOrderID, req.ClientOrderID)
	}
}

// Pending reports how many requests wait for the worker.
func (use *Usecase) Pending() int {
	return use.requests.Len()
}

// Close stops accepting requests.
func (use *Usecase) Close() {
	use.requests.Close()
}

func (use *Usecase) work(ctx context.Context) {
	defer use.running.Store(false)
	use.requests.Run(ctx, func(req MarketOrderRequest) {
		outcome := use.submit(ctx, req)
		for _, o := range use.observers {
			o.ObserveOrder(ctx, outcome)
		}
		// the confirmation is emitted whatever the outcome
		if err := use.confirms.Publish(outcome); err != nil {
			logs.Errorf("publish order confirmation, err: %+v", err)
		}
	})
}

func (use *Usecase) submit(ctx context.Context, req MarketOrderRequest) Outcome {
	start := time.Now()
	resp, err := use.delegator.PlaceMarketOrder(ctx, req)
	outcome := Outcome{
		Request:  req,
		Status:   Classify(resp, err),
		Response: resp,
		Err:      err,
		Latency:  time.Since(start),
	}

	switch outcome.Status {
	case StatusFilled:
		logs.Infof("order filled: %s, order id: %d, executed: %s, quote: %s",
			req, resp.OrderID, resp.ExecutedQty, resp.CummulativeQuoteQty)
	case StatusRejected:
		if err != nil {
			logs.Warnf("order rejected: %s, err: %+v", req, err)
		} else {
			logs.Warnf("order not filled: %s, status: %s", req, resp.Status)
		}
	default:
		logs.Errorf("order failed: %s, err: %+v", req, err)
	}
	return outcome
}
