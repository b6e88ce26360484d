package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotengine/pkg/exception"
)

type fakeDelegator struct {
	mu    sync.Mutex
	seen  []MarketOrderRequest
	reply func(MarketOrderRequest) (Response, error)
}

func (f *fakeDelegator) PlaceMarketOrder(_ context.Context, req MarketOrderRequest) (Response, error) {
	f.mu.Lock()
	f.seen = append(f.seen, req)
	f.mu.Unlock()
	return f.reply(req)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recordingObserver) ObserveOrder(_ context.Context, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func startUsecase(t *testing.T, d Delegator, observers ...Observer) *Usecase {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	use := NewUsecase(d, observers...)
	require.NoError(t, use.Run(ctx))
	return use
}

func TestExecuteFilled(t *testing.T) {
	d := &fakeDelegator{reply: func(req MarketOrderRequest) (Response, error) {
		return Response{OrderID: 42, ClientOrderID: req.ClientOrderID, Status: "FILLED"}, nil
	}}
	obs := &recordingObserver{}
	use := startUsecase(t, d, obs)

	req := NewEntry("ETHUSDT", decimal.NewFromInt(100), time.Now().UnixMilli())
	outcome, err := use.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, outcome.Status)
	assert.True(t, outcome.Filled())
	assert.Equal(t, int64(42), outcome.Response.OrderID)
	assert.Equal(t, req.ClientOrderID, outcome.Request.ClientOrderID)

	require.Len(t, d.seen, 1)
	require.Len(t, obs.outcomes, 1)
}

func TestExecuteAlwaysConfirms(t *testing.T) {
	cases := map[string]struct {
		resp Response
		err  error
		want Status
	}{
		"partially filled": {resp: Response{Status: "PARTIALLY_FILLED"}, want: StatusRejected},
		"api error":        {err: &APIError{Code: -2010, Message: "insufficient balance"}, want: StatusRejected},
		"transport":        {err: errors.New("connection reset"), want: StatusFailed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			d := &fakeDelegator{reply: func(MarketOrderRequest) (Response, error) { return tc.resp, tc.err }}
			use := startUsecase(t, d)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			outcome, err := use.Execute(ctx, NewExit("ETHUSDT", decimal.RequireFromString("0.05"), 1))
			require.NoError(t, err)
			assert.Equal(t, tc.want, outcome.Status)
			assert.Equal(t, tc.err, outcome.Err)
		})
	}
}

func TestExecuteDiscardsStaleConfirmations(t *testing.T) {
	d := &fakeDelegator{reply: func(req MarketOrderRequest) (Response, error) {
		return Response{ClientOrderID: req.ClientOrderID, Status: "FILLED"}, nil
	}}
	use := startUsecase(t, d)
	require.NoError(t, use.confirms.Publish(Outcome{Status: StatusFailed}))
	require.NoError(t, use.confirms.Publish(Outcome{Status: StatusRejected}))

	req := NewEntry("ETHUSDT", decimal.NewFromInt(50), 1)
	outcome, err := use.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req.ClientOrderID, outcome.Response.ClientOrderID)
	assert.Zero(t, use.confirms.Len())
}

func TestExecuteIgnoresConfirmationOfAbandonedRequest(t *testing.T) {
	release := make(chan struct{})
	d := &fakeDelegator{reply: func(req MarketOrderRequest) (Response, error) {
		if req.Symbol == "BTCUSDT" {
			<-release
		}
		return Response{ClientOrderID: req.ClientOrderID, Status: "FILLED"}, nil
	}}
	use := startUsecase(t, d)

	abandoned := NewEntry("BTCUSDT", decimal.NewFromInt(10), 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err := use.Execute(ctx, abandoned)
	cancel()
	require.ErrorIs(t, err, exception.ErrOrderNotConfirmed)

	req := NewEntry("ETHUSDT", decimal.NewFromInt(10), 2)
	type result struct {
		outcome Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		o, err := use.Execute(context.Background(), req)
		done <- result{o, err}
	}()

	// the worker is still stuck on the abandoned order
	assert.Eventually(t, func() bool { return use.Pending() == 1 }, time.Second, time.Millisecond)
	close(release)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, req.ClientOrderID, r.outcome.Request.ClientOrderID)
	case <-time.After(2 * time.Second):
		t.Fatal("no confirmation for the second request")
	}
	assert.Zero(t, use.Pending())
}

func TestExecuteRejectsInvalidRequest(t *testing.T) {
	d := &fakeDelegator{reply: func(MarketOrderRequest) (Response, error) { return Response{}, nil }}
	use := startUsecase(t, d)

	bad := NewEntry("ETHUSDT", decimal.NewFromInt(10), 1)
	bad.Quantity = decimal.NewFromInt(1)
	_, err := use.Execute(context.Background(), bad)
	assert.ErrorIs(t, err, exception.ErrOrderInvalidRequest)
	assert.Empty(t, d.seen)
}

func TestExecuteWaitsForContext(t *testing.T) {
	block := make(chan struct{})
	d := &fakeDelegator{reply: func(MarketOrderRequest) (Response, error) {
		<-block
		return Response{Status: "FILLED"}, nil
	}}
	use := startUsecase(t, d)
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := use.Execute(ctx, NewEntry("ETHUSDT", decimal.NewFromInt(10), 1))
	assert.ErrorIs(t, err, exception.ErrOrderNotConfirmed)
}

func TestRunRequiresDelegator(t *testing.T) {
	use := NewUsecase(nil)
	assert.ErrorIs(t, use.Run(context.Background()), exception.ErrOrderNilDelegator)
}
