package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotengine/internal/candle"
)

type collector[T any] struct {
	mu    sync.Mutex
	items []T
	got   chan struct{}
}

func newCollector[T any]() *collector[T] {
	return &collector[T]{got: make(chan struct{}, 16)}
}

func (c *collector[T]) Publish(v T) error {
	c.mu.Lock()
	c.items = append(c.items, v)
	c.mu.Unlock()
	c.got <- struct{}{}
	return nil
}

func (c *collector[T]) wait(t *testing.T, n int) []T {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i+1)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

// serveMessages upgrades requests on path and writes msgs, then holds the
// connection open until the client leaves.
func serveMessages(t *testing.T, path string, msgs ...string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestKlineStreamForwardsUpdates(t *testing.T) {
	base := serveMessages(t, "/ws/ethusdt@kline_1m",
		`{"e":"kline","E":30000,"s":"ETHUSDT","k":{"t":0,"T":59999,"s":"ETHUSDT","i":"1m","f":100,"L":150,"o":"1","c":"2","h":"3","l":"0.5","v":"1","n":51,"x":false,"q":"2","V":"0.4","Q":"0.8","B":"0"}}`,
		`not json`,
		`{"e":"kline","E":60000,"s":"ETHUSDT","k":{"t":0,"T":59999,"s":"ETHUSDT","i":"1m","f":100,"L":200,"o":"1","c":"2.5","h":"3","l":"0.5","v":"2","n":101,"x":true,"q":"4.5","V":"7","Q":"16","B":"0"}}`,
	)
	sink := newCollector[candle.Candle]()
	stream := NewKlineStream(base, "ETHUSDT", "1m", sink)
	assert.True(t, strings.HasSuffix(stream.URL(), "/ws/ethusdt@kline_1m"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- stream.Run(ctx) }()

	got := sink.wait(t, 2)
	assert.False(t, got[0].Closed)
	assert.True(t, got[1].Closed)
	assert.Equal(t, 2.5, got[1].Close)
	assert.Equal(t, 0.5, got[1].Low)
	assert.Equal(t, 2.0, got[1].Volume)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

type stubKeys struct {
	mu    sync.Mutex
	calls int
}

func (s *stubKeys) NewListenKey(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "listen-1", nil
}

func (s *stubKeys) KeepAliveListenKey(context.Context, string) error { return nil }

func TestUserStreamForwardsBalanceSnapshots(t *testing.T) {
	base := serveMessages(t, "/ws/listen-1",
		`{"e":"executionReport","E":1,"s":"ETHUSDT","X":"FILLED"}`,
		`{"e":"outboundAccountPosition","E":2,"B":[{"a":"USDT","f":"42","l":"0"}]}`,
	)
	keys := &stubKeys{}
	sink := newCollector[AccountEvent]()
	stream := NewUserStream(base, keys, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stream.Run(ctx) }()

	got := sink.wait(t, 1)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].EventTime)
	assert.Equal(t, "USDT", got[0].Balances[0].Asset)
	assert.Equal(t, 42.0, got[0].Balances[0].Free)
	keys.mu.Lock()
	assert.Equal(t, 1, keys.calls)
	keys.mu.Unlock()
}
