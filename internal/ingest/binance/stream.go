package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"spotengine/internal/candle"
	"spotengine/pkg/exception"
)

const (
	DefaultStreamURL = "wss://stream.binance.us:9443"

	_handshakeTimeout = 10 * time.Second
	_readTimeout      = time.Minute
	_pingInterval     = 20 * time.Second
	_minBackoff       = time.Second
	_maxBackoff       = 30 * time.Second
	_listenKeyRenew   = 30 * time.Minute
)

// Publisher receives decoded stream events. bus.Queue satisfies it.
type Publisher[T any] interface {
	Publish(T) error
}

// ListenKeyProvider opens and refreshes user data stream keys.
type ListenKeyProvider interface {
	NewListenKey(ctx context.Context) (string, error)
	KeepAliveListenKey(ctx context.Context, key string) error
}

// KlineStream forwards every kline update of one symbol, open bars included.
type KlineStream struct {
	url    string
	symbol string
	sink   Publisher[candle.Candle]
}

// NewKlineStream targets <baseURL>/ws/<symbol>@kline_<interval>.
func NewKlineStream(baseURL, symbol, interval string, sink Publisher[candle.Candle]) *KlineStream {
	return &KlineStream{
		url:    strings.TrimRight(baseURL, "/") + "/ws/" + strings.ToLower(symbol) + "@kline_" + interval,
		symbol: symbol,
		sink:   sink,
	}
}

// URL returns the stream endpoint.
func (s *KlineStream) URL() string { return s.url }

// Run consumes the stream until ctx is done, reconnecting with backoff.
func (s *KlineStream) Run(ctx context.Context) error {
	return reconnect(ctx, "kline "+s.symbol, func(ctx context.Context) error {
		return consume(ctx, s.url, func(msg []byte) error {
			c, err := DecodeKline(msg)
			if err != nil {
				logs.Warnf("decode kline %s, err: %+v", s.symbol, err)
				return nil
			}
			return s.sink.Publish(c)
		})
	})
}

// UserStream forwards account balance snapshots from the user data stream.
type UserStream struct {
	baseURL string
	keys    ListenKeyProvider
	sink    Publisher[AccountEvent]
	renew   time.Duration
}

func NewUserStream(baseURL string, keys ListenKeyProvider, sink Publisher[AccountEvent]) *UserStream {
	return &UserStream{
		baseURL: strings.TrimRight(baseURL, "/"),
		keys:    keys,
		sink:    sink,
		renew:   _listenKeyRenew,
	}
}

// Run opens a listen key, keeps it alive and consumes the stream until ctx
// is done. A fresh key is requested on every reconnect.
func (s *UserStream) Run(ctx context.Context) error {
	return reconnect(ctx, "user data", func(ctx context.Context) error {
		key, err := s.keys.NewListenKey(ctx)
		if err != nil {
			return errors.Wrap(err, "new listen key")
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go s.keepAlive(ctx, key)

		return consume(ctx, s.baseURL+"/ws/"+key, func(msg []byte) error {
			ev, ok, err := DecodeAccount(msg)
			if err != nil {
				logs.Warnf("decode account event, err: %+v", err)
				return nil
			}
			if !ok {
				return nil
			}
			return s.sink.Publish(ev)
		})
	})
}

func (s *UserStream) keepAlive(ctx context.Context, key string) {
	ticker := time.NewTicker(s.renew)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.keys.KeepAliveListenKey(ctx, key); err != nil {
				logs.Errorf("keep alive listen key, err: %+v", err)
			}
		}
	}
}

func reconnect(ctx context.Context, name string, run func(context.Context) error) error {
	backoff := _minBackoff
	for {
		started := time.Now()
		err := run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) > _maxBackoff {
			backoff = _minBackoff
		}
		logs.Warnf("%s stream disconnected, retry in %s, err: %+v", name, backoff, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, _maxBackoff)
	}
}

func consume(ctx context.Context, url string, handle func([]byte) error) error {
	dialer := websocket.Dialer{HandshakeTimeout: _handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrap(err, "dial").With("url", url)
	}
	logs.Infof("connected %s", url)

	var (
		once    sync.Once
		closeFn = func() { once.Do(func() { _ = conn.Close() }) }
		done    = make(chan struct{})
	)
	defer close(done)
	defer closeFn()

	_ = conn.SetReadDeadline(time.Now().Add(_readTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(_readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(_readTimeout))
	})

	go func() {
		ticker := time.NewTicker(_pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				closeFn()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					closeFn()
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if _, ok := err.(*websocket.CloseError); ok {
				return fmt.Errorf("%w: %s: %w", exception.ErrConnectionClose, url, err)
			}
			return errors.Wrap(err, "read message").With("url", url)
		}
		_ = conn.SetReadDeadline(time.Now().Add(_readTimeout))
		if err := handle(msg); err != nil {
			return errors.Wrap(err, "handle message").With("url", url)
		}
	}
}
