package binance

import (
	"github.com/bytedance/sonic"
	"github.com/spf13/cast"
	"github.com/yanun0323/errors"

	"spotengine/internal/candle"
	"spotengine/internal/order"
	"spotengine/pkg/exception"
)

const (
	_eventKline           = "kline"
	_eventAccountPosition = "outboundAccountPosition"
	_eventAccountInfo     = "outboundAccountInfo"
)

type klineEvent struct {
	EventType string       `json:"e"`
	EventTime int64        `json:"E"`
	Symbol    string       `json:"s"`
	Kline     klinePayload `json:"k"`
}

// klinePayload declares every key Binance sends. Keys differing only in case
// ("l"/"L", "v"/"V", "q"/"Q") would otherwise fold onto each other.
type klinePayload struct {
	StartTime    int64  `json:"t"`
	CloseTime    int64  `json:"T"`
	Symbol       string `json:"s"`
	Interval     string `json:"i"`
	FirstTradeID int64  `json:"f"`
	LastTradeID  int64  `json:"L"`
	Open         string `json:"o"`
	Close        string `json:"c"`
	High         string `json:"h"`
	Low          string `json:"l"`
	Volume       string `json:"v"`
	Trades       int64  `json:"n"`
	Closed       bool   `json:"x"`
	QuoteVolume  string `json:"q"`
	TakerBase    string `json:"V"`
	TakerQuote   string `json:"Q"`
	Ignore       string `json:"B"`
}

type accountEvent struct {
	EventType string           `json:"e"`
	EventTime int64            `json:"E"`
	Balances  []accountBalance `json:"B"`
}

type accountBalance struct {
	Asset  string `json:"a"`
	Free   string `json:"f"`
	Locked string `json:"l"`
}

// AccountEvent is a balance update pushed on the user data stream.
type AccountEvent struct {
	EventTime int64
	Balances  []order.Balance
}

// DecodeKline decodes one kline stream message.
func DecodeKline(payload []byte) (candle.Candle, error) {
	var ev klineEvent
	if err := sonic.ConfigFastest.Unmarshal(payload, &ev); err != nil {
		return candle.Candle{}, errors.Wrap(err, "unmarshal kline")
	}
	if ev.EventType != _eventKline {
		return candle.Candle{}, errors.Wrapf(exception.ErrUnexpectedEvent, "event: %q", ev.EventType)
	}

	k := ev.Kline
	c := candle.Candle{
		Symbol:    k.Symbol,
		StartTime: k.StartTime,
		EndTime:   k.CloseTime,
		Closed:    k.Closed,
	}
	if c.Symbol == "" {
		c.Symbol = ev.Symbol
	}
	fields := []struct {
		dst *float64
		raw string
	}{
		{&c.Open, k.Open},
		{&c.High, k.High},
		{&c.Low, k.Low},
		{&c.Close, k.Close},
		{&c.Volume, k.Volume},
	}
	for _, f := range fields {
		v, err := cast.ToFloat64E(f.raw)
		if err != nil {
			return candle.Candle{}, errors.Wrap(err, "parse kline field").With("raw", f.raw)
		}
		*f.dst = v
	}
	return c, nil
}

// DecodeAccount decodes a user data message. It returns false for events
// that carry no balance snapshot (order reports, balance deltas).
func DecodeAccount(payload []byte) (AccountEvent, bool, error) {
	var ev accountEvent
	if err := sonic.ConfigFastest.Unmarshal(payload, &ev); err != nil {
		return AccountEvent{}, false, errors.Wrap(err, "unmarshal account event")
	}
	if ev.EventType != _eventAccountPosition && ev.EventType != _eventAccountInfo {
		return AccountEvent{}, false, nil
	}

	out := AccountEvent{EventTime: ev.EventTime, Balances: make([]order.Balance, 0, len(ev.Balances))}
	for _, b := range ev.Balances {
		free, err := cast.ToFloat64E(b.Free)
		if err != nil {
			return AccountEvent{}, false, errors.Wrap(err, "parse free balance").With("asset", b.Asset)
		}
		locked, err := cast.ToFloat64E(b.Locked)
		if err != nil {
			return AccountEvent{}, false, errors.Wrap(err, "parse locked balance").With("asset", b.Asset)
		}
		out.Balances = append(out.Balances, order.Balance{Asset: b.Asset, Free: free, Locked: locked})
	}
	return out, true, nil
}
