package binance

import (
	"testing"

	"github.com/yanun0323/errors"

	"spotengine/pkg/exception"
)

func TestDecodeKline(t *testing.T) {
	payload := []byte(`{"e":"kline","E":1700000060001,"s":"ETHUSDT","k":{"t":1700000000000,"T":1700000059999,"s":"ETHUSDT","i":"1m","f":100,"L":200,"o":"2000.10","c":"2001.50","h":"2002.00","l":"1999.90","v":"12.345","n":100,"x":true,"q":"24691.3","V":"6","Q":"12000","B":"0"}}`)
	c, err := DecodeKline(payload)
	if err != nil {
		t.Fatalf("decode kline: %v", err)
	}
	if c.Symbol != "ETHUSDT" {
		t.Fatalf("symbol mismatch: got %s", c.Symbol)
	}
	if c.StartTime != 1700000000000 || c.EndTime != 1700000059999 {
		t.Fatalf("time mismatch: start=%d end=%d", c.StartTime, c.EndTime)
	}
	if c.Open != 2000.10 || c.Close != 2001.50 || c.High != 2002.00 || c.Low != 1999.90 || c.Volume != 12.345 {
		t.Fatalf("ohlcv mismatch: %+v", c)
	}
	if !c.Closed {
		t.Fatalf("closed flag missing")
	}
}

func TestDecodeKlineRejectsOtherEvents(t *testing.T) {
	_, err := DecodeKline([]byte(`{"e":"trade","s":"ETHUSDT"}`))
	if !errors.Is(err, exception.ErrUnexpectedEvent) {
		t.Fatalf("expected unexpected event error, got %v", err)
	}
	if _, err := DecodeKline([]byte(`{"e":"kline","k":{"o":"abc"}}`)); err == nil {
		t.Fatalf("expected parse error for non-numeric price")
	}
}

func TestDecodeAccountPosition(t *testing.T) {
	payload := []byte(`{"e":"outboundAccountPosition","E":1700000000123,"u":1700000000120,"B":[{"a":"USDT","f":"100.50","l":"0.00"},{"a":"ETH","f":"0.05","l":"0.01"}]}`)
	ev, ok, err := DecodeAccount(payload)
	if err != nil || !ok {
		t.Fatalf("decode account: ok=%v err=%v", ok, err)
	}
	if ev.EventTime != 1700000000123 {
		t.Fatalf("event time mismatch: got %d", ev.EventTime)
	}
	if len(ev.Balances) != 2 {
		t.Fatalf("balances length mismatch: got %d want 2", len(ev.Balances))
	}
	if ev.Balances[0].Asset != "USDT" || ev.Balances[0].Free != 100.5 {
		t.Fatalf("balance 0 mismatch: %+v", ev.Balances[0])
	}
	if ev.Balances[1].Asset != "ETH" || ev.Balances[1].Free != 0.05 || ev.Balances[1].Locked != 0.01 {
		t.Fatalf("balance 1 mismatch: %+v", ev.Balances[1])
	}
}

func TestDecodeAccountSkipsOrderReports(t *testing.T) {
	payload := []byte(`{"e":"executionReport","E":1700000000123,"s":"ETHUSDT","i":12345,"S":"BUY","X":"FILLED"}`)
	_, ok, err := DecodeAccount(payload)
	if err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if ok {
		t.Fatalf("execution report must not be treated as balance snapshot")
	}
}

func TestDecodeKlineKeepsCaseDistinctKeys(t *testing.T) {
	// "L", "V" and "Q" must not land on Low, Volume or QuoteVolume.
	payload := []byte(`{"e":"kline","E":1,"s":"BTCUSDT","k":{"t":0,"T":59999,"s":"BTCUSDT","i":"1m","f":7,"L":9,"o":"10","c":"11","h":"12","l":"9.5","v":"3","n":3,"x":true,"q":"33","V":"1.25","Q":"13.75","B":"0"}}`)
	c, err := DecodeKline(payload)
	if err != nil {
		t.Fatalf("decode kline: %v", err)
	}
	if c.Low != 9.5 || c.Volume != 3 || c.High != 12 {
		t.Fatalf("case-distinct keys leaked into ohlcv: %+v", c)
	}
}
