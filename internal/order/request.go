package order

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"spotengine/pkg/exception"
)

// Side is the exchange order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Unset marks the amount field a request does not use.
var Unset = decimal.NewFromInt(-1)

// MarketOrderRequest is a market order sized either by base quantity (exits)
// or by quote spend (entries). Exactly one of Quantity and QuoteOrderQty is
// populated; the other holds Unset.
type MarketOrderRequest struct {
	Symbol        string
	Side          Side
	Quantity      decimal.Decimal
	QuoteOrderQty decimal.Decimal
	Timestamp     int64
	ClientOrderID string
}

// NewEntry builds a BUY spending quote of the quote currency.
func NewEntry(symbol string, quote decimal.Decimal, timestamp int64) MarketOrderRequest {
	return MarketOrderRequest{
		Symbol:        symbol,
		Side:          SideBuy,
		Quantity:      Unset,
		QuoteOrderQty: quote,
		Timestamp:     timestamp,
		ClientOrderID: uuid.NewString(),
	}
}

// NewExit builds a SELL of qty units of the base asset.
func NewExit(symbol string, qty decimal.Decimal, timestamp int64) MarketOrderRequest {
	return MarketOrderRequest{
		Symbol:        symbol,
		Side:          SideSell,
		Quantity:      qty,
		QuoteOrderQty: Unset,
		Timestamp:     timestamp,
		ClientOrderID: uuid.NewString(),
	}
}

// HasQuantity reports whether the request is sized in base units.
func (r MarketOrderRequest) HasQuantity() bool { return !r.Quantity.Equal(Unset) }

// HasQuoteOrderQty reports whether the request is sized in quote spend.
func (r MarketOrderRequest) HasQuoteOrderQty() bool { return !r.QuoteOrderQty.Equal(Unset) }

// Amount returns whichever amount is populated.
func (r MarketOrderRequest) Amount() decimal.Decimal {
	if r.HasQuantity() {
		return r.Quantity
	}
	return r.QuoteOrderQty
}

// Validate checks the single-amount invariant.
func (r MarketOrderRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", exception.ErrOrderInvalidRequest)
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("%w: side %q", exception.ErrOrderInvalidRequest, r.Side)
	}
	if r.HasQuantity() == r.HasQuoteOrderQty() {
		return fmt.Errorf("%w: exactly one of quantity and quote order qty must be set", exception.ErrOrderInvalidRequest)
	}
	if !r.Amount().IsPositive() {
		return fmt.Errorf("%w: non-positive amount %s", exception.ErrOrderInvalidRequest, r.Amount())
	}
	return nil
}

func (r MarketOrderRequest) String() string {
	if r.HasQuantity() {
		return fmt.Sprintf("%s %s quantity=%s", r.Side, r.Symbol, r.Quantity)
	}
	return fmt.Sprintf("%s %s quoteOrderQty=%s", r.Side, r.Symbol, r.QuoteOrderQty)
}
