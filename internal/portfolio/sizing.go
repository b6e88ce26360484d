package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"

	"spotengine/pkg/exception"
)

// quotePrecision is the number of decimals kept on quote-sized entries.
const quotePrecision = 8

// Size computes the order amount for a transition. Entries are sized in the
// quote currency, exits in the base asset quantized down to the step size.
// A balance of -1 means the exchange did not report the asset.
func Size(tr Transition, relativeSplit, balance float64, f Filters) (decimal.Decimal, error) {
	if balance < 0 {
		return decimal.Zero, fmt.Errorf("%w: %s %s", exception.ErrBalanceUnavailable, tr.Kind, tr.Ticker)
	}
	amount := decimal.NewFromFloat(relativeSplit).Mul(decimal.NewFromFloat(balance))

	switch tr.Kind {
	case Entry:
		amount = amount.Truncate(quotePrecision)
		if amount.LessThanOrEqual(f.MinNotional) {
			return decimal.Zero, fmt.Errorf("%w: %s amount %s min %s",
				exception.ErrBelowMinNotional, tr.Ticker, amount, f.MinNotional)
		}
		return amount, nil
	case Exit:
		qty := f.Quantize(amount)
		if !qty.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: %s amount %s step %s",
				exception.ErrZeroQuantity, tr.Ticker, amount, f.StepSize)
		}
		return qty, nil
	}
	return decimal.Zero, fmt.Errorf("%w: transition kind %d", exception.ErrInvalidArgument, tr.Kind)
}
