package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"

	"spotengine/pkg/exception"
)

// Filters are the exchange trading rules for one ticker.
type Filters struct {
	BaseAsset   string
	QuoteAsset  string
	StepSize    decimal.Decimal
	MinNotional decimal.Decimal
}

// Validate rejects unpopulated filters. There is no safe default for sizing.
func (f Filters) Validate(symbol string) error {
	switch {
	case f.BaseAsset == "" || f.QuoteAsset == "":
		return fmt.Errorf("%w: %s has no asset pair", exception.ErrFilterMissing, symbol)
	case !f.StepSize.IsPositive():
		return fmt.Errorf("%w: %s step size %s", exception.ErrFilterMissing, symbol, f.StepSize)
	case !f.MinNotional.IsPositive():
		return fmt.Errorf("%w: %s min notional %s", exception.ErrFilterMissing, symbol, f.MinNotional)
	}
	return nil
}

// Quantize rounds qty down to a multiple of the step size.
func (f Filters) Quantize(qty decimal.Decimal) decimal.Decimal {
	if !f.StepSize.IsPositive() {
		return qty
	}
	return qty.Sub(qty.Mod(f.StepSize))
}

// FilterSet maps ticker symbols to their filters.
type FilterSet map[string]Filters

// Validate checks that every ticker has populated filters.
func (s FilterSet) Validate(tickers []string) error {
	for _, t := range tickers {
		f, ok := s[t]
		if !ok {
			return fmt.Errorf("%w: %s", exception.ErrFilterMissing, t)
		}
		if err := f.Validate(t); err != nil {
			return err
		}
	}
	return nil
}
