package candle

import (
	"fmt"
	"time"

	"spotengine/pkg/exception"
)

// Candle is one OHLCV bar. Times are milliseconds since epoch.
type Candle struct {
	Symbol    string  `json:"symbol"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	StartTime int64   `json:"startTime"`
	EndTime   int64   `json:"endTime"`
	Closed    bool    `json:"closed"`
}

// Limit returns the history length covering maxLookback at the given bar period.
func Limit(maxLookback, period time.Duration) (int, error) {
	if period <= 0 || maxLookback < period {
		return 0, fmt.Errorf("%w: lookback=%s period=%s", exception.ErrCandleLimit, maxLookback, period)
	}
	return int(maxLookback / period), nil
}
