package exception

import "errors"

var (
	ErrIndicatorWindow     = errors.New("indicator: invalid window")
	ErrStrategyUnknownKind = errors.New("strategy: unknown kind")
	ErrStrategyParams      = errors.New("strategy: invalid params")
	ErrCandleLimit         = errors.New("candle: invalid history limit")
)
