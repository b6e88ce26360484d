package exception

import "errors"

var (
	ErrBelowMinNotional   = errors.New("portfolio: amount below min notional")
	ErrBalanceUnavailable = errors.New("portfolio: balance unavailable")
	ErrZeroQuantity       = errors.New("portfolio: quantized quantity is zero")
	ErrInvalidSplit       = errors.New("portfolio: invalid capital split")
	ErrInvalidStatus      = errors.New("portfolio: invalid algo status")
	ErrMalformedVars      = errors.New("state: malformed vars file")
	ErrQuoteMismatch      = errors.New("portfolio: ticker not quoted in base asset")
)
