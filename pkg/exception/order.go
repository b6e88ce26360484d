package exception

import "errors"

var (
	ErrOrderInvalidRequest = errors.New("order: invalid request")
	ErrOrderNilDelegator   = errors.New("order: nil delegator")
	ErrOrderQueueClosed    = errors.New("order: queue closed")
	ErrOrderNotConfirmed   = errors.New("order: confirmation not received")
)
