package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status classifies how an order attempt ended.
type Status int

const (
	StatusFilled Status = iota + 1
	StatusRejected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFilled:
		return "filled"
	case StatusRejected:
		return "rejected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ExchangeStatusFilled is the exchange order status of a fully executed order.
const ExchangeStatusFilled = "FILLED"

// Response is the exchange acknowledgement of a placed order.
type Response struct {
	OrderID             int64
	ClientOrderID       string
	Status              string
	ExecutedQty         decimal.Decimal
	CummulativeQuoteQty decimal.Decimal
	TransactTime        int64
}

// Outcome is the one confirmation emitted per order attempt.
type Outcome struct {
	Request  MarketOrderRequest
	Status   Status
	Response Response
	Err      error
	Latency  time.Duration
}

// Filled reports whether the order fully executed.
func (o Outcome) Filled() bool { return o.Status == StatusFilled }

// APIError is an error code returned by the exchange for a request it
// received and refused.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange error %d: %s", e.Code, e.Message)
}

// Classify maps a delegator result onto a Status. Exchange refusals and
// non-FILLED statuses are rejections; any other error is a failed attempt.
func Classify(resp Response, err error) Status {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return StatusRejected
	case err != nil:
		return StatusFailed
	case resp.Status == ExchangeStatusFilled:
		return StatusFilled
	default:
		return StatusRejected
	}
}
