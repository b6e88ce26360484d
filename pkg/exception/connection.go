package exception

import "github.com/yanun0323/errors"

var (
	ErrInResponseError = errors.New("exchange: error code in response")
	ErrConnectionClose = errors.New("exchange: connection closed")
	ErrMissingAPIKey   = errors.New("exchange: missing api key")
	ErrUnexpectedEvent = errors.New("exchange: unexpected stream event")
	ErrFilterMissing   = errors.New("exchange: missing symbol filter")
)
