package errors

import "errors"

var (
	ErrClosed            = errors.New("airlock: closed")
	ErrAlreadySubscribed = errors.New("airlock: publisher accepts a single subscriber")
	ErrNonPositiveDemand = errors.New("airlock: requested demand must be positive")
)
