package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrInvalidParam  = errors.New("parameter out of range")
	ErrNoData        = errors.New("no market data")
	ErrInvalidSize   = errors.New("position size too small for one share")
	ErrPositionOpen  = errors.New("a position is already open")
	ErrNoPosition    = errors.New("no open position")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrContextDone   = errors.New("context cancelled")
	ErrLockHeld      = errors.New("lock already held")
)
