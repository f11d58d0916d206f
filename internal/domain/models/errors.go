package models

import "errors"

// Domain failures are fail-closed and synchronous: every one aborts the
// whole operation with persisted state untouched. Callers correct the
// precondition and resubmit; nothing is queued or retried internally.
var (
	ErrInvalidState         = errors.New("entity or sector not initialized")
	ErrDuplicateRecord      = errors.New("timestamp already recorded for sector")
	ErrFutureTimestamp      = errors.New("measurement timestamp is in the future")
	ErrValueOutOfRange      = errors.New("measurement value outside accepted range")
	ErrIntervalNotElapsed   = errors.New("minimum renewal interval not elapsed")
	ErrRenewalLimitExceeded = errors.New("renewal limit exceeded for cycle")
	ErrConflictingIntent    = errors.New("conflicting buy/sell intent")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrTradeSizeOutOfRange  = errors.New("trade size outside allowed bounds")
	ErrInsufficientBacking  = errors.New("trade not backed by sector reduction")
	ErrSlippageExceeded     = errors.New("price outside slippage tolerance")
	ErrTransferFailed       = errors.New("asset transfer failed")
	ErrMarketPaused         = errors.New("market is paused")
	ErrNotRegistered        = errors.New("participant not registered")
	ErrEscrowUnpaid         = errors.New("participant escrow fee unpaid")
)
