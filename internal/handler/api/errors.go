package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"CarbonPulse/internal/domain/models"
	xhttp "CarbonPulse/pkg/http"
)

// domainStatus maps ledger/market sentinel errors onto AppError codes and
// HTTP statuses. Unknown errors fall through to a plain 500.
var domainStatus = []struct {
	err    error
	code   string
	status int
}{
	{models.ErrInvalidState, "ERR_INVALID_STATE", http.StatusNotFound},
	{models.ErrDuplicateRecord, "ERR_DUPLICATE_RECORD", http.StatusConflict},
	{models.ErrFutureTimestamp, "ERR_FUTURE_TIMESTAMP", http.StatusBadRequest},
	{models.ErrValueOutOfRange, "ERR_VALUE_OUT_OF_RANGE", http.StatusBadRequest},
	{models.ErrIntervalNotElapsed, "ERR_INTERVAL_NOT_ELAPSED", http.StatusConflict},
	{models.ErrRenewalLimitExceeded, "ERR_RENEWAL_LIMIT_EXCEEDED", http.StatusConflict},
	{models.ErrConflictingIntent, "ERR_CONFLICTING_INTENT", http.StatusConflict},
	{models.ErrInsufficientBalance, "ERR_INSUFFICIENT_BALANCE", http.StatusUnprocessableEntity},
	{models.ErrInsufficientAllowance, "ERR_INSUFFICIENT_ALLOWANCE", http.StatusUnprocessableEntity},
	{models.ErrTradeSizeOutOfRange, "ERR_TRADE_SIZE_OUT_OF_RANGE", http.StatusBadRequest},
	{models.ErrInsufficientBacking, "ERR_INSUFFICIENT_BACKING", http.StatusUnprocessableEntity},
	{models.ErrSlippageExceeded, "ERR_SLIPPAGE_EXCEEDED", http.StatusUnprocessableEntity},
	{models.ErrTransferFailed, "ERR_TRANSFER_FAILED", http.StatusBadGateway},
	{models.ErrMarketPaused, "ERR_MARKET_PAUSED", http.StatusServiceUnavailable},
	{models.ErrNotRegistered, "ERR_NOT_REGISTERED", http.StatusForbidden},
	{models.ErrEscrowUnpaid, "ERR_ESCROW_UNPAID", http.StatusForbidden},
}

// DomainErrorResponse translates a domain error into the standard error
// envelope.
func DomainErrorResponse(c echo.Context, err error) error {
	for _, m := range domainStatus {
		if errors.Is(err, m.err) {
			appErr := xhttp.NewAppError(m.code, "", m.err.Error(), m.status).WithError(err)
			return xhttp.AppErrorResponse(c, appErr)
		}
	}
	return xhttp.AppErrorResponse(c, err)
}
