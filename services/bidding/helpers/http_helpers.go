package helpers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"livebid/internal/biddingerrors"
	"livebid/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message.
// Corruption is checked first: it may wrap a not-found error.
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case biddingerrors.IsDataCorruption(err):
		return http.StatusInternalServerError, "internal server error"

	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, biddingerrors.ErrSettlementNotFound):
		return http.StatusNotFound, "settlement not found"
	case errors.Is(err, biddingerrors.ErrNotificationNotFound):
		return http.StatusNotFound, "notification not found"

	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrInvalidAuction):
		return http.StatusBadRequest, "invalid auction details"
	case errors.Is(err, biddingerrors.ErrInvalidUser):
		return http.StatusBadRequest, "invalid user details"
	case errors.Is(err, biddingerrors.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid amount"

	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrBelowMinimumIncrement):
		return http.StatusConflict, "bid below minimum increment"
	case errors.Is(err, biddingerrors.ErrInsufficientFunds):
		return http.StatusConflict, "insufficient funds"
	case errors.Is(err, biddingerrors.ErrAuctionNotLive):
		return http.StatusConflict, "auction is not live"
	case errors.Is(err, biddingerrors.ErrAuctionEnded):
		return http.StatusConflict, "auction has ended"
	case errors.Is(err, biddingerrors.ErrInvalidStateTransition):
		return http.StatusConflict, "invalid auction state"
	case errors.Is(err, biddingerrors.ErrVersionConflict):
		return http.StatusConflict, "auction was modified concurrently"
	case errors.Is(err, biddingerrors.ErrEmailTaken):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, biddingerrors.ErrAlreadyExists):
		return http.StatusConflict, "already exists"

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request timed out, retry"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError writes the mapped error response and logs it. Server side
// failures are logged at error level, client mistakes at warn.
func RespondError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message := MapErrorToHTTP(err)
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)

	if fields == nil {
		fields = map[string]any{}
	}
	fields["handler"] = handlerName
	fields["status"] = status
	fields["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": "+message, fields)
		return
	}
	utils.Warn(handlerName+": "+message, fields)
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
