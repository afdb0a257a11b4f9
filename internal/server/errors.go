package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	coveragedomain "github.com/supa-modo/mwukenya-server-sub002/internal/coverage/domain"
	gatewaydomain "github.com/supa-modo/mwukenya-server-sub002/internal/gateway/domain"
	memberdomain "github.com/supa-modo/mwukenya-server-sub002/internal/member/domain"
	paymentdomain "github.com/supa-modo/mwukenya-server-sub002/internal/payment/domain"
	schemedomain "github.com/supa-modo/mwukenya-server-sub002/internal/scheme/domain"
	subscriptiondomain "github.com/supa-modo/mwukenya-server-sub002/internal/subscription/domain"
	"github.com/supa-modo/mwukenya-server-sub002/internal/commission"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status == http.StatusServiceUnavailable {
			c.Header("Retry-After", "3600")
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, paymentdomain.ErrPaymentSystemLocked):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "payments_locked",
			Message: "payments are temporarily closed for daily settlement",
		}
	case errors.Is(err, gatewaydomain.ErrGatewayUnavailable):
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_unavailable",
			Message: "payment gateway unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, coveragedomain.ErrAmountTooLow),
		errors.Is(err, coveragedomain.ErrDaysLimitExceeded),
		errors.Is(err, coveragedomain.ErrInvalidWindow),
		errors.Is(err, schemedomain.ErrInvalidScheme),
		errors.Is(err, schemedomain.ErrInvalidPremium),
		errors.Is(err, schemedomain.ErrInvalidCommissionSplit),
		errors.Is(err, commission.ErrInvalidSplits),
		errors.Is(err, gatewaydomain.ErrGatewayRejected):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, memberdomain.ErrMemberNotFound),
		errors.Is(err, schemedomain.ErrSchemeNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrPaymentNotPending),
		errors.Is(err, paymentdomain.ErrReceiptMismatch),
		errors.Is(err, paymentdomain.ErrMissingScheme),
		errors.Is(err, paymentdomain.ErrNoCorrelationID),
		errors.Is(err, coveragedomain.ErrDayAlreadyPaid),
		errors.Is(err, memberdomain.ErrMemberInactive),
		errors.Is(err, schemedomain.ErrSchemeInactive),
		errors.Is(err, schemedomain.ErrSchemeCodeTaken),
		errors.Is(err, subscriptiondomain.ErrActiveExists),
		errors.Is(err, subscriptiondomain.ErrInvalidTransition):
		return true
	default:
		return false
	}
}
