package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/ragstack/creditledger/internal/payment/domain"
	settingsdomain "github.com/ragstack/creditledger/internal/settings/domain"
	walletdomain "github.com/ragstack/creditledger/internal/wallet/domain"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid_request")
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

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
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "forbidden"}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: "invalid request"}

	case errors.Is(err, walletdomain.ErrNoBillingAccount):
		return http.StatusNotFound, errorPayload{Type: "no_billing_account", Message: "no billing account"}
	case errors.Is(err, walletdomain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, errorPayload{Type: "insufficient_credits", Message: "insufficient credits"}
	case errors.Is(err, walletdomain.ErrWalletSuspended):
		return http.StatusForbidden, errorPayload{Type: "wallet_suspended", Message: "wallet suspended"}
	case errors.Is(err, walletdomain.ErrDailyCapReached):
		return http.StatusTooManyRequests, errorPayload{Type: "daily_cap_reached", Message: "daily credit cap reached"}

	case errors.Is(err, paymentdomain.ErrOrderNotFound):
		return http.StatusNotFound, errorPayload{Type: "order_not_found", Message: "order not found"}
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{Type: "invalid_signature", Message: "invalid payment signature"}
	case errors.Is(err, paymentdomain.ErrPaymentFailed):
		return http.StatusPaymentRequired, errorPayload{Type: "payment_failed", Message: "payment failed"}
	case errors.Is(err, paymentdomain.ErrSettlementConflict):
		return http.StatusConflict, errorPayload{Type: "settlement_conflict", Message: "settlement in progress"}
	case errors.Is(err, paymentdomain.ErrGatewayNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{Type: "gateway_unavailable", Message: "payment gateway not configured"}

	case errors.Is(err, settingsdomain.ErrPlanNotFound):
		return http.StatusNotFound, errorPayload{Type: "plan_not_found", Message: "plan not found"}
	case errors.Is(err, settingsdomain.ErrInvalidKey),
		errors.Is(err, settingsdomain.ErrInvalidPlan):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: err.Error()}

	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}
